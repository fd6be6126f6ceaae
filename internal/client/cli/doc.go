// Package cli provides the offlinesync command-line client.
//
// Every command opens the local store through engine.Open, runs one
// operation against it and closes it again. The shell command keeps one
// engine open, starts the connectivity watcher in the background and reads
// commands line by line, so queued actions are synced as soon as the server
// becomes reachable.
//
// Typical flow:
//
//	offlinesync enqueue --url /orders --object orders --action create --data '{"sku":"A-1"}'
//	offlinesync list
//	offlinesync sync
//	offlinesync shell
package cli
