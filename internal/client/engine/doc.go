// Package engine assembles the offline sync components into one explicit
// context: it opens the store, builds the services, wires the scheduler to
// connectivity changes and exposes the public API.
//
// When the local store cannot be opened the engine runs in ModeDisabled:
// every method returns an empty or neutral result instead of failing, so the
// host can keep working online only.
package engine
