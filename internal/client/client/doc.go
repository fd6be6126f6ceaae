// Package client contains the sync transport used by the offline engine.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface): Send for
//     queued actions, FetchPreload for cached data sets and Fetch for
//     binary assets.
//  2. A concrete HTTP implementation (see HTTPClient) that resolves
//     envelope URLs against the server base URL, attaches the request-id and
//     device-id headers and maps transport failures to sentinel errors.
//
// # Error Handling
//
// Transport conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrTimeout, ErrUnexpectedStatus.
// A response that was received is never an error for Send: its status and
// body are returned verbatim and classified by the caller.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation/timeouts.
package client
