// Package logging defines the structured logger passed to every engine
// component. SlogLogger over log/slog is the implementation; Nop discards.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "action synced", "id", id, "tries", tries)
type Logger interface {
	// Debug logs verbose diagnostics (state transitions, cache hits).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs lifecycle events: mode switches, reconciled preloads.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs failures the engine recovers from, such as a failed refresh.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
