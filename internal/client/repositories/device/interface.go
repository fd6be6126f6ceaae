// Package device stores the single persistent device identity row.
package device

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns the stored device id, or "" when none was created yet.
	Get(ctx context.Context) (string, error)

	// Create stores id unless an identity already exists. It returns the
	// identity that is persisted after the call.
	Create(ctx context.Context, id string, now time.Time) (string, error)
}
