package actions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
)

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	Statuses    []models.Status
	ObjectAlias string
	IDs         []string
}

// Repository describes persistence operations for queued actions.
type Repository interface {
	// Insert stores a new action. Ids are generated by the caller.
	Insert(ctx context.Context, a *models.QueuedAction) error

	// GetByID returns the action or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.QueuedAction, error)

	// List returns matching actions in enqueue order.
	List(ctx context.Context, f Filter) ([]*models.QueuedAction, error)

	// Claim marks an offline action as processing, stamps the attempt time
	// and increments tries. It returns false when the action was not offline.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)

	// Heal moves a processing action whose attempt started at lastAttempt
	// back to offline. It returns false when the row changed meanwhile.
	Heal(ctx context.Context, id string, lastAttempt time.Time) (bool, error)

	// Finish records the outcome of an attempt.
	Finish(ctx context.Context, id string, status models.Status, resp *models.Response, syncedAt *time.Time) error

	// Requeue moves an action in error back to offline and clears its
	// response. It returns false when the action was not in error.
	Requeue(ctx context.Context, id string) (bool, error)

	// Delete removes an action unconditionally.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes the given actions unconditionally.
	DeleteAll(ctx context.Context, ids []string) error
}
