// Package preloads persists cached read-results ("preloads") for domain
// objects and UI scopes.
package preloads

import (
	"context"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
)

// Repository describes persistence operations for preload entries.
type Repository interface {
	// Upsert inserts the entry or replaces it wholesale.
	Upsert(ctx context.Context, p *models.Preload) error

	// GetByID returns the entry or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Preload, error)

	// List returns every entry ordered by id.
	List(ctx context.Context) ([]*models.Preload, error)

	// ListByObjectAlias returns entries cached for the object alias.
	ListByObjectAlias(ctx context.Context, alias string) ([]*models.Preload, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error
}
