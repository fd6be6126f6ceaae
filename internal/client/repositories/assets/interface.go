// Package assets persists prefetched binary resources keyed by URL.
package assets

import (
	"context"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
)

type Repository interface {
	Put(ctx context.Context, a *models.Asset) error
	// Get returns common.ErrorNotFound when the url is not stored.
	Get(ctx context.Context, url string) (*models.Asset, error)
	Has(ctx context.Context, url string) (bool, error)
}
