// Package requests persists cached request/response pairs keyed by a
// canonical request serialization, partitioned by cache name.
package requests

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
)

// Repository describes persistence operations for cached requests.
type Repository interface {
	// Put inserts or replaces the response stored under (cacheName, key).
	Put(ctx context.Context, e *models.CachedRequest) error

	// Get returns the entry or common.ErrorNotFound.
	Get(ctx context.Context, cacheName, key string) (*models.CachedRequest, error)

	// Count returns the number of entries in a cache.
	Count(ctx context.Context, cacheName string) (int, error)

	// Evict removes entries older than olderThan (when non-zero) and then
	// trims the cache to the newest maxEntries (when > 0). It returns the
	// number of removed entries.
	Evict(ctx context.Context, cacheName string, maxEntries int, olderThan time.Time) (int64, error)
}
