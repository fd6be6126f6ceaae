// Package assetstore selects the dedicated asset cache: the local SQLite
// table (default) or an S3-compatible bucket.
package assetstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/offlinesync/internal/dbx"
)

const (
	KindSQLite = "sqlite"
	KindS3     = "s3"
)

type Store interface {
	Put(ctx context.Context, a *models.Asset) error
	// Get returns common.ErrorNotFound when url is not stored.
	Get(ctx context.Context, url string) (*models.Asset, error)
	Has(ctx context.Context, url string) (bool, error)
}

var (
	_ Store = (*assets.SQLiteRepository)(nil)
	_ Store = (*S3Store)(nil)
)

// Open returns the store of the given kind. An empty kind means sqlite.
func Open(ctx context.Context, kind string, db dbx.DBTX, s3cfg S3Config) (Store, error) {
	switch kind {
	case "", KindSQLite:
		return assets.NewSQLiteRepository(db), nil
	case KindS3:
		return NewS3Store(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unknown asset store %q", kind)
	}
}
