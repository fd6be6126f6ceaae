package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/dmitrijs2005/offlinesync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Put never fails on a duplicate key: the row is updated in place.
func (r *SQLiteRepository) Put(ctx context.Context, e *models.CachedRequest) error {
	query := `INSERT INTO request_cache (cache_name, key, response, timestamp) VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_name, key) DO UPDATE SET response = excluded.response, timestamp = excluded.timestamp`
	_, err := r.db.ExecContext(ctx, query, e.CacheName, e.Key, e.Response, e.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put cached request: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, cacheName, key string) (*models.CachedRequest, error) {
	var (
		e  = models.CachedRequest{CacheName: cacheName, Key: key}
		ts int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT response, timestamp FROM request_cache WHERE cache_name = ? AND key = ?`, cacheName, key).
		Scan(&e.Response, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached request: %w", err)
	}
	e.Timestamp = time.UnixMilli(ts).UTC()
	return &e, nil
}

func (r *SQLiteRepository) Count(ctx context.Context, cacheName string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_cache WHERE cache_name = ?`, cacheName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached requests: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Evict(ctx context.Context, cacheName string, maxEntries int, olderThan time.Time) (int64, error) {
	var removed int64

	if !olderThan.IsZero() {
		query, args, err := sq.Delete("request_cache").
			Where(sq.Eq{"cache_name": cacheName}).
			Where(sq.Lt{"timestamp": olderThan.UnixMilli()}).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build eviction query: %w", err)
		}
		n, err := r.exec(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		removed += n
	}

	if maxEntries > 0 {
		query, args, err := sq.Delete("request_cache").
			Where(sq.Eq{"cache_name": cacheName}).
			Where(sq.Expr(`key NOT IN (SELECT key FROM request_cache WHERE cache_name = ?
				ORDER BY timestamp DESC, key LIMIT ?)`, cacheName, maxEntries)).
			ToSql()
		if err != nil {
			return removed, fmt.Errorf("failed to build trim query: %w", err)
		}
		n, err := r.exec(ctx, query, args...)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	return removed, nil
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to evict cached requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
