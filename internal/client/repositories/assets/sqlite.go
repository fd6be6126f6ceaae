package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *SQLiteRepository) Put(ctx context.Context, a *models.Asset) error {
	body := a.Body
	if body == nil {
		body = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (url, content_type, body, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET content_type = excluded.content_type,
			body = excluded.body, fetched_at = excluded.fetched_at
	`, a.URL, a.ContentType, body, a.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put asset %s: %w", a.URL, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, url string) (*models.Asset, error) {
	a := models.Asset{URL: url}
	var fetched int64
	err := r.db.QueryRowContext(ctx,
		`SELECT content_type, body, fetched_at FROM assets WHERE url = ?`, url).
		Scan(&a.ContentType, &a.Body, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", url, err)
	}
	a.FetchedAt = time.UnixMilli(fetched).UTC()
	return &a, nil
}

func (r *SQLiteRepository) Has(ctx context.Context, url string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check asset %s: %w", url, err)
	}
	return n > 0, nil
}
