package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT device_id FROM device_identity WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get device id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, id string, now time.Time) (string, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_identity (id, device_id, created_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to create device id: %w", err)
	}
	return r.Get(ctx)
}
