package preloads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/dmitrijs2005/offlinesync/internal/dbx"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

const columns = `id, object_alias, page, widget, data_columns, image_columns, response, last_sync_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Preload) error {
	dataColumns, err := encodeColumns(p.DataColumns)
	if err != nil {
		return err
	}
	imageColumns, err := encodeColumns(p.ImageColumns)
	if err != nil {
		return err
	}

	var response any
	if len(p.Response) > 0 {
		response = []byte(p.Response)
	}

	query := `INSERT INTO preloads (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET object_alias = excluded.object_alias,
			page = excluded.page,
			widget = excluded.widget,
			data_columns = excluded.data_columns,
			image_columns = excluded.image_columns,
			response = excluded.response,
			last_sync_at = excluded.last_sync_at`
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.ObjectAlias, p.Page, p.Widget, dataColumns, imageColumns, response, timex.UnixMilliPtr(p.LastSyncAt))
	if err != nil {
		return fmt.Errorf("failed to upsert preload[%s]: %w", p.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Preload, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM preloads WHERE id = ?`, id)
	p, err := scanPreload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preload[%s]: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Preload, error) {
	return r.query(ctx, `SELECT `+columns+` FROM preloads ORDER BY id`)
}

func (r *SQLiteRepository) ListByObjectAlias(ctx context.Context, alias string) ([]*models.Preload, error) {
	return r.query(ctx, `SELECT `+columns+` FROM preloads WHERE object_alias = ? ORDER BY id`, alias)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM preloads`); err != nil {
		return fmt.Errorf("failed to clear preloads: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Preload, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list preloads: %w", err)
	}
	defer rows.Close()

	var result []*models.Preload
	for rows.Next() {
		p, err := scanPreload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preload row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preload rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreload(s scanner) (*models.Preload, error) {
	var (
		p                         models.Preload
		dataColumns, imageColumns []byte
		response                  []byte
		lastSync                  sql.NullInt64
	)
	if err := s.Scan(&p.ID, &p.ObjectAlias, &p.Page, &p.Widget, &dataColumns, &imageColumns, &response, &lastSync); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dataColumns, &p.DataColumns); err != nil {
		return nil, fmt.Errorf("failed to decode data columns: %w", err)
	}
	if err := json.Unmarshal(imageColumns, &p.ImageColumns); err != nil {
		return nil, fmt.Errorf("failed to decode image columns: %w", err)
	}
	if len(response) > 0 {
		p.Response = json.RawMessage(response)
	}
	if lastSync.Valid {
		p.LastSyncAt = timex.FromUnixMilliPtr(&lastSync.Int64)
	}
	return &p, nil
}

func encodeColumns(cols []string) ([]byte, error) {
	if cols == nil {
		cols = []string{}
	}
	b, err := json.Marshal(cols)
	if err != nil {
		return nil, fmt.Errorf("failed to encode columns: %w", err)
	}
	return b, nil
}
