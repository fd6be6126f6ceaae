package actions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/dmitrijs2005/offlinesync/internal/dbx"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

const columns = `id, object_alias, action_name, request, status, tries,
	triggered_at, last_sync_attempt_at, synced_at, response, effects`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores a new queued action.
func (r *SQLiteRepository) Insert(ctx context.Context, a *models.QueuedAction) error {
	request, err := json.Marshal(a.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	effects, err := encodeEffects(a.Effects)
	if err != nil {
		return err
	}
	response, err := encodeResponse(a.Response)
	if err != nil {
		return err
	}

	query := `INSERT INTO actions (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.ObjectAlias, a.ActionName, request, string(a.Status), a.Tries,
		a.TriggeredAt.UnixMilli(), timex.UnixMilliPtr(a.LastSyncAttemptAt), timex.UnixMilliPtr(a.SyncedAt),
		response, effects)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// GetByID returns a single action.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.QueuedAction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return a, nil
}

// List returns actions matching f, oldest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]*models.QueuedAction, error) {
	sb := sq.Select(columns).From("actions").OrderBy("triggered_at", "id")
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		sb = sb.Where(sq.Eq{"status": statuses})
	}
	if f.ObjectAlias != "" {
		sb = sb.Where(sq.Eq{"object_alias": f.ObjectAlias})
	}
	if f.IDs != nil {
		sb = sb.Where(sq.Eq{"id": f.IDs})
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select actions: %w", err)
	}
	defer rows.Close()

	var result []*models.QueuedAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Claim moves offline → processing, stamping the attempt.
func (r *SQLiteRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `UPDATE actions SET status = ?, last_sync_attempt_at = ?, tries = tries + 1
		WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(models.StatusProcessing), now.UnixMilli(), id, string(models.StatusOffline))
	if err != nil {
		return false, fmt.Errorf("failed to claim action: %w", err)
	}
	return affectedOne(res)
}

// Heal moves a stale processing row back to offline.
func (r *SQLiteRepository) Heal(ctx context.Context, id string, lastAttempt time.Time) (bool, error) {
	query := `UPDATE actions SET status = ?
		WHERE id = ? AND status = ? AND last_sync_attempt_at = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(models.StatusOffline), id, string(models.StatusProcessing), lastAttempt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to heal action: %w", err)
	}
	return affectedOne(res)
}

// Finish records the attempt outcome.
func (r *SQLiteRepository) Finish(ctx context.Context, id string, status models.Status, resp *models.Response, syncedAt *time.Time) error {
	response, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	query := `UPDATE actions SET status = ?, response = ?, synced_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, string(status), response, timex.UnixMilliPtr(syncedAt), id)
	if err != nil {
		return fmt.Errorf("failed to finish action: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

// Requeue moves error → offline.
func (r *SQLiteRepository) Requeue(ctx context.Context, id string) (bool, error) {
	query := `UPDATE actions SET status = ?, response = NULL WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, string(models.StatusOffline), id, string(models.StatusError))
	if err != nil {
		return false, fmt.Errorf("failed to requeue action: %w", err)
	}
	return affectedOne(res)
}

// Delete removes one action.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	return nil
}

// DeleteAll removes the given actions in one statement.
func (r *SQLiteRepository) DeleteAll(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sq.Delete("actions").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete actions: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(s scanner) (*models.QueuedAction, error) {
	var (
		a                   models.QueuedAction
		request, effects    []byte
		response            []byte
		status              string
		triggeredAt         int64
		lastAttempt, synced sql.NullInt64
	)
	if err := s.Scan(&a.ID, &a.ObjectAlias, &a.ActionName, &request, &status, &a.Tries,
		&triggeredAt, &lastAttempt, &synced, &response, &effects); err != nil {
		return nil, err
	}

	a.Status = models.Status(status)
	a.TriggeredAt = time.UnixMilli(triggeredAt).UTC()
	a.LastSyncAttemptAt = nullTime(lastAttempt)
	a.SyncedAt = nullTime(synced)

	if err := json.Unmarshal(request, &a.Request); err != nil {
		return nil, fmt.Errorf("failed to decode request of %s: %w", a.ID, err)
	}
	if len(effects) > 0 {
		if err := json.Unmarshal(effects, &a.Effects); err != nil {
			return nil, fmt.Errorf("failed to decode effects of %s: %w", a.ID, err)
		}
	}
	if len(response) > 0 {
		a.Response = &models.Response{}
		if err := json.Unmarshal(response, a.Response); err != nil {
			return nil, fmt.Errorf("failed to decode response of %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	return timex.FromUnixMilliPtr(&v.Int64)
}

func encodeEffects(effects []models.Effect) ([]byte, error) {
	if effects == nil {
		effects = []models.Effect{}
	}
	b, err := json.Marshal(effects)
	if err != nil {
		return nil, fmt.Errorf("failed to encode effects: %w", err)
	}
	return b, nil
}

func encodeResponse(resp *models.Response) ([]byte, error) {
	if resp == nil {
		return nil, nil
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return b, nil
}

func affectedOne(res sql.Result) (bool, error) {
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra == 1, nil
}
