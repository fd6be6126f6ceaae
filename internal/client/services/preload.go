package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/offlinesync/internal/client/client"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/preloads"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/dmitrijs2005/offlinesync/internal/dbx"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

// ImageSyncer prefetches image urls referenced by preload rows.
type ImageSyncer interface {
	SyncImages(ctx context.Context, urls []string) (int, error)
}

// PreloadService manages cached data sets and reconciles them after sync.
type PreloadService interface {
	Reconciler

	// AddPreload registers a data set. An existing entry keeps its content.
	AddPreload(ctx context.Context, p *models.Preload) error
	// SyncPreload re-fetches one data set and overwrites its content.
	SyncPreload(ctx context.Context, id string) error
	GetPreload(ctx context.Context, id string) (*models.Preload, error)
	ListPreloads(ctx context.Context) ([]*models.Preload, error)
	// MergeRows replaces rows of a cached {"rows": [...]} response that
	// share a key value with one of rows and appends the others.
	MergeRows(ctx context.Context, id, keyColumn string, rows []map[string]any) error
	ResetPreloads(ctx context.Context) error
}

type preloadService struct {
	db     *sql.DB
	client client.Client
	images ImageSyncer
	clock  timex.Clock
	log    logging.Logger
}

func NewPreloadService(db *sql.DB, c client.Client, images ImageSyncer, clock timex.Clock, log logging.Logger) PreloadService {
	if log == nil {
		log = logging.Nop()
	}
	return &preloadService{db: db, client: c, images: images, clock: clock, log: log}
}

func (s *preloadService) AddPreload(ctx context.Context, p *models.Preload) error {
	if p.ID == "" {
		p.ID = p.ObjectAlias
	}
	if p.ID == "" {
		return errors.New("preload needs an id or object alias")
	}

	repo := preloads.NewSQLiteRepository(s.db)
	existing, err := repo.GetByID(ctx, p.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
	case err != nil:
		return fmt.Errorf("error loading preload: %w", err)
	default:
		p.Response = existing.Response
		p.LastSyncAt = existing.LastSyncAt
	}

	if err := repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("error saving preload: %w", err)
	}
	return nil
}

func (s *preloadService) SyncPreload(ctx context.Context, id string) error {
	repo := preloads.NewSQLiteRepository(s.db)
	p, err := repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading preload %s: %w", id, err)
	}
	if err := s.refresh(ctx, p); err != nil {
		return err
	}
	if err := repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("error saving preload %s: %w", id, err)
	}
	s.syncImages(ctx, p)
	return nil
}

func (s *preloadService) refresh(ctx context.Context, p *models.Preload) error {
	data, err := s.client.FetchPreload(ctx, p)
	if err != nil {
		return fmt.Errorf("error fetching preload %s: %w", p.ID, err)
	}
	now := s.clock.Now().UTC()
	p.Response = data
	p.LastSyncAt = &now
	return nil
}

func (s *preloadService) syncImages(ctx context.Context, p *models.Preload) {
	if s.images == nil || len(p.ImageColumns) == 0 {
		return
	}
	urls := imageURLs(p)
	if len(urls) == 0 {
		return
	}
	if _, err := s.images.SyncImages(ctx, urls); err != nil {
		s.log.Warn(ctx, "image prefetch failed", "preload", p.ID, "error", err)
	}
}

func (s *preloadService) GetPreload(ctx context.Context, id string) (*models.Preload, error) {
	p, err := preloads.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading preload %s: %w", id, err)
	}
	return p, nil
}

func (s *preloadService) ListPreloads(ctx context.Context) ([]*models.Preload, error) {
	list, err := preloads.NewSQLiteRepository(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing preloads: %w", err)
	}
	return list, nil
}

func (s *preloadService) ResetPreloads(ctx context.Context) error {
	if err := preloads.NewSQLiteRepository(s.db).Clear(ctx); err != nil {
		return fmt.Errorf("error resetting preloads: %w", err)
	}
	return nil
}

// ReconcileAfterSync refreshes every preload referenced by a synced action's
// effects and deletes the action once all its preloads were refreshed. The
// refreshed content and the deletion commit together, so a failure never
// drops an action whose data is still stale. Synced actions that reference
// no preload are deleted at the end.
func (s *preloadService) ReconcileAfterSync(ctx context.Context) error {
	synced, err := actions.NewSQLiteRepository(s.db).List(ctx, actions.Filter{Statuses: []models.Status{models.StatusSynced}})
	if err != nil {
		return fmt.Errorf("error listing synced actions: %w", err)
	}
	if len(synced) == 0 {
		return nil
	}

	// aliases touched by synced actions, each action listed once per alias
	byAlias := make(map[string][]string)
	for _, a := range synced {
		seen := make(map[string]bool, len(a.Effects))
		for _, e := range a.Effects {
			if e.EffectedObjectAlias == "" || seen[e.EffectedObjectAlias] {
				continue
			}
			seen[e.EffectedObjectAlias] = true
			byAlias[e.EffectedObjectAlias] = append(byAlias[e.EffectedObjectAlias], a.ID)
		}
	}

	repo := preloads.NewSQLiteRepository(s.db)
	var all []*models.Preload
	for alias := range byAlias {
		ps, err := repo.ListByObjectAlias(ctx, alias)
		if err != nil {
			return fmt.Errorf("error listing preloads of %s: %w", alias, err)
		}
		all = append(all, ps...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	pending := make(map[string]int, len(synced))
	byPreload := make(map[string][]string, len(all))
	for _, p := range all {
		ids := byAlias[p.ObjectAlias]
		byPreload[p.ID] = ids
		for _, id := range ids {
			pending[id]++
		}
	}

	var errs []error
	for _, p := range all {
		ids := byPreload[p.ID]
		if len(ids) == 0 {
			continue
		}

		if err := s.refresh(ctx, p); err != nil {
			s.log.Warn(ctx, "preload refresh failed, keeping synced actions", "preload", p.ID, "actions", len(ids), "error", err)
			errs = append(errs, err)
			continue
		}

		var done []string
		for _, id := range ids {
			if pending[id] == 1 {
				done = append(done, id)
			}
		}

		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := preloads.NewSQLiteRepository(tx).Upsert(ctx, p); err != nil {
				return err
			}
			return actions.NewSQLiteRepository(tx).DeleteAll(ctx, done)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("error saving preload %s: %w", p.ID, err))
			continue
		}

		for _, id := range ids {
			pending[id]--
		}
		s.log.Info(ctx, "preload reconciled", "preload", p.ID, "deleted_actions", len(done))
		s.syncImages(ctx, p)
	}

	var orphans []string
	for _, a := range synced {
		if _, ok := pending[a.ID]; !ok {
			orphans = append(orphans, a.ID)
		}
	}
	if len(orphans) > 0 {
		if err := actions.NewSQLiteRepository(s.db).DeleteAll(ctx, orphans); err != nil {
			errs = append(errs, fmt.Errorf("error deleting synced actions: %w", err))
		}
	}

	return errors.Join(errs...)
}

type rowsDocument struct {
	Rows []map[string]any `json:"rows"`
}

func (s *preloadService) MergeRows(ctx context.Context, id, keyColumn string, rows []map[string]any) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := preloads.NewSQLiteRepository(tx)
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("error loading preload %s: %w", id, err)
		}

		merged, err := MergeRows(p.Response, keyColumn, rows)
		if err != nil {
			return fmt.Errorf("error merging rows into %s: %w", id, err)
		}
		p.Response = merged

		if err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("error saving preload %s: %w", id, err)
		}
		return nil
	})
}

// MergeRows merges rows into a {"rows": [...]} document by keyColumn. Other
// top-level members of doc are preserved. An empty doc starts a new one.
func MergeRows(doc json.RawMessage, keyColumn string, rows []map[string]any) (json.RawMessage, error) {
	top := map[string]json.RawMessage{}
	if len(doc) > 0 && string(doc) != "null" {
		if err := json.Unmarshal(doc, &top); err != nil {
			return nil, fmt.Errorf("cached response is not an object: %w", err)
		}
	}

	var current rowsDocument
	if raw, ok := top["rows"]; ok {
		if err := json.Unmarshal(raw, &current.Rows); err != nil {
			return nil, fmt.Errorf("cached rows are not a list of objects: %w", err)
		}
	}

	index := make(map[string]int, len(current.Rows))
	for i, r := range current.Rows {
		if k, ok := rowKey(r, keyColumn); ok {
			index[k] = i
		}
	}

	for _, r := range rows {
		k, ok := rowKey(r, keyColumn)
		if !ok {
			current.Rows = append(current.Rows, r)
			continue
		}
		if i, found := index[k]; found {
			current.Rows[i] = r
			continue
		}
		index[k] = len(current.Rows)
		current.Rows = append(current.Rows, r)
	}

	if current.Rows == nil {
		current.Rows = []map[string]any{}
	}
	raw, err := json.Marshal(current.Rows)
	if err != nil {
		return nil, err
	}
	top["rows"] = raw
	return json.Marshal(top)
}

func rowKey(r map[string]any, keyColumn string) (string, bool) {
	v, ok := r[keyColumn]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// imageURLs collects distinct string values of the image columns of every
// cached row.
func imageURLs(p *models.Preload) []string {
	var doc rowsDocument
	if len(p.Response) == 0 || json.Unmarshal(p.Response, &doc) != nil {
		return nil
	}

	var urls []string
	for _, r := range doc.Rows {
		for _, col := range p.ImageColumns {
			if u, ok := r[col].(string); ok && u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
