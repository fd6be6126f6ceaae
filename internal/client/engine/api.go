package engine

import (
	"context"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/requestcache"
	"github.com/dmitrijs2005/offlinesync/internal/client/services"
)

// Queue.

// Enqueue stores a new offline action and arms the sync task. While online
// the scheduler is woken right away. A disabled engine returns an empty id.
func (e *Engine) Enqueue(ctx context.Context, env models.Envelope, objectAlias, actionName string, effects []models.Effect) (string, error) {
	if e.disabled() {
		return "", nil
	}
	id, err := e.queue.Enqueue(ctx, env, objectAlias, actionName, effects)
	if err != nil {
		return "", err
	}
	if e.Mode() == ModeOnline {
		e.wakeScheduler()
	}
	return id, nil
}

func (e *Engine) List(ctx context.Context, f services.ListFilter) ([]*models.QueuedAction, error) {
	if e.disabled() {
		return nil, nil
	}
	return e.queue.List(ctx, f)
}

// Get returns nil when the engine is disabled.
func (e *Engine) Get(ctx context.Context, id string) (*models.QueuedAction, error) {
	if e.disabled() {
		return nil, nil
	}
	return e.queue.Get(ctx, id)
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	if e.disabled() {
		return nil
	}
	return e.queue.Delete(ctx, id)
}

func (e *Engine) DeleteAll(ctx context.Context, ids []string) error {
	if e.disabled() {
		return nil
	}
	return e.queue.DeleteAll(ctx, ids)
}

func (e *Engine) Requeue(ctx context.Context, id string) error {
	if e.disabled() {
		return nil
	}
	return e.queue.Requeue(ctx, id)
}

func (e *Engine) GetActionQueueData(ctx context.Context, status models.Status) ([]models.ActionQueueView, error) {
	if e.disabled() {
		return nil, nil
	}
	return e.queue.GetActionQueueData(ctx, status)
}

// Effects.

func (e *Engine) GetEffects(ctx context.Context, objectAlias string) ([]models.Effect, error) {
	if e.disabled() {
		return nil, nil
	}
	return e.effects.GetEffects(ctx, objectAlias)
}

func (e *Engine) DirtyKeys(ctx context.Context, objectAlias, keyColumn string) ([]string, error) {
	if e.disabled() {
		return nil, nil
	}
	return e.effects.DirtyKeys(ctx, objectAlias, keyColumn)
}

func (e *Engine) IsDirty(ctx context.Context, objectAlias, keyColumn, key string) (bool, error) {
	if e.disabled() {
		return false, nil
	}
	return e.effects.IsDirty(ctx, objectAlias, keyColumn, key)
}

// Sync.

// SyncOne reports true on a disabled engine: there is nothing to sync.
func (e *Engine) SyncOne(ctx context.Context, id string) (bool, error) {
	if e.disabled() {
		return true, nil
	}
	return e.sync.SyncOne(ctx, id)
}

func (e *Engine) SyncMany(ctx context.Context, ids []string) error {
	if e.disabled() {
		return nil
	}
	return e.sync.SyncMany(ctx, ids)
}

func (e *Engine) SyncOffline(ctx context.Context) error {
	if e.disabled() {
		return nil
	}
	return e.sync.SyncOffline(ctx)
}

// Preloads.

func (e *Engine) AddPreload(ctx context.Context, p *models.Preload) error {
	if e.disabled() {
		return nil
	}
	return e.preloads.AddPreload(ctx, p)
}

func (e *Engine) SyncPreload(ctx context.Context, id string) error {
	if e.disabled() {
		return nil
	}
	return e.preloads.SyncPreload(ctx, id)
}

func (e *Engine) GetPreload(ctx context.Context, id string) (*models.Preload, error) {
	if e.disabled() {
		return nil, nil
	}
	return e.preloads.GetPreload(ctx, id)
}

func (e *Engine) ListPreloads(ctx context.Context) ([]*models.Preload, error) {
	if e.disabled() {
		return nil, nil
	}
	return e.preloads.ListPreloads(ctx)
}

func (e *Engine) MergeRows(ctx context.Context, id, keyColumn string, rows []map[string]any) error {
	if e.disabled() {
		return nil
	}
	return e.preloads.MergeRows(ctx, id, keyColumn, rows)
}

func (e *Engine) ResetPreloads(ctx context.Context) error {
	if e.disabled() {
		return nil
	}
	return e.preloads.ResetPreloads(ctx)
}

func (e *Engine) ReconcileAfterSync(ctx context.Context) error {
	if e.disabled() {
		return nil
	}
	return e.preloads.ReconcileAfterSync(ctx)
}

// Request cache and assets.

// CachePut stores resp under req in the default request cache.
func (e *Engine) CachePut(ctx context.Context, req requestcache.Request, resp requestcache.Response) error {
	if e.disabled() {
		return nil
	}
	return e.cache.Put(ctx, req, resp)
}

// CacheMatch never fails: a miss, or a disabled engine, yields the synthesized
// 503 response.
func (e *Engine) CacheMatch(ctx context.Context, req requestcache.Request) requestcache.Response {
	if e.disabled() {
		return requestcache.Unavailable()
	}
	return e.cache.Match(ctx, req)
}

func (e *Engine) SyncImages(ctx context.Context, urls []string) (int, error) {
	if e.disabled() {
		return 0, nil
	}
	return e.assets.SyncImages(ctx, urls)
}

// Asset returns a stored asset body, or nil when it is not stored.
func (e *Engine) Asset(ctx context.Context, url string) (*models.Asset, error) {
	if e.disabled() {
		return nil, nil
	}
	ok, err := e.assetStore.Has(ctx, url)
	if err != nil || !ok {
		return nil, err
	}
	return e.assetStore.Get(ctx, url)
}

// DeviceID returns the persistent device identity, or "" when disabled.
func (e *Engine) DeviceID(ctx context.Context) (string, error) {
	if e.disabled() {
		return "", nil
	}
	return e.device.GetOrCreate(ctx)
}
