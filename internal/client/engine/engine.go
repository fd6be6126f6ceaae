package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/offlinesync/internal/client/assetstore"
	"github.com/dmitrijs2005/offlinesync/internal/client/client"
	"github.com/dmitrijs2005/offlinesync/internal/client/config"
	"github.com/dmitrijs2005/offlinesync/internal/client/connectivity"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/requests"
	"github.com/dmitrijs2005/offlinesync/internal/client/requestcache"
	"github.com/dmitrijs2005/offlinesync/internal/client/scheduler"
	"github.com/dmitrijs2005/offlinesync/internal/client/services"
	"github.com/dmitrijs2005/offlinesync/internal/client/store"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// Deps are optional collaborators. Zero values are built from the config.
type Deps struct {
	Client    client.Client
	Prober    connectivity.Prober
	Transport http.RoundTripper
	Logger    logging.Logger
	Clock     timex.Clock
}

type Engine struct {
	cfg *config.Config
	log logging.Logger
	db  *sql.DB

	mu   sync.RWMutex
	mode Mode

	queue    services.QueueService
	device   services.DeviceService
	effects  services.EffectsService
	preloads services.PreloadService
	sync     services.SyncService
	assets   services.AssetService

	assetStore assetstore.Store
	cache      *requestcache.Cache
	swr        *requestcache.StaleWhileRevalidate
	transport  http.RoundTripper
	scheduler  *scheduler.Scheduler
	watcher    *connectivity.Watcher
	wake       chan struct{}
}

// Open builds an engine. A store that cannot be opened yields a disabled
// engine and a nil error; other setup failures are returned.
func Open(ctx context.Context, cfg *config.Config, deps Deps) (*Engine, error) {
	log := deps.Logger
	if log == nil {
		log = logging.Nop()
	}
	next := deps.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	db, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			log.Warn(ctx, "local store unavailable, offline features disabled", "dsn", cfg.DatabaseDSN, "error", err)
			return &Engine{cfg: cfg, log: log, mode: ModeDisabled, transport: next}, nil
		}
		return nil, err
	}

	e, err := build(ctx, cfg, deps, db, log, next)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func build(ctx context.Context, cfg *config.Config, deps Deps, db *sql.DB, log logging.Logger, next http.RoundTripper) (*Engine, error) {
	c := deps.Client
	if c == nil {
		hc, err := client.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout)
		if err != nil {
			return nil, err
		}
		c = hc
	}

	prober := deps.Prober
	if prober == nil {
		prober = connectivity.NewHTTPProbe(cfg.ServerURL, cfg.RequestTimeout, cfg.DegradedLatency)
	}

	as, err := assetstore.Open(ctx, cfg.AssetStore, db, assetstore.S3Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open asset store: %w", err)
	}

	e := &Engine{cfg: cfg, log: log, db: db, mode: ModeOffline, assetStore: as}

	e.scheduler = scheduler.New(scheduler.Options{
		MaxRetries: uint64(max(cfg.SyncMaxRetries, 0)),
		Backoff:    cfg.SyncBackoff,
		Logger:     log.With("component", "scheduler"),
	})

	e.queue = services.NewQueueService(db, services.QueueOptions{
		StaleAfter: cfg.StaleAfter,
		TaskName:   cfg.SyncTaskName,
		Registrar:  e.scheduler,
		Clock:      deps.Clock,
		Logger:     log.With("component", "queue"),
	})
	e.device = services.NewDeviceService(db, deps.Clock)
	e.effects = services.NewEffectsService(e.queue)
	e.assets = services.NewAssetService(c, as, deps.Clock, log.With("component", "assets"))
	e.preloads = services.NewPreloadService(db, c, e.assets, deps.Clock, log.With("component", "preloads"))
	e.sync = services.NewSyncService(e.queue, actions.NewSQLiteRepository(db), c, e.device, e.preloads, deps.Clock, log.With("component", "sync"))

	e.scheduler.OnInvoke(cfg.SyncTaskName, e.sync.SyncOffline)

	e.watcher = connectivity.NewWatcher(prober, cfg.OnlineCheckInterval, cfg.RequestTimeout, log.With("component", "connectivity"))
	e.wake = make(chan struct{}, 1)
	e.watcher.OnChange(e.onLevelChange)

	// Both strategies share one partition so responses cached while online
	// are served offline.
	limits := requestcache.Limits{MaxEntries: cfg.CacheMaxEntries, MaxAge: cfg.CacheMaxAge}
	e.cache = requestcache.New(requests.NewSQLiteRepository(db), requestcache.DefaultCacheName, deps.Clock, log.With("component", "requestcache"))
	e.swr = &requestcache.StaleWhileRevalidate{
		Cache:  e.cache,
		Next:   next,
		Limits: limits,
		Log:    log,
	}
	e.transport = &requestcache.Selector{
		Prober:        e.watcher,
		CacheFavoring: e.swr,
		NetworkFavoring: &requestcache.NetworkFirst{
			Cache:  e.cache,
			Next:   next,
			Limits: limits,
			Log:    log,
		},
	}

	// the sync task registration does not survive a restart
	pending, err := e.queue.List(ctx, services.ListFilter{Status: models.StatusOffline})
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		e.scheduler.Register(cfg.SyncTaskName)
	}

	return e, nil
}

func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

func (e *Engine) setMode(ctx context.Context, mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != mode && e.mode != ModeDisabled {
		e.mode = mode
		e.log.Info(ctx, "switched mode", "mode", string(mode))
	}
}

// onLevelChange switches the mode and wakes the scheduler when the server
// becomes reachable.
func (e *Engine) onLevelChange(ctx context.Context, _, cur connectivity.Level) {
	if cur != connectivity.Online {
		e.setMode(ctx, ModeOffline)
		return
	}
	e.setMode(ctx, ModeOnline)
	e.wakeScheduler()
}

func (e *Engine) wakeScheduler() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) disabled() bool {
	return e.Mode() == ModeDisabled
}

// Run watches connectivity and triggers the deferred sync task whenever the
// server becomes reachable. It returns when ctx is done.
func (e *Engine) Run(ctx context.Context) {
	if e.disabled() {
		<-ctx.Done()
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.scheduler.Run(ctx, e.wake)
	}()

	e.watcher.Run(ctx)
	wg.Wait()
}

// Close waits for background cache revalidation and closes the store.
func (e *Engine) Close() error {
	if e.disabled() {
		return nil
	}
	e.swr.Wait()
	return e.db.Close()
}

// Transport is an http.RoundTripper that serves requests through the
// connectivity-selected cache strategy. A disabled engine passes requests
// straight to the network.
func (e *Engine) Transport() http.RoundTripper {
	return e.transport
}

// Level reports the last observed connectivity.
func (e *Engine) Level() connectivity.Level {
	if e.disabled() {
		return connectivity.Offline
	}
	return e.watcher.Level()
}

// CheckConnectivity probes once, updating Level and Mode.
func (e *Engine) CheckConnectivity(ctx context.Context) connectivity.Level {
	if e.disabled() {
		return connectivity.Offline
	}
	return e.watcher.Check(ctx)
}

// TriggerScheduled runs the armed deferred tasks now.
func (e *Engine) TriggerScheduled(ctx context.Context) error {
	if e.disabled() {
		return nil
	}
	return e.scheduler.Trigger(ctx)
}
