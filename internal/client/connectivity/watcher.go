package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/logging"
)

// ChangeFunc is called with the previous and the new level on every
// transition.
type ChangeFunc func(ctx context.Context, prev, cur Level)

// Watcher polls a Prober and keeps the last observed level. It also
// satisfies Prober by returning that level without probing.
type Watcher struct {
	probe    Prober
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	mu        sync.RWMutex
	level     Level
	listeners []ChangeFunc
}

func NewWatcher(probe Prober, interval, timeout time.Duration, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{probe: probe, interval: interval, timeout: timeout, log: log, level: Offline}
}

// OnChange registers fn for transitions. It must be called before Run.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Watcher) Level() Level {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.level
}

func (w *Watcher) Classify(context.Context) Level {
	return w.Level()
}

// Check probes once and notifies listeners when the level changed.
func (w *Watcher) Check(ctx context.Context) Level {
	pctx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	cur := w.probe.Classify(pctx)

	w.mu.Lock()
	prev := w.level
	w.level = cur
	listeners := append([]ChangeFunc(nil), w.listeners...)
	w.mu.Unlock()

	if prev != cur {
		w.log.Info(ctx, "connectivity changed", "from", prev.String(), "to", cur.String())
		for _, fn := range listeners {
			fn(ctx, prev, cur)
		}
	}
	return cur
}

// Run checks immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
