// Package scheduler runs named deferred tasks when the host decides the
// time is right, typically on connectivity restore.
//
// A task is armed by Register, bound to a handler by OnInvoke and executed
// by Trigger. A task whose handler succeeds is disarmed; a failing task
// stays armed for the next trigger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/sethvargo/go-retry"
)

type Handler func(ctx context.Context) error

type Options struct {
	// MaxRetries bounds retries of one handler within a trigger.
	MaxRetries uint64
	// Backoff is the first retry delay; it doubles on every retry.
	Backoff time.Duration
	Logger  logging.Logger
}

type Scheduler struct {
	opts Options
	log  logging.Logger

	mu       sync.Mutex
	armed    map[string]uint64
	handlers map[string]Handler
	running  sync.Mutex
}

func New(opts Options) *Scheduler {
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		opts:     opts,
		log:      log,
		armed:    make(map[string]uint64),
		handlers: make(map[string]Handler),
	}
}

// Register arms taskName. Arming an armed task is a no-op apart from making
// sure a run already in progress does not disarm it.
func (s *Scheduler) Register(taskName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed[taskName]++
}

func (s *Scheduler) OnInvoke(taskName string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskName] = h
}

func (s *Scheduler) Armed(taskName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[taskName]
	return ok
}

// Trigger runs every armed task that has a handler, in name order.
func (s *Scheduler) Trigger(ctx context.Context) error {
	s.running.Lock()
	defer s.running.Unlock()

	type job struct {
		name string
		gen  uint64
		h    Handler
	}

	s.mu.Lock()
	var jobs []job
	for name, gen := range s.armed {
		if h, ok := s.handlers[name]; ok {
			jobs = append(jobs, job{name: name, gen: gen, h: h})
		}
	}
	s.mu.Unlock()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].name < jobs[j].name })

	var errs []error
	for _, j := range jobs {
		if err := s.run(ctx, j.name, j.h); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", j.name, err))
			continue
		}
		s.mu.Lock()
		if s.armed[j.name] == j.gen {
			delete(s.armed, j.name)
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Scheduler) run(ctx context.Context, name string, h Handler) error {
	b := retry.WithMaxRetries(s.opts.MaxRetries, retry.NewExponential(s.opts.Backoff))

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := h(ctx); err != nil {
			s.log.Warn(ctx, "task failed", "task", name, "attempt", attempt, "error", err)
			if !retryable(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		s.log.Debug(ctx, "task done", "task", name, "attempt", attempt)
		return nil
	})
}

// retryable lets an error opt out of retries by implementing
// Retryable() bool anywhere in its chain.
func retryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// Run triggers on every signal received from wake until ctx is done.
func (s *Scheduler) Run(ctx context.Context, wake <-chan struct{}) {
	for {
		select {
		case <-wake:
			if err := s.Trigger(ctx); err != nil {
				s.log.Error(ctx, "scheduled tasks failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
