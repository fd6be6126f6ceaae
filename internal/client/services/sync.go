package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/client"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
	"golang.org/x/sync/singleflight"
)

// DefaultSyncTaskName is the deferred task armed whenever an action is queued.
const DefaultSyncTaskName = "OfflineActionSync"

// ErrBatchAborted is matched by errors returned from SyncMany when the batch
// stopped before its last entry.
var ErrBatchAborted = errors.New("sync batch aborted")

// BatchError describes where SyncMany stopped. Entries before StoppedAt may
// already be synced; they are not rolled back.
type BatchError struct {
	StoppedAt string
	// Status is the state the stopping action was left in; empty when the
	// stop came from a store failure.
	Status    models.Status
	Remaining []string
	Err       error
}

// Retryable reports whether running the batch again may change the outcome.
// A server rejection is terminal: a retry would only move past it.
func (e *BatchError) Retryable() bool {
	return e.Status != models.StatusError
}

func (e *BatchError) Error() string {
	msg := fmt.Sprintf("sync batch aborted at %s, %d remaining", e.StoppedAt, len(e.Remaining))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBatchAborted}
	}
	return []error{ErrBatchAborted, e.Err}
}

// Reconciler refreshes cached data once synced actions are known.
type Reconciler interface {
	ReconcileAfterSync(ctx context.Context) error
}

// SyncService drives the network exchange for queued actions.
type SyncService interface {
	// SyncOne attempts one action. It reports true when the action is synced
	// or when there was nothing to do, false when the attempt failed. The
	// error is reserved for local store failures.
	SyncOne(ctx context.Context, id string) (bool, error)
	// SyncMany attempts ids strictly in order and stops at the first failure.
	// Reconciliation always runs afterwards.
	SyncMany(ctx context.Context, ids []string) error
	// SyncOffline drains every offline action in enqueue order.
	SyncOffline(ctx context.Context) error
}

type syncService struct {
	queue      QueueService
	repo       actions.Repository
	client     client.Client
	device     DeviceService
	reconciler Reconciler
	clock      timex.Clock
	log        logging.Logger

	group singleflight.Group

	// inflight holds ids whose request is still outstanding in this
	// process. The stale heal may return such a row to offline while the
	// request runs; this set keeps it from being sent twice.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewSyncService(queue QueueService, repo actions.Repository, c client.Client, device DeviceService, reconciler Reconciler, clock timex.Clock, log logging.Logger) SyncService {
	if log == nil {
		log = logging.Nop()
	}
	return &syncService{
		queue:      queue,
		repo:       repo,
		client:     c,
		device:     device,
		reconciler: reconciler,
		clock:      clock,
		log:        log,
		inflight:   make(map[string]struct{}),
	}
}

func (s *syncService) acquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *syncService) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

func (s *syncService) SyncOne(ctx context.Context, id string) (bool, error) {
	ok, _, err := s.attempt(ctx, id)
	return ok, err
}

// attempt is SyncOne that also reports the status the action was left in.
func (s *syncService) attempt(ctx context.Context, id string) (bool, models.Status, error) {
	if !s.acquire(id) {
		s.log.Debug(ctx, "sync already in flight", "id", id)
		return true, models.StatusProcessing, nil
	}
	defer s.release(id)

	a, err := s.queue.Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return true, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if a.Status != models.StatusOffline {
		s.log.Debug(ctx, "sync skipped", "id", id, "status", a.Status)
		return true, a.Status, nil
	}

	deviceID, err := s.device.GetOrCreate(ctx)
	if err != nil {
		return false, "", err
	}

	claimed, err := s.repo.Claim(ctx, id, s.clock.Now())
	if err != nil {
		return false, "", fmt.Errorf("error claiming action %s: %w", id, err)
	}
	if !claimed {
		s.log.Debug(ctx, "sync claimed elsewhere", "id", id)
		return true, models.StatusProcessing, nil
	}

	resp, sendErr := s.client.Send(ctx, a, deviceID)
	status, stored := Classify(resp, sendErr)

	var syncedAt *time.Time
	if status == models.StatusSynced {
		now := s.clock.Now().UTC()
		syncedAt = &now
	}

	// the attempt outcome must be recorded even when ctx was cancelled
	// mid-request, otherwise the row waits for the stale heal
	if err := s.repo.Finish(context.WithoutCancel(ctx), id, status, stored, syncedAt); err != nil {
		return false, "", fmt.Errorf("error recording sync result for %s: %w", id, err)
	}

	s.log.Info(ctx, "sync attempt finished", "id", id, "status", status, "tries", a.Tries+1, "http_status", stored.StatusCode)
	return status == models.StatusSynced, status, nil
}

func (s *syncService) SyncMany(ctx context.Context, ids []string) error {
	var batchErr error

	for i, id := range ids {
		ok, status, err := s.attempt(ctx, id)
		if err != nil || !ok {
			batchErr = &BatchError{StoppedAt: id, Status: status, Remaining: append([]string(nil), ids[i+1:]...), Err: err}
			s.log.Warn(ctx, "sync batch aborted", "stopped_at", id, "remaining", len(ids)-i-1)
			break
		}
	}

	var recErr error
	if s.reconciler != nil {
		recErr = s.reconciler.ReconcileAfterSync(ctx)
	}
	return errors.Join(batchErr, recErr)
}

func (s *syncService) SyncOffline(ctx context.Context) error {
	_, err, shared := s.group.Do("sync-offline", func() (any, error) {
		rows, err := s.queue.List(ctx, ListFilter{Status: models.StatusOffline})
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(rows))
		for _, a := range rows {
			ids = append(ids, a.ID)
		}
		return nil, s.SyncMany(ctx, ids)
	})
	if shared {
		s.log.Debug(ctx, "sync offline joined running drain")
	}
	return err
}

// Classify maps the outcome of a send to the next action status and the
// response to store.
//
//   - no response (transport failure, timeout): offline
//   - non-2xx: offline
//   - 2xx with a JSON body without a top-level "error" member, or an empty
//     body: synced
//   - any other 2xx: error
func Classify(resp *models.Response, err error) (models.Status, *models.Response) {
	if err != nil || resp == nil {
		msg := "no response"
		if err != nil {
			msg = err.Error()
		}
		return models.StatusOffline, &models.Response{Error: msg}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.StatusOffline, resp
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return models.StatusSynced, resp
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.StatusError, &models.Response{StatusCode: resp.StatusCode, Body: resp.Body, Error: "unparseable response body"}
	}
	if obj, ok := doc.(map[string]any); ok {
		if v, found := obj["error"]; found && v != nil && v != false && !isBlank(v) {
			return models.StatusError, &models.Response{StatusCode: resp.StatusCode, Body: resp.Body, Error: fmt.Sprint(v)}
		}
	}
	return models.StatusSynced, resp
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
