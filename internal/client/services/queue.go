package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
	"github.com/google/uuid"
)

// DefaultStaleAfter is how long a processing attempt may stay silent before
// it is read back as offline.
const DefaultStaleAfter = 3 * time.Second

// ListFilter narrows QueueService.List. Zero values match everything.
type ListFilter struct {
	Status       models.Status
	ObjectAlias  string
	RowPredicate func(*models.QueuedAction) bool
}

// TaskRegistrar arms a named deferred task, see scheduler.Scheduler.
type TaskRegistrar interface {
	Register(taskName string)
}

// QueueService owns the durable action queue.
type QueueService interface {
	Enqueue(ctx context.Context, env models.Envelope, objectAlias, actionName string, effects []models.Effect) (string, error)
	// List returns matching actions in enqueue order after healing stale
	// processing entries.
	List(ctx context.Context, f ListFilter) ([]*models.QueuedAction, error)
	Get(ctx context.Context, id string) (*models.QueuedAction, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, ids []string) error
	// GetActionQueueData returns the redacted projection of all actions with
	// the given status, or of all actions when status is empty.
	GetActionQueueData(ctx context.Context, status models.Status) ([]models.ActionQueueView, error)
	// Requeue moves an action in error back to offline. Tries are kept.
	Requeue(ctx context.Context, id string) error
}

// QueueOptions tune a QueueService. Zero values select defaults.
type QueueOptions struct {
	StaleAfter time.Duration
	TaskName   string
	Registrar  TaskRegistrar
	Clock      timex.Clock
	Logger     logging.Logger
}

type queueService struct {
	db         *sql.DB
	staleAfter time.Duration
	taskName   string
	registrar  TaskRegistrar
	clock      timex.Clock
	log        logging.Logger
}

func NewQueueService(db *sql.DB, opts QueueOptions) QueueService {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.TaskName == "" {
		opts.TaskName = DefaultSyncTaskName
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &queueService{
		db:         db,
		staleAfter: opts.StaleAfter,
		taskName:   opts.TaskName,
		registrar:  opts.Registrar,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
}

func (s *queueService) repo() actions.Repository {
	return actions.NewSQLiteRepository(s.db)
}

func (s *queueService) Enqueue(ctx context.Context, env models.Envelope, objectAlias, actionName string, effects []models.Effect) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate action id: %w", err)
	}

	if len(effects) == 0 {
		effects = []models.Effect{{Name: actionName, EffectedObjectAlias: objectAlias}}
	}

	a := &models.QueuedAction{
		ID:          id.String(),
		ObjectAlias: objectAlias,
		ActionName:  actionName,
		Request:     env,
		Status:      models.StatusOffline,
		TriggeredAt: s.clock.Now().UTC(),
		Effects:     effects,
	}
	if err := s.repo().Insert(ctx, a); err != nil {
		return "", fmt.Errorf("enqueue error: %w", err)
	}

	if s.registrar != nil {
		s.registrar.Register(s.taskName)
	}
	s.log.Debug(ctx, "action enqueued", "id", a.ID, "object", objectAlias, "action", actionName)
	return a.ID, nil
}

func (s *queueService) List(ctx context.Context, f ListFilter) ([]*models.QueuedAction, error) {
	repo := s.repo()

	rf := actions.Filter{ObjectAlias: f.ObjectAlias}
	switch f.Status {
	case "":
	case models.StatusOffline:
		// stale processing rows heal into offline and must be seen
		rf.Statuses = []models.Status{models.StatusOffline, models.StatusProcessing}
	default:
		rf.Statuses = []models.Status{f.Status}
	}

	rows, err := repo.List(ctx, rf)
	if err != nil {
		return nil, fmt.Errorf("error listing actions: %w", err)
	}

	result := make([]*models.QueuedAction, 0, len(rows))
	for _, a := range rows {
		a, err = s.heal(ctx, repo, a)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.RowPredicate != nil && !f.RowPredicate(a) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (s *queueService) Get(ctx context.Context, id string) (*models.QueuedAction, error) {
	repo := s.repo()
	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error retrieving action %s: %w", id, err)
	}
	a, err = s.heal(ctx, repo, a)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("error retrieving action %s: %w", id, common.ErrorNotFound)
	}
	return a, nil
}

// heal persists the stale processing → offline correction. When the row
// changed since it was read the fresh row is returned instead; nil means it
// was deleted meanwhile.
func (s *queueService) heal(ctx context.Context, repo actions.Repository, a *models.QueuedAction) (*models.QueuedAction, error) {
	if !a.IsStale(s.clock.Now(), s.staleAfter) {
		return a, nil
	}

	ok, err := repo.Heal(ctx, a.ID, *a.LastSyncAttemptAt)
	if err != nil {
		return nil, fmt.Errorf("error healing action %s: %w", a.ID, err)
	}
	if ok {
		a.Heal(s.clock.Now(), s.staleAfter)
		s.log.Info(ctx, "stale action healed", "id", a.ID, "tries", a.Tries)
		return a, nil
	}

	fresh, err := repo.GetByID(ctx, a.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving action %s: %w", a.ID, err)
	}
	return fresh, nil
}

func (s *queueService) Delete(ctx context.Context, id string) error {
	if err := s.repo().Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting action: %w", err)
	}
	return nil
}

func (s *queueService) DeleteAll(ctx context.Context, ids []string) error {
	if err := s.repo().DeleteAll(ctx, slices.Compact(slices.Sorted(slices.Values(ids)))); err != nil {
		return fmt.Errorf("error deleting actions: %w", err)
	}
	return nil
}

func (s *queueService) GetActionQueueData(ctx context.Context, status models.Status) ([]models.ActionQueueView, error) {
	rows, err := s.List(ctx, ListFilter{Status: status})
	if err != nil {
		return nil, err
	}
	views := make([]models.ActionQueueView, 0, len(rows))
	for _, a := range rows {
		views = append(views, a.View())
	}
	return views, nil
}

func (s *queueService) Requeue(ctx context.Context, id string) error {
	ok, err := s.repo().Requeue(ctx, id)
	if err != nil {
		return fmt.Errorf("error requeueing action: %w", err)
	}
	if !ok {
		if _, err := s.repo().GetByID(ctx, id); err != nil {
			return fmt.Errorf("error requeueing action %s: %w", id, err)
		}
		return fmt.Errorf("action %s is not in error: %w", id, common.ErrorInvalidTransition)
	}
	if s.registrar != nil {
		s.registrar.Register(s.taskName)
	}
	s.log.Info(ctx, "action requeued", "id", id)
	return nil
}
