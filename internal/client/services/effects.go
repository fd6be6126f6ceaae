package services

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
)

// EffectsService derives which cached objects and rows are dirty because
// offline actions against them are still waiting to be synced.
type EffectsService interface {
	// GetEffects flattens the effects of offline actions that point at
	// objectAlias. Each effect carries the id of its owning action.
	GetEffects(ctx context.Context, objectAlias string) ([]models.Effect, error)
	// DirtyKeys returns the sorted distinct key values declared for
	// objectAlias and keyColumn.
	DirtyKeys(ctx context.Context, objectAlias, keyColumn string) ([]string, error)
	IsDirty(ctx context.Context, objectAlias, keyColumn, key string) (bool, error)
}

type effectsService struct {
	queue QueueService
}

func NewEffectsService(queue QueueService) EffectsService {
	return &effectsService{queue: queue}
}

func (s *effectsService) GetEffects(ctx context.Context, objectAlias string) ([]models.Effect, error) {
	rows, err := s.queue.List(ctx, ListFilter{Status: models.StatusOffline})
	if err != nil {
		return nil, err
	}

	var result []models.Effect
	for _, a := range rows {
		for _, e := range a.Effects {
			if e.EffectedObjectAlias != objectAlias {
				continue
			}
			e.ActionID = a.ID
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *effectsService) DirtyKeys(ctx context.Context, objectAlias, keyColumn string) ([]string, error) {
	effects, err := s.GetEffects(ctx, objectAlias)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range effects {
		if e.KeyColumn == keyColumn {
			keys = append(keys, e.KeyValues...)
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (s *effectsService) IsDirty(ctx context.Context, objectAlias, keyColumn, key string) (bool, error) {
	keys, err := s.DirtyKeys(ctx, objectAlias, keyColumn)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(keys, key)
	return found, nil
}
