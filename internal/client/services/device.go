package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/device"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

// DeviceService hands out the installation-wide device id.
type DeviceService interface {
	// GetOrCreate returns the persisted id, creating it on first use.
	GetOrCreate(ctx context.Context) (string, error)
}

type deviceService struct {
	db    *sql.DB
	clock timex.Clock

	mu sync.Mutex
	id string
}

func NewDeviceService(db *sql.DB, clock timex.Clock) DeviceService {
	return &deviceService{db: db, clock: clock}
}

func (s *deviceService) GetOrCreate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != "" {
		return s.id, nil
	}

	repo := device.NewSQLiteRepository(s.db)
	id, err := repo.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("error loading device id: %w", err)
	}

	if id == "" {
		now := s.clock.Now()
		candidate, err := common.MakeTimeRandID(now)
		if err != nil {
			return "", fmt.Errorf("error generating device id: %w", err)
		}
		// another process may have won; Create returns the stored id
		id, err = repo.Create(ctx, candidate, now)
		if err != nil {
			return "", fmt.Errorf("error saving device id: %w", err)
		}
	}

	s.id = id
	return id, nil
}
