package driver

import (
	"context"
	"sync"

	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]Driver
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[types.ID]Driver)}
}

func (s *MemoryStore) Upsert(_ context.Context, d Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = d
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) Vehicles(_ context.Context, ids []types.ID) (map[types.ID]vehicle.Specification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.ID]vehicle.Specification, len(ids))
	for _, id := range ids {
		if d, ok := s.drivers[id]; ok {
			out[id] = d.Vehicle
		}
	}
	return out, nil
}
