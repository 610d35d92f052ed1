// README: In-memory notification store for single-process deployments and tests.
package notification

import (
	"context"
	"sort"
	"sync"

	"ridehail/internal/types"
)

type MemoryStore struct {
	mu    sync.RWMutex
	items map[types.ID]Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[types.ID]Notification)}
}

func (s *MemoryStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[n.ID]; ok {
		return nil
	}
	s.items[n.ID] = *n
	return nil
}

func (s *MemoryStore) ListByRecipient(_ context.Context, recipient types.ID, limit int) ([]Notification, error) {
	s.mu.RLock()
	var out []Notification
	for _, n := range s.items {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkOpened(_ context.Context, id, recipient types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.Recipient != recipient {
		return ErrNotFound
	}
	n.Opened = true
	s.items[id] = n
	return nil
}
