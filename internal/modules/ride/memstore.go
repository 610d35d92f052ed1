// README: In-memory ride store for single-process deployments and tests.
package ride

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridehail/internal/types"
)

type MemoryStore struct {
	mu     sync.RWMutex
	rides  map[types.ID]Ride
	events map[types.ID][]Event
	nextEv int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:  make(map[types.ID]Ride),
		events: make(map[types.ID][]Event),
	}
}

func (s *MemoryStore) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[r.ID]; ok {
		return ErrConflict
	}
	s.rides[r.ID] = r.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := r.Clone()
	return &cp, nil
}

func (s *MemoryStore) GetForUpdate(ctx context.Context, id types.ID) (*Ride, error) {
	return s.Get(ctx, id)
}

func (s *MemoryStore) UpdateStatus(_ context.Context, u StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[u.RideID]
	if !ok || r.Status != u.From || r.StatusVersion != u.Version {
		return false, nil
	}
	r.Status = u.To
	r.StatusVersion++
	if u.DriverID != nil {
		d := *u.DriverID
		r.DriverID = &d
	}
	at := u.At
	if u.To == StatusOngoing {
		r.StartedAt = &at
	} else {
		r.EndedAt = &at
		r.EndReason = u.Reason
	}
	s.rides[u.RideID] = r
	return true, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEv++
	e.ID = s.nextEv
	cp := *e
	if e.ActorID != nil {
		a := *e.ActorID
		cp.ActorID = &a
	}
	s.events[e.RideID] = append(s.events[e.RideID], cp)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, rideID types.ID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events[rideID]...), nil
}

func (s *MemoryStore) ListDueScheduled(_ context.Context, now time.Time, limit int) ([]types.ID, error) {
	s.mu.RLock()
	var due []Ride
	for _, r := range s.rides {
		if r.Status == StatusScheduled && r.ScheduledAt != nil && !r.ScheduledAt.After(now) {
			due = append(due, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt.Equal(*due[j].ScheduledAt) {
			return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]types.ID, len(due))
	for i, r := range due {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *MemoryStore) HasOngoingForDriver(_ context.Context, driverID types.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rides {
		if r.Status == StatusOngoing && r.DriverID != nil && *r.DriverID == driverID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) HasActiveByPassenger(_ context.Context, passengerID types.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rides {
		if r.Status != StatusScheduled && r.Status != StatusOngoing {
			continue
		}
		if r.HasPassenger(passengerID) {
			return true, nil
		}
	}
	return false, nil
}

// LockPassenger is a no-op; the service serializes requests in process.
func (s *MemoryStore) LockPassenger(context.Context, types.ID) error { return nil }
