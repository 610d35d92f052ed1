// README: In-memory daily log store for single-process deployments and tests.
package worktime

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridehail/internal/types"
)

type logKey struct {
	driverID types.ID
	day      time.Time
}

type MemoryStore struct {
	mu   sync.Mutex
	logs map[logKey]DailyLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[logKey]DailyLog)}
}

func (s *MemoryStore) Get(_ context.Context, driverID types.ID, day time.Time) (DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[logKey{driverID, day}]; ok {
		return cloneLog(l), nil
	}
	return DailyLog{DriverID: driverID, Day: day}, nil
}

func (s *MemoryStore) List(_ context.Context, driverIDs []types.ID, day time.Time) (map[types.ID]DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.ID]DailyLog, len(driverIDs))
	for _, id := range driverIDs {
		if l, ok := s.logs[logKey{id, day}]; ok {
			out[id] = cloneLog(l)
		}
	}
	return out, nil
}

func (s *MemoryStore) Begin(_ context.Context, driverID types.ID, day, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := logKey{driverID, day}
	l, ok := s.logs[k]
	if !ok {
		l = DailyLog{DriverID: driverID, Day: day}
	}
	if l.Active {
		return false, nil
	}
	since := at
	l.Active = true
	l.ActiveSince = &since
	s.logs[k] = l
	return true, nil
}

func (s *MemoryStore) End(_ context.Context, driverID types.ID, day, at time.Time) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := logKey{driverID, day}
	l, ok := s.logs[k]
	if !ok || !l.Active || l.ActiveSince == nil {
		return 0, false, nil
	}
	added := elapsedSeconds(*l.ActiveSince, at)
	l.ActiveSeconds += added
	l.Active = false
	l.ActiveSince = nil
	s.logs[k] = l
	return added, true, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DailyLog
	for _, l := range s.logs {
		if l.Active {
			out = append(out, cloneLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DriverID != out[j].DriverID {
			return out[i].DriverID < out[j].DriverID
		}
		return out[i].Day.Before(out[j].Day)
	})
	return out, nil
}

func cloneLog(l DailyLog) DailyLog {
	if l.ActiveSince != nil {
		t := *l.ActiveSince
		l.ActiveSince = &t
	}
	return l
}
