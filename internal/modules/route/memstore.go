// README: In-memory route store for single-process deployments and tests.
package route

import (
	"context"
	"sort"
	"sync"

	"ridehail/internal/types"
)

type MemoryStore struct {
	mu        sync.RWMutex
	routes    map[types.ID]Route
	favorites map[types.ID]map[types.ID]Favorite
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:    make(map[types.ID]Route),
		favorites: make(map[types.ID]map[types.ID]Favorite),
	}
}

func (s *MemoryStore) Create(_ context.Context, r *Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[r.ID] = cloneRoute(*r)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneRoute(r)
	return &cp, nil
}

func (s *MemoryStore) AddFavorite(_ context.Context, f Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRoute, ok := s.favorites[f.PassengerID]
	if !ok {
		byRoute = make(map[types.ID]Favorite)
		s.favorites[f.PassengerID] = byRoute
	}
	if _, dup := byRoute[f.RouteID]; dup {
		return ErrFavoriteExists
	}
	byRoute[f.RouteID] = f
	return nil
}

func (s *MemoryStore) RemoveFavorite(_ context.Context, passengerID, routeID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favorites[passengerID][routeID]; !ok {
		return ErrNotFound
	}
	delete(s.favorites[passengerID], routeID)
	return nil
}

func (s *MemoryStore) ListFavorites(_ context.Context, passengerID types.ID) ([]FavoriteRoute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FavoriteRoute, 0, len(s.favorites[passengerID]))
	for routeID, f := range s.favorites[passengerID] {
		out = append(out, FavoriteRoute{Favorite: f, Route: cloneRoute(s.routes[routeID])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneRoute(r Route) Route {
	r.Stops = append([]Stop(nil), r.Stops...)
	return r
}
