// README: Route service: lookups and passenger favorite routes.
package route

import (
	"context"
	"strings"
	"time"

	"ridehail/internal/types"
)

type Store interface {
	Create(ctx context.Context, r *Route) error
	Get(ctx context.Context, id types.ID) (*Route, error)
	AddFavorite(ctx context.Context, f Favorite) error
	RemoveFavorite(ctx context.Context, passengerID, routeID types.ID) error
	ListFavorites(ctx context.Context, passengerID types.ID) ([]FavoriteRoute, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

type AddFavoriteCommand struct {
	PassengerID types.ID
	RouteID     types.ID
	Name        string
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Route, error) {
	return s.store.Get(ctx, id)
}

// AddFavorite saves a route for a passenger. Saving the same route twice
// returns ErrFavoriteExists.
func (s *Service) AddFavorite(ctx context.Context, cmd AddFavoriteCommand) error {
	if cmd.PassengerID == "" || cmd.RouteID == "" {
		return ErrBadRequest
	}
	if _, err := s.store.Get(ctx, cmd.RouteID); err != nil {
		return err
	}
	return s.store.AddFavorite(ctx, Favorite{
		PassengerID: cmd.PassengerID,
		RouteID:     cmd.RouteID,
		Name:        strings.TrimSpace(cmd.Name),
		CreatedAt:   s.now(),
	})
}

func (s *Service) RemoveFavorite(ctx context.Context, passengerID, routeID types.ID) error {
	return s.store.RemoveFavorite(ctx, passengerID, routeID)
}

func (s *Service) ListFavorites(ctx context.Context, passengerID types.ID) ([]FavoriteRoute, error) {
	if passengerID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListFavorites(ctx, passengerID)
}
