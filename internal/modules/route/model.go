// README: Route records owned by rides and passenger favorite routes.
package route

import (
	"errors"
	"time"

	"ridehail/internal/types"
)

var (
	ErrNotFound        = errors.New("route not found")
	ErrFavoriteExists  = errors.New("favorite route already exists")
	ErrNoRouteGeometry = errors.New("no route geometry")
	ErrBadRequest      = errors.New("bad request")
)

type Stop struct {
	Address string      `json:"address"`
	Point   types.Point `json:"point"`
}

// Path is what the routing service computes for an ordered list of stops.
type Path struct {
	DistanceKm      float64
	DurationSeconds int64
	Geometry        string
}

type Route struct {
	ID              types.ID `json:"id"`
	Stops           []Stop   `json:"stops"`
	DistanceKm      float64  `json:"distanceKm"`
	DurationSeconds int64    `json:"durationSeconds"`
	Geometry        string   `json:"geometry"`
}

func (r Route) Pickup() Stop      { return r.Stops[0] }
func (r Route) Destination() Stop { return r.Stops[len(r.Stops)-1] }

// New builds a route from stops and the computed path. A path without
// geometry is rejected with ErrNoRouteGeometry.
func New(stops []Stop, p Path) (Route, error) {
	if len(stops) < 2 {
		return Route{}, ErrBadRequest
	}
	if p.Geometry == "" {
		return Route{}, ErrNoRouteGeometry
	}
	cp := make([]Stop, len(stops))
	copy(cp, stops)
	return Route{
		ID:              types.NewID(),
		Stops:           cp,
		DistanceKm:      p.DistanceKm,
		DurationSeconds: p.DurationSeconds,
		Geometry:        p.Geometry,
	}, nil
}

type Favorite struct {
	PassengerID types.ID  `json:"passengerId"`
	RouteID     types.ID  `json:"routeId"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
}

type FavoriteRoute struct {
	Favorite
	Route Route `json:"route"`
}
