// README: Google Maps Directions adapter computing distance, duration and geometry for ride stops.
package maps

import (
	"context"
	"fmt"
	"strconv"

	"googlemaps.github.io/maps"

	"ridehail/internal/modules/route"
	"ridehail/internal/types"
)

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// ComputeRoute asks for a driving route through the stops in order. The first
// stop is the pickup, the last the destination, the rest are waypoints.
func (s *RouteService) ComputeRoute(ctx context.Context, stops []route.Stop) (route.Path, error) {
	if len(stops) < 2 {
		return route.Path{}, route.ErrBadRequest
	}
	r := &maps.DirectionsRequest{
		Origin:      latLng(stops[0].Point),
		Destination: latLng(stops[len(stops)-1].Point),
		Mode:        maps.TravelModeDriving,
	}
	for _, st := range stops[1 : len(stops)-1] {
		r.Waypoints = append(r.Waypoints, latLng(st.Point))
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return route.Path{}, fmt.Errorf("maps api error: %w", err)
	}
	return pathFromRoutes(routes)
}

// pathFromRoutes sums the legs of the first route. Anything without an
// overview polyline is treated as missing geometry.
func pathFromRoutes(routes []maps.Route) (route.Path, error) {
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return route.Path{}, route.ErrNoRouteGeometry
	}
	best := routes[0]
	if best.OverviewPolyline.Points == "" {
		return route.Path{}, route.ErrNoRouteGeometry
	}

	var meters int
	var seconds int64
	for _, leg := range best.Legs {
		meters += leg.Distance.Meters
		seconds += int64(leg.Duration.Seconds())
	}
	return route.Path{
		DistanceKm:      float64(meters) / 1000,
		DurationSeconds: seconds,
		Geometry:        best.OverviewPolyline.Points,
	}, nil
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
