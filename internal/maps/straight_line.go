// README: Offline router used when no Maps API key is configured.
package maps

import (
	"context"
	"math"

	"googlemaps.github.io/maps"

	"ridehail/internal/modules/route"
)

const (
	earthRadiusKm = 6371.0
	// assumedSpeedKmh converts straight-line distance into a duration estimate.
	assumedSpeedKmh = 30.0
)

// StraightLineRouter joins the stops with great-circle segments. It never
// calls out, so it is only good for development and tests.
type StraightLineRouter struct{}

func (StraightLineRouter) ComputeRoute(_ context.Context, stops []route.Stop) (route.Path, error) {
	if len(stops) < 2 {
		return route.Path{}, route.ErrBadRequest
	}
	path := make([]maps.LatLng, len(stops))
	var km float64
	for i, st := range stops {
		path[i] = maps.LatLng{Lat: st.Point.Lat, Lng: st.Point.Lng}
		if i > 0 {
			prev := stops[i-1].Point
			km += haversineKm(prev.Lat, prev.Lng, st.Point.Lat, st.Point.Lng)
		}
	}
	return route.Path{
		DistanceKm:      km,
		DurationSeconds: int64(math.Round(km / assumedSpeedKmh * 3600)),
		Geometry:        maps.Encode(path),
	}, nil
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
