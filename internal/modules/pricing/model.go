// README: Pricing rate definition for each vehicle type.
package pricing

import (
	"errors"

	"ridehail/internal/modules/vehicle"
)

var ErrRateNotFound = errors.New("pricing rate not found")

const defaultCurrency = "TWD"

type Rate struct {
	VehicleType vehicle.Type
	BaseFare    int64
	PerKm       int64
	PerMinute   int64
	Currency    string
}

type EstimateRequest struct {
	VehicleType     vehicle.Type
	DistanceKm      float64
	DurationSeconds int64
}

type Result struct {
	TotalAmount int64
	Currency    string
	Breakdown   map[string]int64
}

// DefaultRates apply when no rate row exists for a vehicle type.
var DefaultRates = map[vehicle.Type]Rate{
	vehicle.TypeStandard: {VehicleType: vehicle.TypeStandard, BaseFare: 85, PerKm: 25, PerMinute: 3, Currency: defaultCurrency},
	vehicle.TypeLuxury:   {VehicleType: vehicle.TypeLuxury, BaseFare: 150, PerKm: 40, PerMinute: 5, Currency: defaultCurrency},
	vehicle.TypeVan:      {VehicleType: vehicle.TypeVan, BaseFare: 120, PerKm: 30, PerMinute: 4, Currency: defaultCurrency},
}
