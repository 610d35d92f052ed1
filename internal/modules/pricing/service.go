// README: Pricing service computes fare estimates.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

type RateSource interface {
	GetRate(ctx context.Context, vehicleType vehicle.Type) (Rate, error)
}

type Service struct {
	rates RateSource
}

// NewService accepts a nil source, in which case only DefaultRates are used.
func NewService(rates RateSource) *Service {
	return &Service{rates: rates}
}

// Estimate is base fare plus distance and started-minute charges.
func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (Result, error) {
	rate, err := s.rate(ctx, req.VehicleType)
	if err != nil {
		return Result{}, err
	}

	distance := int64(math.Round(req.DistanceKm * float64(rate.PerKm)))
	minutes := (req.DurationSeconds + 59) / 60
	timeCharge := minutes * rate.PerMinute

	return Result{
		TotalAmount: rate.BaseFare + distance + timeCharge,
		Currency:    rate.Currency,
		Breakdown: map[string]int64{
			"base":     rate.BaseFare,
			"distance": distance,
			"time":     timeCharge,
		},
	}, nil
}

// Quote is Estimate reduced to money.
func (s *Service) Quote(ctx context.Context, req EstimateRequest) (types.Money, error) {
	res, err := s.Estimate(ctx, req)
	if err != nil {
		return types.Money{}, err
	}
	return types.Money{Amount: res.TotalAmount, Currency: res.Currency}, nil
}

func (s *Service) rate(ctx context.Context, vehicleType vehicle.Type) (Rate, error) {
	if s.rates != nil {
		r, err := s.rates.GetRate(ctx, vehicleType)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrRateNotFound) {
			return Rate{}, err
		}
	}
	r, ok := DefaultRates[vehicleType]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s", ErrRateNotFound, vehicleType)
	}
	return r, nil
}
