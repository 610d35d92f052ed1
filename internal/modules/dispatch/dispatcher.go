// README: Ride dispatcher: picks exactly one eligible idle driver for a scheduled ride.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ridehail/internal/logger"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

var (
	ErrNoActiveDrivers               = errors.New("no drivers currently available")
	ErrNoSuitableDrivers             = errors.New("no driver satisfies the vehicle requirements")
	ErrAllDriversReachedWorkingLimit = errors.New("all suitable drivers reached the daily working limit")
)

// Failure is returned when dispatch gives up. The ride has been rejected;
// errors.Is matches the reason sentinel.
type Failure struct {
	Reason error
	Ride   *ride.Ride
}

func (f *Failure) Error() string { return fmt.Sprintf("dispatch: %v", f.Reason) }

func (f *Failure) Unwrap() error { return f.Reason }

type Pool interface {
	Candidates(ctx context.Context) ([]types.ID, error)
}

type Vehicles interface {
	Vehicles(ctx context.Context, ids []types.ID) (map[types.ID]vehicle.Specification, error)
}

type Ledger interface {
	CanAcceptMoreWork(ctx context.Context, driverID types.ID, asOf time.Time) (bool, error)
	AccruedSeconds(ctx context.Context, driverIDs []types.ID, asOf time.Time) (map[types.ID]int64, error)
}

type Lifecycle interface {
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
	Assign(ctx context.Context, rideID, driverID types.ID) (*ride.Ride, error)
	Reject(ctx context.Context, rideID types.ID, reason string) (*ride.Ride, error)
}

type Dispatcher struct {
	pool     Pool
	vehicles Vehicles
	ledger   Ledger
	life     Lifecycle
	now      func() time.Time
	log      logger.ILogger
}

func NewDispatcher(pool Pool, vehicles Vehicles, ledger Ledger, life Lifecycle, log logger.ILogger) *Dispatcher {
	return &Dispatcher{
		pool:     pool,
		vehicles: vehicles,
		ledger:   ledger,
		life:     life,
		now:      time.Now,
		log:      log,
	}
}

// Dispatch assigns the ride to one driver. Candidates are idle drivers whose
// vehicle matches and who are under the daily limit, ordered by time worked
// today and then by ID. A candidate lost to a concurrent dispatch is skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, rideID types.ID) (*ride.Ride, error) {
	r, err := d.life.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != ride.StatusScheduled {
		return nil, &ride.TransitionError{RideID: r.ID, From: r.Status, To: ride.StatusOngoing}
	}

	candidates, err := d.pool.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return d.fail(ctx, r, ErrNoActiveDrivers)
	}

	specs, err := d.vehicles.Vehicles(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("load vehicles: %w", err)
	}
	capable := candidates[:0:0]
	for _, id := range candidates {
		if spec, ok := specs[id]; ok && vehicle.Matches(r.Vehicle, spec) {
			capable = append(capable, id)
		}
	}
	if len(capable) == 0 {
		return d.fail(ctx, r, ErrNoSuitableDrivers)
	}

	now := d.now()
	eligible := capable[:0:0]
	for _, id := range capable {
		ok, err := d.ledger.CanAcceptMoreWork(ctx, id, now)
		if err != nil {
			return nil, fmt.Errorf("check working time: %w", err)
		}
		if ok {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return d.fail(ctx, r, ErrAllDriversReachedWorkingLimit)
	}

	accrued, err := d.ledger.AccruedSeconds(ctx, eligible, now)
	if err != nil {
		return nil, fmt.Errorf("load working time: %w", err)
	}
	sort.Slice(eligible, func(i, j int) bool {
		a, b := accrued[eligible[i]], accrued[eligible[j]]
		if a != b {
			return a < b
		}
		return eligible[i] < eligible[j]
	})

	for _, driverID := range eligible {
		assigned, err := d.life.Assign(ctx, r.ID, driverID)
		if err == nil {
			d.log.Info("ride dispatched",
				logger.String("ride_id", r.ID.String()),
				logger.String("driver_id", driverID.String()),
				logger.Int64("accrued_seconds", accrued[driverID]),
			)
			return assigned, nil
		}
		if !errors.Is(err, ride.ErrDriverUnavailable) {
			return nil, err
		}
		d.log.Debug("candidate taken by another dispatch",
			logger.String("ride_id", r.ID.String()),
			logger.String("driver_id", driverID.String()),
		)
	}
	return d.fail(ctx, r, ErrNoSuitableDrivers)
}

func (d *Dispatcher) fail(ctx context.Context, r *ride.Ride, reason error) (*ride.Ride, error) {
	rejected, err := d.life.Reject(ctx, r.ID, reason.Error())
	if err != nil {
		d.log.Error("reject ride",
			logger.String("ride_id", r.ID.String()),
			logger.Error(err),
		)
		return nil, errors.Join(&Failure{Reason: reason}, err)
	}
	d.log.Info("ride rejected",
		logger.String("ride_id", r.ID.String()),
		logger.String("reason", reason.Error()),
	)
	return rejected, &Failure{Reason: reason, Ride: rejected}
}
