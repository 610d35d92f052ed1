// README: Driver service: vehicle registration and availability toggling.
package driver

import (
	"context"
	"fmt"
	"time"

	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

type Store interface {
	Upsert(ctx context.Context, d Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	Vehicles(ctx context.Context, ids []types.ID) (map[types.ID]vehicle.Specification, error)
}

// Availability is the part of the availability pool drivers control.
type Availability interface {
	Join(ctx context.Context, id types.ID) error
	Leave(ctx context.Context, id types.ID) error
	Engage(ctx context.Context, id types.ID) error
}

// Rides reports whether a driver is on an ONGOING ride.
type Rides interface {
	HasOngoingForDriver(ctx context.Context, driverID types.ID) (bool, error)
}

type Service struct {
	store Store
	pool  Availability
	rides Rides
	now   func() time.Time
}

func NewService(store Store, pool Availability, rides Rides) *Service {
	return &Service{store: store, pool: pool, rides: rides, now: time.Now}
}

type RegisterVehicleCommand struct {
	DriverID types.ID
	Name     string
	Vehicle  vehicle.Specification
}

func (s *Service) RegisterVehicle(ctx context.Context, cmd RegisterVehicleCommand) (*Driver, error) {
	if cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	if err := cmd.Vehicle.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	d := Driver{ID: cmd.DriverID, Name: cmd.Name, Vehicle: cmd.Vehicle, UpdatedAt: s.now()}
	if err := s.store.Upsert(ctx, d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

// GoOnline puts a registered driver into the idle pool. A driver whose ride is
// still ONGOING is marked engaged first, so a pool rebuilt after a restart
// never offers them a second ride.
func (s *Service) GoOnline(ctx context.Context, id types.ID) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	onRide, err := s.rides.HasOngoingForDriver(ctx, id)
	if err != nil {
		return err
	}
	if onRide {
		if err := s.pool.Engage(ctx, id); err != nil {
			return err
		}
	}
	return s.pool.Join(ctx, id)
}

// GoOffline removes the driver from the pool. A driver on a ride stays on it;
// they simply are not offered again when it ends.
func (s *Service) GoOffline(ctx context.Context, id types.ID) error {
	return s.pool.Leave(ctx, id)
}
