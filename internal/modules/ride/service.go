// README: Ride service: request orchestration (route, price, persist, dispatch) and read models.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridehail/internal/logger"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/route"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/syncx"
	"ridehail/internal/types"
)

type Router interface {
	ComputeRoute(ctx context.Context, stops []route.Stop) (route.Path, error)
}

type RouteStore interface {
	Create(ctx context.Context, r *route.Route) error
	Get(ctx context.Context, id types.ID) (*route.Route, error)
}

type Pricer interface {
	Quote(ctx context.Context, req pricing.EstimateRequest) (types.Money, error)
}

// Dispatcher assigns a driver to a scheduled ride, rejecting the ride when
// none can be found.
type Dispatcher interface {
	Dispatch(ctx context.Context, rideID types.ID) (*Ride, error)
}

type Service struct {
	store      Store
	routes     RouteStore
	tx         TxManager
	router     Router
	pricer     Pricer
	dispatcher Dispatcher
	notifier   Notifier
	passengers *syncx.KeyedMutex
	now        func() time.Time
	log        logger.ILogger
}

type ServiceDeps struct {
	Store      Store
	Routes     RouteStore
	Tx         TxManager
	Router     Router
	Pricer     Pricer
	Dispatcher Dispatcher
	Notifier   Notifier
	Log        logger.ILogger
}

func NewService(d ServiceDeps) *Service {
	return &Service{
		store:      d.Store,
		routes:     d.Routes,
		tx:         d.Tx,
		router:     d.Router,
		pricer:     d.Pricer,
		dispatcher: d.Dispatcher,
		notifier:   d.Notifier,
		passengers: syncx.NewKeyedMutex(),
		now:        time.Now,
		log:        d.Log,
	}
}

type RequestCommand struct {
	PassengerID types.ID
	// Companions are added to the ride as non-main passengers.
	Companions []types.ID
	Stops      []route.Stop
	// RouteID requests along a saved route instead of Stops.
	RouteID     types.ID
	Vehicle     vehicle.Specification
	ScheduledAt *time.Time
}

func (c RequestCommand) validate() error {
	if c.PassengerID == "" {
		return ErrBadRequest
	}
	if c.RouteID == "" && len(c.Stops) < 2 {
		return fmt.Errorf("%w: at least pickup and destination are required", ErrBadRequest)
	}
	if err := c.Vehicle.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if 1+len(c.Companions) > c.Vehicle.Seats {
		return fmt.Errorf("%w: %d passengers do not fit %d seats", ErrBadRequest, 1+len(c.Companions), c.Vehicle.Seats)
	}
	seen := map[types.ID]bool{c.PassengerID: true}
	for _, id := range c.Companions {
		if id == "" || seen[id] {
			return fmt.Errorf("%w: duplicate or empty passenger", ErrBadRequest)
		}
		seen[id] = true
	}
	return nil
}

// Request creates a ride and, unless it departs later, dispatches it right
// away. A dispatch failure returns the rejected ride together with the error.
func (s *Service) Request(ctx context.Context, cmd RequestCommand) (*Ride, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	// early rejection before the route is computed
	active, err := s.store.HasActiveByPassenger(ctx, cmd.PassengerID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRide
	}

	rt, err := s.resolveRoute(ctx, cmd)
	if err != nil {
		return nil, err
	}

	price, err := s.pricer.Quote(ctx, pricing.EstimateRequest{
		VehicleType:     cmd.Vehicle.Type,
		DistanceKm:      rt.DistanceKm,
		DurationSeconds: rt.DurationSeconds,
	})
	if err != nil {
		s.log.Warning("price estimate failed", logger.Error(err))
		price = types.Money{}
	}

	now := s.now()
	passengers := make([]Passenger, 0, 1+len(cmd.Companions))
	passengers = append(passengers, Passenger{ID: cmd.PassengerID, Main: true})
	for _, id := range cmd.Companions {
		passengers = append(passengers, Passenger{ID: id})
	}
	r := &Ride{
		ID:          types.NewID(),
		Status:      StatusScheduled,
		Route:       rt,
		Vehicle:     cmd.Vehicle,
		Passengers:  passengers,
		Price:       price,
		ScheduledAt: cmd.ScheduledAt,
		CreatedAt:   now,
	}
	passengerID := cmd.PassengerID
	unlock := s.passengers.Lock(string(passengerID))
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.LockPassenger(ctx, passengerID); err != nil {
			return err
		}
		// checked again now that concurrent requests are serialized
		active, err := s.store.HasActiveByPassenger(ctx, passengerID)
		if err != nil {
			return err
		}
		if active {
			return ErrActiveRide
		}
		if err := s.routes.Create(ctx, &r.Route); err != nil {
			return err
		}
		if err := s.store.Create(ctx, r); err != nil {
			return err
		}
		return s.store.AppendEvent(ctx, &Event{
			RideID:    r.ID,
			From:      StatusNone,
			To:        StatusScheduled,
			ActorType: ActorPassenger,
			ActorID:   &passengerID,
			Message:   "ride requested",
			CreatedAt: now,
		})
	})
	unlock()
	if err != nil {
		return nil, err
	}
	s.log.Info("ride requested",
		logger.String("ride_id", r.ID.String()),
		logger.String("passenger_id", passengerID.String()),
		logger.Int("passengers", len(passengers)),
	)
	s.notifier.OnAddedToRide(ctx, r.Clone())

	if r.ScheduledAt != nil && r.ScheduledAt.After(now) {
		return r, nil
	}
	return s.dispatcher.Dispatch(ctx, r.ID)
}

// resolveRoute computes the path for the requested stops, or copies a saved
// route so the ride owns its own record.
func (s *Service) resolveRoute(ctx context.Context, cmd RequestCommand) (route.Route, error) {
	stops := cmd.Stops
	if cmd.RouteID != "" {
		saved, err := s.routes.Get(ctx, cmd.RouteID)
		if err != nil {
			return route.Route{}, err
		}
		return route.New(saved.Stops, route.Path{
			DistanceKm:      saved.DistanceKm,
			DurationSeconds: saved.DurationSeconds,
			Geometry:        saved.Geometry,
		})
	}

	path, err := s.router.ComputeRoute(ctx, stops)
	if err != nil {
		if errors.Is(err, route.ErrNoRouteGeometry) {
			return route.Route{}, err
		}
		return route.Route{}, fmt.Errorf("compute route: %w", err)
	}
	return route.New(stops, path)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}
