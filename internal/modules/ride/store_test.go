package ride

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/infra"
	"ridehail/internal/infra/pgtest"
	"ridehail/internal/logger"
	"ridehail/internal/modules/route"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

func seedPgRide(t *testing.T, tx *infra.PgTxManager, routes *route.PgStore, store *PgStore, scheduledAt *time.Time) *Ride {
	t.Helper()
	rt, err := route.New([]route.Stop{
		{Address: "A", Point: types.Point{Lat: 25.033, Lng: 121.565}},
		{Address: "B", Point: types.Point{Lat: 25.047, Lng: 121.517}},
	}, route.Path{DistanceKm: 5.5, DurationSeconds: 900, Geometry: "abc"})
	require.NoError(t, err)

	r := &Ride{
		ID:          types.NewID(),
		Status:      StatusScheduled,
		Route:       rt,
		Vehicle:     vehicle.Specification{Model: "Prius", Type: vehicle.TypeStandard, Seats: 4, PetFriendly: true},
		Passengers:  []Passenger{{ID: "p_main", Main: true}, {ID: "p_two"}},
		Price:       types.Money{Amount: 230, Currency: "TWD"},
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	err = tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := routes.Create(ctx, &r.Route); err != nil {
			return err
		}
		return store.Create(ctx, r)
	})
	require.NoError(t, err)
	return r
}

func TestPgStore_CreateGetAndCAS(t *testing.T) {
	db := pgtest.Open(t, "ride_state_events", "ride_passengers", "rides", "favorite_routes", "routes")
	store := NewPgStore(db)
	routes := route.NewPgStore(db)
	tx := infra.NewPgTxManager(db)
	ctx := context.Background()

	seeded := seedPgRide(t, tx, routes, store, nil)

	got, err := store.Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Equal(t, seeded.Vehicle, got.Vehicle)
	assert.Equal(t, seeded.Passengers, got.Passengers)
	assert.Equal(t, seeded.Route.Stops, got.Route.Stops)
	assert.Nil(t, got.DriverID)

	active, err := store.HasActiveByPassenger(ctx, "p_two")
	require.NoError(t, err)
	assert.True(t, active)

	driver := types.ID("d1")
	at := time.Now().UTC()
	ok, err := store.UpdateStatus(ctx, StatusUpdate{RideID: seeded.ID, From: StatusScheduled, To: StatusOngoing, Version: 0, DriverID: &driver, At: at})
	require.NoError(t, err)
	assert.True(t, ok)

	// stale version loses
	ok, err = store.UpdateStatus(ctx, StatusUpdate{RideID: seeded.ID, From: StatusScheduled, To: StatusCancelledByPassenger, Version: 0, At: at})
	require.NoError(t, err)
	assert.False(t, ok)

	ongoing, err := store.HasOngoingForDriver(ctx, driver)
	require.NoError(t, err)
	assert.True(t, ongoing)

	ok, err = store.UpdateStatus(ctx, StatusUpdate{RideID: seeded.ID, From: StatusOngoing, To: StatusFinished, Version: 1, At: at, Reason: "done"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = store.Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Equal(t, 2, got.StatusVersion)
	require.NotNil(t, got.DriverID)
	assert.Equal(t, driver, *got.DriverID)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.EndedAt)
	assert.Equal(t, "done", got.EndReason)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPgStore_EventsAndDueScheduled(t *testing.T) {
	db := pgtest.Open(t, "ride_state_events", "ride_passengers", "rides", "favorite_routes", "routes")
	store := NewPgStore(db)
	routes := route.NewPgStore(db)
	tx := infra.NewPgTxManager(db)
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	due := seedPgRide(t, tx, routes, store, &past)
	seedPgRide(t, tx, routes, store, &future)
	seedPgRide(t, tx, routes, store, nil)

	ids, err := store.ListDueScheduled(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []types.ID{due.ID}, ids)

	actor := types.ID("p_main")
	e := &Event{RideID: due.ID, From: StatusNone, To: StatusScheduled, ActorType: ActorPassenger, ActorID: &actor, CreatedAt: now}
	require.NoError(t, store.AppendEvent(ctx, e))
	assert.NotZero(t, e.ID)

	events, err := store.ListEvents(ctx, due.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StatusScheduled, events[0].To)
	assert.Equal(t, &actor, events[0].ActorID)
}

// TestPgService_ConcurrentRequestsFromOnePassenger runs one service per API
// process so only the database lock can keep the passenger to one ride.
func TestPgService_ConcurrentRequestsFromOnePassenger(t *testing.T) {
	db := pgtest.Open(t, "ride_state_events", "ride_passengers", "rides", "favorite_routes", "routes")
	store := NewPgStore(db)
	later := time.Now().Add(time.Hour)

	const processes = 4
	errs := make(chan error, processes)
	var wg sync.WaitGroup
	for i := 0; i < processes; i++ {
		svc := NewService(ServiceDeps{
			Store:    store,
			Routes:   route.NewPgStore(db),
			Tx:       infra.NewPgTxManager(db),
			Router:   okRouter,
			Pricer:   stubPricer{},
			Notifier: &recordingNotifier{},
			Log:      logger.Nop(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Request(context.Background(), RequestCommand{PassengerID: "p_solo", Stops: twoStops, Vehicle: standard4, ScheduledAt: &later})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrActiveRide)
	}
	assert.Equal(t, 1, created)

	var rides int
	require.NoError(t, db.QueryRow(context.Background(),
		`SELECT count(*) FROM ride_passengers WHERE passenger_id = 'p_solo'`).Scan(&rides))
	assert.Equal(t, 1, rides)
}

// TestPgLifecycle_ConcurrentAssignSameDriver runs two lifecycles (two API
// processes) against one database and one pool.
func TestPgLifecycle_ConcurrentAssignSameDriver(t *testing.T) {
	db := pgtest.Open(t, "ride_state_events", "ride_passengers", "rides", "favorite_routes", "routes", "driver_daily_logs")
	store := NewPgStore(db)
	routes := route.NewPgStore(db)
	tx := infra.NewPgTxManager(db)
	f := newFixture(t)
	f.online(t, "z")

	first := seedPgRide(t, tx, routes, store, nil)
	second := seedPgRide(t, tx, routes, store, nil)

	a := NewLifecycle(store, tx, f.pool, f.ledger, f.notifier, f.life.log)
	b := NewLifecycle(store, tx, f.pool, f.ledger, f.notifier, f.life.log)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	assign := func(l *Lifecycle, rideID types.ID) {
		defer wg.Done()
		_, err := l.Assign(context.Background(), rideID, "z")
		errs <- err
	}
	go assign(a, first.ID)
	go assign(b, second.ID)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		assert.ErrorIs(t, err, ErrDriverUnavailable)
	}
	assert.Equal(t, 1, success)
}
