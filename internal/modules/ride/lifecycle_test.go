package ride

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/infra"
	"ridehail/internal/logger"
	"ridehail/internal/modules/availability"
	"ridehail/internal/modules/route"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/modules/worktime"
	"ridehail/internal/types"
)

type notified struct {
	kind   string
	rideID types.ID
	status Status
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notified
}

func (n *recordingNotifier) OnAssigned(_ context.Context, r Ride) {
	n.record(notified{kind: "assigned", rideID: r.ID, status: r.Status})
}

func (n *recordingNotifier) OnStatusChanged(_ context.Context, r Ride, status Status, _ string) {
	n.record(notified{kind: "status", rideID: r.ID, status: status})
}

func (n *recordingNotifier) OnAddedToRide(_ context.Context, r Ride) {
	n.record(notified{kind: "added", rideID: r.ID, status: r.Status})
}

func (n *recordingNotifier) record(c notified) {
	n.mu.Lock()
	n.calls = append(n.calls, c)
	n.mu.Unlock()
}

func (n *recordingNotifier) Calls() []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notified(nil), n.calls...)
}

// gatedNotifier holds the ONGOING status notification until gate is closed.
type gatedNotifier struct {
	recordingNotifier
	entered chan struct{}
	gate    chan struct{}
}

func (n *gatedNotifier) OnStatusChanged(ctx context.Context, r Ride, status Status, message string) {
	if status == StatusOngoing {
		close(n.entered)
		<-n.gate
	}
	n.recordingNotifier.OnStatusChanged(ctx, r, status, message)
}

type failingLedger struct{}

func (failingLedger) BeginAccrual(context.Context, types.ID, time.Time) error {
	return errors.New("ledger down")
}

func (failingLedger) EndAccrual(context.Context, types.ID, time.Time) error { return nil }

type fixture struct {
	store    *MemoryStore
	pool     *availability.MemoryPool
	ledger   *worktime.Ledger
	notifier *recordingNotifier
	life     *Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    NewMemoryStore(),
		pool:     availability.NewMemoryPool(),
		ledger:   worktime.NewLedger(worktime.NewMemoryStore(), 8*time.Hour, time.UTC, logger.Nop()),
		notifier: &recordingNotifier{},
	}
	f.life = NewLifecycle(f.store, infra.NoTx{}, f.pool, f.ledger, f.notifier, logger.Nop())
	return f
}

func (f *fixture) seedRide(t *testing.T, passengers ...types.ID) types.ID {
	t.Helper()
	if len(passengers) == 0 {
		passengers = []types.ID{"p1"}
	}
	r := &Ride{
		ID:     types.NewID(),
		Status: StatusScheduled,
		Route: route.Route{
			ID: types.NewID(),
			Stops: []route.Stop{
				{Address: "A", Point: types.Point{Lat: 25.033, Lng: 121.565}},
				{Address: "B", Point: types.Point{Lat: 25.047, Lng: 121.517}},
			},
			DistanceKm: 5,
			Geometry:   "abc",
		},
		Vehicle:   vehicle.Specification{Type: vehicle.TypeStandard, Seats: 4},
		CreatedAt: time.Now(),
	}
	for i, p := range passengers {
		r.Passengers = append(r.Passengers, Passenger{ID: p, Main: i == 0})
	}
	require.NoError(t, f.store.Create(context.Background(), r))
	return r.ID
}

func (f *fixture) online(t *testing.T, ids ...types.ID) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.pool.Join(context.Background(), id))
	}
}

func (f *fixture) idle(t *testing.T) []types.ID {
	t.Helper()
	ids, err := f.pool.Candidates(context.Background())
	require.NoError(t, err)
	return ids
}

func assertDriverInvariant(t *testing.T, r *Ride) {
	t.Helper()
	assert.Equal(t, HasDriver(r.Status), r.DriverID != nil, "status %s with driver %v", r.Status, r.DriverID)
}

// TestCanTransition checks every pair of statuses against the table.
func TestCanTransition(t *testing.T) {
	all := []Status{
		StatusScheduled, StatusOngoing, StatusFinished, StatusPanic,
		StatusCancelledByDriver, StatusCancelledByPassenger, StatusDeclined,
		StatusRejected, StatusStopped,
	}
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusOngoing}:              true,
		{StatusScheduled, StatusCancelledByPassenger}: true,
		{StatusScheduled, StatusDeclined}:             true,
		{StatusScheduled, StatusRejected}:             true,
		{StatusOngoing, StatusFinished}:               true,
		{StatusOngoing, StatusPanic}:                  true,
		{StatusOngoing, StatusCancelledByDriver}:      true,
		{StatusOngoing, StatusStopped}:                true,
	}
	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			if got != allowed[[2]Status{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
	for _, s := range all {
		assert.Equal(t, s != StatusScheduled && s != StatusOngoing, IsTerminal(s), "IsTerminal(%s)", s)
	}
}

func TestLifecycle_AssignThenFinish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rideID := f.seedRide(t, "p1", "p2")
	f.online(t, "d1")

	r, err := f.life.Assign(ctx, rideID, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, r.Status)
	require.NotNil(t, r.DriverID)
	assert.Equal(t, types.ID("d1"), *r.DriverID)
	assert.NotNil(t, r.StartedAt)
	assert.Empty(t, f.idle(t))

	log, err := f.ledger.Log(ctx, "d1", time.Now())
	require.NoError(t, err)
	assert.True(t, log.Active)

	r, err = f.life.Finish(ctx, rideID, Actor{Type: ActorDriver})
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, r.Status)
	assert.Equal(t, []types.ID{"d1"}, f.idle(t))

	log, err = f.ledger.Log(ctx, "d1", time.Now())
	require.NoError(t, err)
	assert.False(t, log.Active)

	stored, err := f.store.Get(ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, stored.Status)
	assert.Equal(t, 2, stored.StatusVersion)
	assert.NotNil(t, stored.EndedAt)
	assertDriverInvariant(t, stored)

	assert.Equal(t, []notified{
		{kind: "assigned", rideID: rideID, status: StatusOngoing},
		{kind: "status", rideID: rideID, status: StatusOngoing},
		{kind: "status", rideID: rideID, status: StatusFinished},
	}, f.notifier.Calls())

	events, err := f.store.ListEvents(ctx, rideID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StatusScheduled, events[0].From)
	assert.Equal(t, StatusOngoing, events[0].To)
	assert.Equal(t, StatusFinished, events[1].To)
}

func TestLifecycle_CancelByDriverReleasesAndStopsAccrual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rideID := f.seedRide(t, "p1", "p2", "p3")
	f.online(t, "d1")

	_, err := f.life.Assign(ctx, rideID, "d1")
	require.NoError(t, err)

	r, err := f.life.CancelByDriver(ctx, rideID, Actor{Type: ActorDriver}, "flat tyre")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelledByDriver, r.Status)
	assert.Equal(t, "flat tyre", r.EndReason)
	assert.Equal(t, []types.ID{"d1"}, f.idle(t))

	log, err := f.ledger.Log(ctx, "d1", time.Now())
	require.NoError(t, err)
	assert.False(t, log.Active)

	var cancelled int
	for _, c := range f.notifier.Calls() {
		if c.kind == "status" && c.status == StatusCancelledByDriver {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)
}

func TestLifecycle_PreAssignmentTerminalsTouchNothing(t *testing.T) {
	for _, tc := range []struct {
		name string
		run  func(l *Lifecycle, id types.ID) (*Ride, error)
		want Status
	}{
		{"cancel by passenger", func(l *Lifecycle, id types.ID) (*Ride, error) {
			return l.CancelByPassenger(context.Background(), id, Actor{Type: ActorPassenger}, "")
		}, StatusCancelledByPassenger},
		{"decline", func(l *Lifecycle, id types.ID) (*Ride, error) {
			return l.Decline(context.Background(), id, Actor{Type: ActorDriver}, "")
		}, StatusDeclined},
		{"reject", func(l *Lifecycle, id types.ID) (*Ride, error) {
			return l.Reject(context.Background(), id, "no drivers")
		}, StatusRejected},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rideID := f.seedRide(t)
			f.online(t, "d1")

			r, err := tc.run(f.life, rideID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.Status)
			assert.Nil(t, r.DriverID)
			assert.Equal(t, []types.ID{"d1"}, f.idle(t))
			assertDriverInvariant(t, r)
		})
	}
}

func TestLifecycle_InvalidTransitionLeavesRideUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rideID := f.seedRide(t)
	f.online(t, "d1", "d2")

	_, err := f.life.Assign(ctx, rideID, "d1")
	require.NoError(t, err)
	_, err = f.life.Finish(ctx, rideID, Actor{Type: ActorDriver})
	require.NoError(t, err)
	before, err := f.store.Get(ctx, rideID)
	require.NoError(t, err)
	callsBefore := len(f.notifier.Calls())

	attempts := []Command{
		{RideID: rideID, To: StatusOngoing, DriverID: "d2", Actor: systemActor},
		{RideID: rideID, To: StatusPanic, Actor: systemActor},
		{RideID: rideID, To: StatusCancelledByPassenger, Actor: systemActor},
		{RideID: rideID, To: StatusScheduled, Actor: systemActor},
		{RideID: rideID, To: StatusFinished, Actor: systemActor},
	}
	for _, cmd := range attempts {
		_, err := f.life.Transition(ctx, cmd)
		require.ErrorIs(t, err, ErrInvalidTransition, "to %s", cmd.To)
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, StatusFinished, te.From)
		assert.Equal(t, cmd.To, te.To)
	}

	after, err := f.store.Get(ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, callsBefore, len(f.notifier.Calls()))
	assert.ElementsMatch(t, []types.ID{"d1", "d2"}, f.idle(t), "d2 must not be reserved by a rejected assign")
}

func TestLifecycle_AssignUnavailableDriver(t *testing.T) {
	f := newFixture(t)
	rideID := f.seedRide(t)

	_, err := f.life.Assign(context.Background(), rideID, "ghost")
	require.ErrorIs(t, err, ErrDriverUnavailable)

	r, err := f.store.Get(context.Background(), rideID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, r.Status)
	assert.Nil(t, r.DriverID)
	assert.Empty(t, f.notifier.Calls())
}

func TestLifecycle_AssignFailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.life.ledger = failingLedger{}
	rideID := f.seedRide(t)
	f.online(t, "d1")

	_, err := f.life.Assign(context.Background(), rideID, "d1")
	require.Error(t, err)

	r, err := f.store.Get(context.Background(), rideID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, r.Status)
	assert.Nil(t, r.DriverID)
	assert.Equal(t, []types.ID{"d1"}, f.idle(t))
	assert.Empty(t, f.notifier.Calls())
}

func TestLifecycle_OfflineDriverNotReturnedToPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rideID := f.seedRide(t)
	f.online(t, "d1")

	_, err := f.life.Assign(ctx, rideID, "d1")
	require.NoError(t, err)
	require.NoError(t, f.pool.Leave(ctx, "d1"))

	_, err = f.life.Stop(ctx, rideID, Actor{Type: ActorAdmin}, "")
	require.NoError(t, err)
	assert.Empty(t, f.idle(t))
}

func TestLifecycle_ConcurrentAssignVsCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rideID := f.seedRide(t)
	f.online(t, "d1", "d2", "d3")

	errs := make(chan error, 4)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, d := range []types.ID{"d1", "d2", "d3"} {
		wg.Add(1)
		go func(d types.ID) {
			defer wg.Done()
			<-start
			_, err := f.life.Assign(ctx, rideID, d)
			errs <- err
		}(d)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, err := f.life.CancelByPassenger(ctx, rideID, Actor{Type: ActorPassenger}, "")
		errs <- err
	}()
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Equal(t, 1, success)

	r, err := f.store.Get(ctx, rideID)
	require.NoError(t, err)
	assertDriverInvariant(t, r)
	if r.Status == StatusOngoing {
		assert.Len(t, f.idle(t), 2)
	} else {
		assert.Equal(t, StatusCancelledByPassenger, r.Status)
		assert.Len(t, f.idle(t), 3)
	}
}

func TestLifecycle_PanicRacingFinishIsNeverLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rideID := f.seedRide(t)
	f.online(t, "d1")
	_, err := f.life.Assign(ctx, rideID, "d1")
	require.NoError(t, err)

	var panicErr, finishErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, panicErr = f.life.Panic(ctx, rideID, Actor{Type: ActorPassenger}, "help")
	}()
	go func() {
		defer wg.Done()
		_, finishErr = f.life.Finish(ctx, rideID, Actor{Type: ActorDriver})
	}()
	wg.Wait()

	r, err := f.store.Get(ctx, rideID)
	require.NoError(t, err)
	if panicErr == nil {
		assert.Equal(t, StatusPanic, r.Status)
		assert.ErrorIs(t, finishErr, ErrInvalidTransition)
	} else {
		assert.ErrorIs(t, panicErr, ErrInvalidTransition, "panic may only lose to a committed terminal state")
		assert.Equal(t, StatusFinished, r.Status)
	}
	assert.Equal(t, 0, f.life.locks.Len())
}

func TestLifecycle_SlowNotifierDoesNotHoldRide(t *testing.T) {
	f := newFixture(t)
	n := &gatedNotifier{entered: make(chan struct{}), gate: make(chan struct{})}
	f.life = NewLifecycle(f.store, infra.NoTx{}, f.pool, f.ledger, n, logger.Nop())
	ctx := context.Background()
	rideID := f.seedRide(t)
	f.online(t, "d1")

	assigned := make(chan error, 1)
	go func() {
		_, err := f.life.Assign(ctx, rideID, "d1")
		assigned <- err
	}()
	<-n.entered

	finished := make(chan error, 1)
	go func() {
		_, err := f.life.Finish(ctx, rideID, Actor{Type: ActorDriver})
		finished <- err
	}()

	// the finish commits while the assignment is still notifying
	require.Eventually(t, func() bool {
		r, err := f.store.Get(ctx, rideID)
		return err == nil && r.Status == StatusFinished
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []types.ID{"d1"}, f.idle(t))

	close(n.gate)
	require.NoError(t, <-assigned)
	require.NoError(t, <-finished)

	var statuses []Status
	for _, c := range n.Calls() {
		if c.kind == "status" {
			statuses = append(statuses, c.status)
		}
	}
	assert.Equal(t, []Status{StatusOngoing, StatusFinished}, statuses)
	assert.Equal(t, 0, f.life.locks.Len())
	assert.Equal(t, 0, f.life.notifyLocks.Len())
}

func TestLifecycle_BadCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.life.Transition(ctx, Command{To: StatusFinished})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = f.life.Transition(ctx, Command{RideID: "r", To: StatusOngoing})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = f.life.Finish(ctx, "missing", Actor{Type: ActorDriver})
	assert.ErrorIs(t, err, ErrNotFound)
}
