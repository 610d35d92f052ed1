// README: Ride lifecycle: validates and applies every status transition with its side effects.
package ride

import (
	"context"
	"time"

	"ridehail/internal/logger"
	"ridehail/internal/syncx"
	"ridehail/internal/types"
)

type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	GetForUpdate(ctx context.Context, id types.ID) (*Ride, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, rideID types.ID) ([]Event, error)
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]types.ID, error)
	HasOngoingForDriver(ctx context.Context, driverID types.ID) (bool, error)
	HasActiveByPassenger(ctx context.Context, passengerID types.ID) (bool, error)
	// LockPassenger serializes ride requests of one passenger until the
	// surrounding transaction ends.
	LockPassenger(ctx context.Context, passengerID types.ID) error
}

type StatusUpdate struct {
	RideID   types.ID
	From     Status
	To       Status
	Version  int
	DriverID *types.ID
	At       time.Time
	Reason   string
}

// TxManager runs fn in one transaction; stores reach it through ctx.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Pool interface {
	Reserve(ctx context.Context, id types.ID) (bool, error)
	Release(ctx context.Context, id types.ID) error
}

type Ledger interface {
	BeginAccrual(ctx context.Context, driverID types.ID, asOf time.Time) error
	EndAccrual(ctx context.Context, driverID types.ID, asOf time.Time) error
}

// Notifier is called only after the transition has committed. It must not
// block on delivery.
type Notifier interface {
	OnAssigned(ctx context.Context, r Ride)
	OnStatusChanged(ctx context.Context, r Ride, status Status, message string)
	OnAddedToRide(ctx context.Context, r Ride)
}

type Actor struct {
	Type string
	ID   *types.ID
}

var systemActor = Actor{Type: ActorSystem}

type Command struct {
	RideID types.ID
	To     Status
	// DriverID is required when To is ONGOING.
	DriverID types.ID
	Actor    Actor
	Message  string
}

type Lifecycle struct {
	store    Store
	tx       TxManager
	pool     Pool
	ledger   Ledger
	notifier Notifier
	locks    *syncx.KeyedMutex
	// notifyLocks orders notifier calls per ride.
	notifyLocks *syncx.KeyedMutex
	now         func() time.Time
	log         logger.ILogger
}

func NewLifecycle(store Store, tx TxManager, pool Pool, ledger Ledger, notifier Notifier, log logger.ILogger) *Lifecycle {
	return &Lifecycle{
		store:       store,
		tx:          tx,
		pool:        pool,
		ledger:      ledger,
		notifier:    notifier,
		locks:       syncx.NewKeyedMutex(),
		notifyLocks: syncx.NewKeyedMutex(),
		now:         time.Now,
		log:         log,
	}
}

func (l *Lifecycle) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return l.store.Get(ctx, id)
}

// Assign hands the ride to driverID: the pool reservation, the status change
// and the start of working-time accrual succeed or fail together.
func (l *Lifecycle) Assign(ctx context.Context, rideID, driverID types.ID) (*Ride, error) {
	return l.Transition(ctx, Command{
		RideID:   rideID,
		To:       StatusOngoing,
		DriverID: driverID,
		Actor:    systemActor,
		Message:  "driver assigned",
	})
}

func (l *Lifecycle) Finish(ctx context.Context, rideID types.ID, actor Actor) (*Ride, error) {
	return l.Transition(ctx, Command{RideID: rideID, To: StatusFinished, Actor: actor, Message: "ride finished"})
}

func (l *Lifecycle) CancelByDriver(ctx context.Context, rideID types.ID, actor Actor, reason string) (*Ride, error) {
	return l.Transition(ctx, Command{RideID: rideID, To: StatusCancelledByDriver, Actor: actor, Message: orDefault(reason, "ride cancelled by driver")})
}

func (l *Lifecycle) CancelByPassenger(ctx context.Context, rideID types.ID, actor Actor, reason string) (*Ride, error) {
	return l.Transition(ctx, Command{RideID: rideID, To: StatusCancelledByPassenger, Actor: actor, Message: orDefault(reason, "ride cancelled by passenger")})
}

func (l *Lifecycle) Decline(ctx context.Context, rideID types.ID, actor Actor, reason string) (*Ride, error) {
	return l.Transition(ctx, Command{RideID: rideID, To: StatusDeclined, Actor: actor, Message: orDefault(reason, "ride declined")})
}

func (l *Lifecycle) Reject(ctx context.Context, rideID types.ID, reason string) (*Ride, error) {
	return l.Transition(ctx, Command{RideID: rideID, To: StatusRejected, Actor: systemActor, Message: orDefault(reason, "ride rejected")})
}

func (l *Lifecycle) Panic(ctx context.Context, rideID types.ID, actor Actor, message string) (*Ride, error) {
	return l.Transition(ctx, Command{RideID: rideID, To: StatusPanic, Actor: actor, Message: orDefault(message, "panic raised")})
}

func (l *Lifecycle) Stop(ctx context.Context, rideID types.ID, actor Actor, reason string) (*Ride, error) {
	return l.Transition(ctx, Command{RideID: rideID, To: StatusStopped, Actor: actor, Message: orDefault(reason, "ride stopped")})
}

// Transition applies one status change. Transitions of the same ride are
// serialized; the lock always blocks, so none is ever dropped.
func (l *Lifecycle) Transition(ctx context.Context, cmd Command) (*Ride, error) {
	if cmd.RideID == "" {
		return nil, ErrBadRequest
	}
	assigning := cmd.To == StatusOngoing
	if assigning && cmd.DriverID == "" {
		return nil, ErrBadRequest
	}

	key := string(cmd.RideID)
	unlock := l.locks.Lock(key)
	updated, from, err := l.apply(ctx, cmd)
	if err != nil {
		unlock()
		return nil, err
	}
	// The notify turn is taken before the ride lock is released: deliveries of
	// one ride stay in transition order while the next transition proceeds.
	unlockNotify := l.notifyLocks.Lock(key)
	unlock()
	defer unlockNotify()

	l.log.Info("ride transitioned",
		logger.String("ride_id", updated.ID.String()),
		logger.String("from", string(from)),
		logger.String("to", string(updated.Status)),
		logger.String("actor", cmd.Actor.Type),
	)

	if assigning {
		l.notifier.OnAssigned(ctx, updated)
	}
	l.notifier.OnStatusChanged(ctx, updated, updated.Status, cmd.Message)
	return &updated, nil
}

// apply runs one transition under the ride lock and returns the committed ride
// with its previous status.
func (l *Lifecycle) apply(ctx context.Context, cmd Command) (Ride, Status, error) {
	assigning := cmd.To == StatusOngoing
	if assigning {
		current, err := l.store.Get(ctx, cmd.RideID)
		if err != nil {
			return Ride{}, StatusNone, err
		}
		if !CanTransition(current.Status, cmd.To) {
			return Ride{}, StatusNone, l.invalid(current, cmd.To)
		}
		ok, err := l.pool.Reserve(ctx, cmd.DriverID)
		if err != nil {
			return Ride{}, StatusNone, err
		}
		if !ok {
			return Ride{}, StatusNone, ErrDriverUnavailable
		}
	}

	var (
		updated Ride
		from    Status
	)
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := l.store.GetForUpdate(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		from = r.Status
		if !CanTransition(r.Status, cmd.To) {
			return l.invalid(r, cmd.To)
		}

		now := l.now()
		u := StatusUpdate{
			RideID:  r.ID,
			From:    r.Status,
			To:      cmd.To,
			Version: r.StatusVersion,
			At:      now,
		}
		switch {
		case assigning:
			d := cmd.DriverID
			u.DriverID = &d
			if err := l.ledger.BeginAccrual(ctx, d, now); err != nil {
				return err
			}
		case r.Status == StatusOngoing && r.DriverID != nil:
			u.Reason = cmd.Message
			startedAt := now
			if r.StartedAt != nil {
				startedAt = *r.StartedAt
			}
			if err := l.ledger.EndAccrual(ctx, *r.DriverID, startedAt); err != nil {
				return err
			}
		default:
			u.Reason = cmd.Message
		}

		if err := l.store.AppendEvent(ctx, &Event{
			RideID:    r.ID,
			From:      r.Status,
			To:        cmd.To,
			ActorType: cmd.Actor.Type,
			ActorID:   cmd.Actor.ID,
			Message:   cmd.Message,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		ok, err := l.store.UpdateStatus(ctx, u)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		updated = r.Clone()
		updated.Status = cmd.To
		updated.StatusVersion++
		if u.DriverID != nil {
			updated.DriverID = u.DriverID
			updated.StartedAt = &now
		} else {
			updated.EndedAt = &now
			updated.EndReason = u.Reason
		}
		return nil
	})
	if err != nil {
		if assigning {
			l.release(ctx, cmd.DriverID)
		}
		return Ride{}, StatusNone, err
	}

	if from == StatusOngoing && updated.DriverID != nil {
		l.release(ctx, *updated.DriverID)
	}
	return updated, from, nil
}

// invalid builds the rejection for a transition outside the table. These are
// races or caller bugs, so they are logged at error level.
func (l *Lifecycle) invalid(r *Ride, to Status) error {
	err := &TransitionError{RideID: r.ID, From: r.Status, To: to}
	l.log.Error("transition rejected",
		logger.String("ride_id", r.ID.String()),
		logger.String("from", string(r.Status)),
		logger.String("to", string(to)),
		logger.Error(err),
	)
	return err
}

func (l *Lifecycle) release(ctx context.Context, driverID types.ID) {
	if err := l.pool.Release(context.WithoutCancel(ctx), driverID); err != nil {
		l.log.Error("release driver",
			logger.String("driver_id", driverID.String()),
			logger.Error(err),
		)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
