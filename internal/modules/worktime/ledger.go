// README: Working-time ledger: per driver, per day accrual with a daily ceiling.
package worktime

import (
	"context"
	"time"

	"ridehail/internal/logger"
	"ridehail/internal/syncx"
	"ridehail/internal/types"
)

const dayLayout = "2006-01-02"

type Store interface {
	Get(ctx context.Context, driverID types.ID, day time.Time) (DailyLog, error)
	List(ctx context.Context, driverIDs []types.ID, day time.Time) (map[types.ID]DailyLog, error)
	Begin(ctx context.Context, driverID types.ID, day, at time.Time) (bool, error)
	End(ctx context.Context, driverID types.ID, day, at time.Time) (int64, bool, error)
	ListActive(ctx context.Context) ([]DailyLog, error)
}

// Ledger is the only writer of daily logs. Calls for the same driver and day
// are serialized in process; the stores keep each mutation to one statement.
type Ledger struct {
	store    Store
	maxDaily time.Duration
	loc      *time.Location
	now      func() time.Time
	locks    *syncx.KeyedMutex
	log      logger.ILogger
}

func NewLedger(store Store, maxDaily time.Duration, loc *time.Location, log logger.ILogger) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		store:    store,
		maxDaily: maxDaily,
		loc:      loc,
		now:      time.Now,
		locks:    syncx.NewKeyedMutex(),
		log:      log,
	}
}

// Day is the calendar day of at in the ledger's time zone.
func (l *Ledger) Day(at time.Time) time.Time {
	return Civil(at, l.loc)
}

// Location is the zone that decides where a working day starts.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// MaxDaily is the configured ceiling.
func (l *Ledger) MaxDaily() time.Duration {
	return l.maxDaily
}

// CanAcceptMoreWork is false once the driver's time on the day of asOf meets
// or exceeds the ceiling.
func (l *Ledger) CanAcceptMoreWork(ctx context.Context, driverID types.ID, asOf time.Time) (bool, error) {
	dl, err := l.store.Get(ctx, driverID, l.Day(asOf))
	if err != nil {
		return false, err
	}
	return dl.Total(l.now()) < int64(l.maxDaily/time.Second), nil
}

// AccruedSeconds returns today's totals for the given drivers; drivers without
// a row map to zero.
func (l *Ledger) AccruedSeconds(ctx context.Context, driverIDs []types.ID, asOf time.Time) (map[types.ID]int64, error) {
	logs, err := l.store.List(ctx, driverIDs, l.Day(asOf))
	if err != nil {
		return nil, err
	}
	now := l.now()
	out := make(map[types.ID]int64, len(driverIDs))
	for _, id := range driverIDs {
		out[id] = logs[id].Total(now)
	}
	return out, nil
}

func (l *Ledger) Log(ctx context.Context, driverID types.ID, asOf time.Time) (DailyLog, error) {
	return l.store.Get(ctx, driverID, l.Day(asOf))
}

// BeginAccrual starts the clock for the day of asOf. A row that is still
// active from an interrupted ride is credited up to now and restarted.
func (l *Ledger) BeginAccrual(ctx context.Context, driverID types.ID, asOf time.Time) error {
	day := l.Day(asOf)
	unlock := l.locks.Lock(lockKey(driverID, day))
	defer unlock()

	now := l.now()
	started, err := l.store.Begin(ctx, driverID, day, now)
	if err != nil || started {
		return err
	}

	added, _, err := l.store.End(ctx, driverID, day, now)
	if err != nil {
		return err
	}
	l.log.Warning("accrual already active; credited and restarted",
		logger.String("driver_id", driverID.String()),
		logger.String("day", day.Format(dayLayout)),
		logger.Int64("credited_seconds", added),
	)
	_, err = l.store.Begin(ctx, driverID, day, now)
	return err
}

// EndAccrual stops the clock for the day of asOf and credits the elapsed
// seconds. Without an active accrual it only logs a warning.
func (l *Ledger) EndAccrual(ctx context.Context, driverID types.ID, asOf time.Time) error {
	day := l.Day(asOf)
	unlock := l.locks.Lock(lockKey(driverID, day))
	defer unlock()

	added, ok, err := l.store.End(ctx, driverID, day, l.now())
	if err != nil {
		return err
	}
	if !ok {
		l.log.Warning("end accrual without begin",
			logger.String("driver_id", driverID.String()),
			logger.String("day", day.Format(dayLayout)),
		)
		return nil
	}
	l.log.Debug("accrual ended",
		logger.String("driver_id", driverID.String()),
		logger.String("day", day.Format(dayLayout)),
		logger.Int64("added_seconds", added),
	)
	return nil
}

// ReconcileOrphans closes active rows whose driver is no longer on a ride,
// crediting the time up to now. Rows of drivers still on a ride are left for
// the ride to close.
func (l *Ledger) ReconcileOrphans(ctx context.Context, onRide func(ctx context.Context, driverID types.ID) (bool, error)) (int, error) {
	active, err := l.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, dl := range active {
		busy, err := onRide(ctx, dl.DriverID)
		if err != nil {
			return closed, err
		}
		if busy {
			continue
		}

		unlock := l.locks.Lock(lockKey(dl.DriverID, dl.Day))
		added, ok, err := l.store.End(ctx, dl.DriverID, dl.Day, l.now())
		unlock()
		if err != nil {
			return closed, err
		}
		if !ok {
			continue
		}
		closed++
		l.log.Warning("orphaned accrual closed",
			logger.String("driver_id", dl.DriverID.String()),
			logger.String("day", dl.Day.Format(dayLayout)),
			logger.Int64("credited_seconds", added),
		)
	}
	return closed, nil
}

func lockKey(driverID types.ID, day time.Time) string {
	return string(driverID) + "|" + day.Format(dayLayout)
}
