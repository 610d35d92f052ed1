// README: Scheduler ticker: dispatches scheduled rides whose departure time has come.
package dispatch

import (
	"context"
	"errors"
	"time"

	"ridehail/internal/logger"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type DueRides interface {
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]types.ID, error)
}

type RideDispatcher interface {
	Dispatch(ctx context.Context, rideID types.ID) (*ride.Ride, error)
}

type Scheduler struct {
	due        DueRides
	dispatcher RideDispatcher
	interval   time.Duration
	batch      int
	now        func() time.Time
	log        logger.ILogger
}

func NewScheduler(due DueRides, dispatcher RideDispatcher, interval time.Duration, batch int, log logger.ILogger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Scheduler{
		due:        due,
		dispatcher: dispatcher,
		interval:   interval,
		batch:      batch,
		now:        time.Now,
		log:        log,
	}
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick dispatches one batch of due rides and returns how many were assigned.
func (s *Scheduler) Tick(ctx context.Context) int {
	ids, err := s.due.ListDueScheduled(ctx, s.now(), s.batch)
	if err != nil {
		s.log.Error("list due rides", logger.Error(err))
		return 0
	}
	assigned := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		_, err := s.dispatcher.Dispatch(ctx, id)
		var failure *Failure
		switch {
		case err == nil:
			assigned++
		case errors.As(err, &failure):
			s.log.Info("scheduled ride not dispatched",
				logger.String("ride_id", id.String()),
				logger.String("reason", failure.Reason.Error()),
			)
		case errors.Is(err, ride.ErrInvalidTransition):
			// cancelled between listing and dispatch
		default:
			s.log.Error("dispatch scheduled ride",
				logger.String("ride_id", id.String()),
				logger.Error(err),
			)
		}
	}
	return assigned
}
