// README: Ride aggregate, status definitions and the transition table.
package ride

import (
	"errors"
	"fmt"
	"time"

	"ridehail/internal/modules/route"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

type Status string

const (
	StatusNone                 Status = ""
	StatusScheduled            Status = "SCHEDULED"
	StatusOngoing              Status = "ONGOING"
	StatusFinished             Status = "FINISHED"
	StatusPanic                Status = "PANIC"
	StatusCancelledByDriver    Status = "CANCELLED_BY_DRIVER"
	StatusCancelledByPassenger Status = "CANCELLED_BY_PASSENGER"
	StatusDeclined             Status = "DECLINED"
	StatusRejected             Status = "REJECTED"
	StatusStopped              Status = "STOPPED"
)

const (
	ActorSystem    = "system"
	ActorDriver    = "driver"
	ActorPassenger = "passenger"
	ActorAdmin     = "admin"
)

var (
	ErrInvalidTransition = errors.New("invalid ride status transition")
	ErrNotFound          = errors.New("ride not found")
	ErrConflict          = errors.New("ride state conflict")
	ErrDriverUnavailable = errors.New("driver no longer available")
	ErrActiveRide        = errors.New("passenger has active ride")
	ErrBadRequest        = errors.New("bad request")
)

// TransitionError reports a transition outside the table. It matches
// ErrInvalidTransition.
type TransitionError struct {
	RideID types.ID
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ride %s: %s -> %s: %v", e.RideID, e.From, e.To, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type Passenger struct {
	ID   types.ID `json:"id"`
	Main bool     `json:"main"`
}

type Ride struct {
	ID            types.ID              `json:"id"`
	Status        Status                `json:"status"`
	StatusVersion int                   `json:"statusVersion"`
	DriverID      *types.ID             `json:"driverId,omitempty"`
	Route         route.Route           `json:"route"`
	Vehicle       vehicle.Specification `json:"vehicle"`
	Passengers    []Passenger           `json:"passengers"`
	Price         types.Money           `json:"price"`
	ScheduledAt   *time.Time            `json:"scheduledAt,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	StartedAt     *time.Time            `json:"startedAt,omitempty"`
	EndedAt       *time.Time            `json:"endedAt,omitempty"`
	EndReason     string                `json:"endReason,omitempty"`
}

func (r *Ride) MainPassenger() types.ID {
	for _, p := range r.Passengers {
		if p.Main {
			return p.ID
		}
	}
	return ""
}

func (r *Ride) HasPassenger(id types.ID) bool {
	for _, p := range r.Passengers {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Clone copies the slices and pointers so callers cannot alias store state.
func (r Ride) Clone() Ride {
	if r.DriverID != nil {
		d := *r.DriverID
		r.DriverID = &d
	}
	r.ScheduledAt = cloneTime(r.ScheduledAt)
	r.StartedAt = cloneTime(r.StartedAt)
	r.EndedAt = cloneTime(r.EndedAt)
	r.Passengers = append([]Passenger(nil), r.Passengers...)
	r.Route.Stops = append([]route.Stop(nil), r.Route.Stops...)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type Event struct {
	ID        int64     `json:"id"`
	RideID    types.ID  `json:"rideId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorType string    `json:"actorType"`
	ActorID   *types.ID `json:"actorId,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AllowedTransitions represents the ride state flow as code. Statuses without
// an entry are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusScheduled: {StatusOngoing, StatusCancelledByPassenger, StatusDeclined, StatusRejected},
	StatusOngoing:   {StatusFinished, StatusPanic, StatusCancelledByDriver, StatusStopped},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	_, ok := AllowedTransitions[s]
	return !ok
}

// HasDriver reports whether a ride in status s carries a driver.
func HasDriver(s Status) bool {
	switch s {
	case StatusOngoing, StatusFinished, StatusPanic, StatusCancelledByDriver, StatusStopped:
		return true
	}
	return false
}
