// README: Notification records and the ride events they are produced from.
package notification

import (
	"errors"
	"time"

	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

var ErrNotFound = errors.New("notification not found")

type Kind string

const (
	KindRideStarting  Kind = "RIDE_STARTING"
	KindRideStarted   Kind = "RIDE_STARTED"
	KindRideCompleted Kind = "RIDE_COMPLETED"
	KindRideCancelled Kind = "RIDE_CANCELLED"
	KindRideRejected  Kind = "RIDE_REJECTED"
	KindAddedToRide   Kind = "ADDED_TO_RIDE"
)

type Notification struct {
	ID        types.ID  `json:"id"`
	Recipient types.ID  `json:"recipient"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	RideID    *types.ID `json:"rideId,omitempty"`
	Opened    bool      `json:"opened"`
	CreatedAt time.Time `json:"createdAt"`
}

// AssignedEvent is published on a driver's assigned channel.
type AssignedEvent struct {
	RideID types.ID `json:"rideId"`
}

// StatusEvent is published on a passenger's status channel.
type StatusEvent struct {
	Status  ride.Status `json:"status"`
	RideID  types.ID    `json:"rideId"`
	Message string      `json:"message"`
}

func DriverAssignedChannel(driverID types.ID) string {
	return "drivers:" + string(driverID) + ":assigned"
}

func PassengerStatusChannel(passengerID types.ID) string {
	return "passengers:" + string(passengerID) + ":ride-status"
}

// KindForStatus maps a ride status to the passenger-facing kind. SCHEDULED
// has no kind of its own.
func KindForStatus(s ride.Status) (Kind, bool) {
	switch s {
	case ride.StatusOngoing:
		return KindRideStarted, true
	case ride.StatusFinished:
		return KindRideCompleted, true
	case ride.StatusCancelledByDriver, ride.StatusCancelledByPassenger, ride.StatusPanic, ride.StatusStopped:
		return KindRideCancelled, true
	case ride.StatusRejected, ride.StatusDeclined:
		return KindRideRejected, true
	}
	return "", false
}

var defaultContent = map[Kind]string{
	KindRideStarting:  "You have been assigned a ride",
	KindRideStarted:   "Your driver is on the way",
	KindRideCompleted: "Your ride is complete",
	KindRideCancelled: "Your ride was cancelled",
	KindRideRejected:  "Your ride request could not be served",
	KindAddedToRide:   "You were added to a ride",
}

func contentFor(k Kind, message string) string {
	if message != "" {
		return message
	}
	return defaultContent[k]
}
