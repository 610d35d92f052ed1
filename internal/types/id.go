// README: Shared identifier and coordinate value objects.
package types

import "github.com/google/uuid"

// ID identifies rides, drivers, passengers, routes and notifications.
type ID string

func (id ID) String() string { return string(id) }

// NewID returns a random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
