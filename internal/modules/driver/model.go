// README: Driver registry: who drives what vehicle.
package driver

import (
	"errors"
	"time"

	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

var (
	ErrNotFound   = errors.New("driver not found")
	ErrBadRequest = errors.New("bad request")
)

type Driver struct {
	ID        types.ID              `json:"id"`
	Name      string                `json:"name"`
	Vehicle   vehicle.Specification `json:"vehicle"`
	UpdatedAt time.Time             `json:"updatedAt"`
}
