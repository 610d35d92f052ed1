// README: Ride handlers: request, read, event log and the actor-driven transitions.
package handlers

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/route"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

type RideHandler struct {
	rides *ride.Service
	life  *ride.Lifecycle
}

func NewRideHandler(rides *ride.Service, life *ride.Lifecycle) *RideHandler {
	return &RideHandler{rides: rides, life: life}
}

type requestRideBody struct {
	PassengerID string                `json:"passengerId"`
	Companions  []string              `json:"companions"`
	Stops       []route.Stop          `json:"stops"`
	RouteID     string                `json:"routeId"`
	Vehicle     vehicle.Specification `json:"vehicle"`
	ScheduledAt *time.Time            `json:"scheduledAt"`
}

type transitionBody struct {
	ActorType string `json:"actorType"`
	ActorID   string `json:"actorId"`
	Reason    string `json:"reason"`
}

func (h *RideHandler) Request(c *gin.Context) {
	var body requestRideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(body.PassengerID) {
		writeError(c, http.StatusBadRequest, "invalid passengerId")
		return
	}
	vt, err := vehicle.ParseType(string(body.Vehicle.Type))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	body.Vehicle.Type = vt

	companions := make([]types.ID, 0, len(body.Companions))
	for _, id := range body.Companions {
		companions = append(companions, types.ID(id))
	}
	r, err := h.rides.Request(c.Request.Context(), ride.RequestCommand{
		PassengerID: types.ID(body.PassengerID),
		Companions:  companions,
		Stops:       body.Stops,
		RouteID:     types.ID(body.RouteID),
		Vehicle:     body.Vehicle,
		ScheduledAt: body.ScheduledAt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *RideHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RideHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.rides.Events(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

// Cancel ends the ride on behalf of a passenger before pickup, or of the
// driver once it is under way. actorType picks which.
func (h *RideHandler) Cancel(c *gin.Context) {
	h.transition(c, []string{ride.ActorPassenger, ride.ActorDriver}, func(ctx context.Context, id types.ID, a ride.Actor, reason string) (*ride.Ride, error) {
		if a.Type == ride.ActorDriver {
			return h.life.CancelByDriver(ctx, id, a, reason)
		}
		return h.life.CancelByPassenger(ctx, id, a, reason)
	})
}

func (h *RideHandler) Decline(c *gin.Context) {
	h.transition(c, []string{ride.ActorDriver}, h.life.Decline)
}

func (h *RideHandler) Finish(c *gin.Context) {
	h.transition(c, []string{ride.ActorDriver}, func(ctx context.Context, id types.ID, a ride.Actor, _ string) (*ride.Ride, error) {
		return h.life.Finish(ctx, id, a)
	})
}

func (h *RideHandler) Panic(c *gin.Context) {
	h.transition(c, []string{ride.ActorPassenger, ride.ActorDriver}, h.life.Panic)
}

func (h *RideHandler) Stop(c *gin.Context) {
	h.transition(c, []string{ride.ActorAdmin, ride.ActorDriver}, h.life.Stop)
}

type transitionFunc func(ctx context.Context, rideID types.ID, actor ride.Actor, reason string) (*ride.Ride, error)

// transition parses the actor, checks it belongs to the ride and applies fn.
// The first allowed actor type is the default.
func (h *RideHandler) transition(c *gin.Context, allowed []string, fn transitionFunc) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body transitionBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	actorType := strings.ToLower(strings.TrimSpace(body.ActorType))
	if actorType == "" {
		actorType = allowed[0]
	}
	if !slices.Contains(allowed, actorType) {
		writeError(c, http.StatusBadRequest, "actorType must be one of "+strings.Join(allowed, ", "))
		return
	}
	actor := ride.Actor{Type: actorType}
	if actorType != ride.ActorAdmin {
		if !isValidID(body.ActorID) {
			writeError(c, http.StatusBadRequest, "invalid actorId")
			return
		}
		aid := types.ID(body.ActorID)
		actor.ID = &aid
	}

	ctx := c.Request.Context()
	current, err := h.life.Get(ctx, types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if err := authorize(current, actor); err != nil {
		writeServiceError(c, err)
		return
	}
	r, err := fn(ctx, types.ID(id), actor, strings.TrimSpace(body.Reason))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

// authorize checks the actor is on the ride. Any driver may act on a ride
// that has none yet; from SCHEDULED only DECLINED is open to drivers.
func authorize(r *ride.Ride, a ride.Actor) error {
	switch a.Type {
	case ride.ActorPassenger:
		if !r.HasPassenger(*a.ID) {
			return errForbidden
		}
	case ride.ActorDriver:
		if r.DriverID != nil && *r.DriverID != *a.ID {
			return errForbidden
		}
	}
	return nil
}
