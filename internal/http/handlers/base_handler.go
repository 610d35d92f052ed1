// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/modules/dispatch"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/notification"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/route"
	"ridehail/internal/modules/vehicle"
)

var errForbidden = errors.New("actor is not part of this ride")

type errorResponse struct {
	Error string `json:"error"`
}

// dispatchFailureResponse carries the rejected ride next to the reason.
type dispatchFailureResponse struct {
	Error string     `json:"error"`
	Ride  *ride.Ride `json:"ride,omitempty"`
}

// isValidID accepts generated UUIDs and the short alphanumeric IDs used by clients.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	var failure *dispatch.Failure
	if errors.As(err, &failure) {
		writeJSON(c, http.StatusConflict, dispatchFailureResponse{Error: failure.Reason.Error(), Ride: failure.Ride})
		return
	}

	switch {
	case errors.Is(err, ride.ErrBadRequest),
		errors.Is(err, route.ErrBadRequest),
		errors.Is(err, driver.ErrBadRequest),
		errors.Is(err, vehicle.ErrInvalidSpecification):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, errForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrNotFound),
		errors.Is(err, route.ErrNotFound),
		errors.Is(err, driver.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrInvalidTransition),
		errors.Is(err, ride.ErrConflict),
		errors.Is(err, ride.ErrActiveRide),
		errors.Is(err, ride.ErrDriverUnavailable),
		errors.Is(err, route.ErrFavoriteExists):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, route.ErrNoRouteGeometry):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// pathID reads and validates a path parameter, writing 400 when it is unusable.
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return id, true
}
