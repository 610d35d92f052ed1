// README: Driver handlers: vehicle registration, availability and working time.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/modules/worktime"
	"ridehail/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
	ledger  *worktime.Ledger
}

func NewDriverHandler(drivers *driver.Service, ledger *worktime.Ledger) *DriverHandler {
	return &DriverHandler{drivers: drivers, ledger: ledger}
}

type registerVehicleBody struct {
	Name    string                `json:"name"`
	Vehicle vehicle.Specification `json:"vehicle"`
}

type workingTimeResponse struct {
	DriverID          types.ID `json:"driverId"`
	Day               string   `json:"day"`
	ActiveSeconds     int64    `json:"activeSeconds"`
	Active            bool     `json:"active"`
	MaxSeconds        int64    `json:"maxSeconds"`
	CanAcceptMoreWork bool     `json:"canAcceptMoreWork"`
}

func (h *DriverHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) RegisterVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body registerVehicleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	vt, err := vehicle.ParseType(string(body.Vehicle.Type))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	body.Vehicle.Type = vt
	d, err := h.drivers.RegisterVehicle(c.Request.Context(), driver.RegisterVehicleCommand{
		DriverID: types.ID(id),
		Name:     body.Name,
		Vehicle:  body.Vehicle,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) Online(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.drivers.GoOnline(c.Request.Context(), types.ID(id)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driverId": id, "online": true})
}

func (h *DriverHandler) Offline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.drivers.GoOffline(c.Request.Context(), types.ID(id)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driverId": id, "online": false})
}

// WorkingTime reports the driver's ledger for ?date=YYYY-MM-DD, today by
// default. Past days are totalled up to their end.
func (h *DriverHandler) WorkingTime(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	now := time.Now()
	asOf := now
	if date := c.Query("date"); date != "" {
		day, err := time.ParseInLocation(time.DateOnly, date, h.ledger.Location())
		if err != nil {
			writeError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		switch end := day.AddDate(0, 0, 1).Add(-time.Second); {
		case end.Before(now):
			asOf = end
		case day.After(now):
			asOf = day
		}
	}

	ctx := c.Request.Context()
	dl, err := h.ledger.Log(ctx, types.ID(id), asOf)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	can, err := h.ledger.CanAcceptMoreWork(ctx, types.ID(id), asOf)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, workingTimeResponse{
		DriverID:          types.ID(id),
		Day:               h.ledger.Day(asOf).Format(time.DateOnly),
		ActiveSeconds:     dl.Total(asOf),
		Active:            dl.Active,
		MaxSeconds:        int64(h.ledger.MaxDaily() / time.Second),
		CanAcceptMoreWork: can,
	})
}
