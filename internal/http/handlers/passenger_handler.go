// README: Passenger handlers (favorite routes).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/modules/route"
	"ridehail/internal/types"
)

type PassengerHandler struct {
	routes *route.Service
}

func NewPassengerHandler(routes *route.Service) *PassengerHandler {
	return &PassengerHandler{routes: routes}
}

type addFavoriteReq struct {
	RouteID string `json:"routeId"`
	Name    string `json:"name"`
}

func (h *PassengerHandler) ListFavorites(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	favs, err := h.routes.ListFavorites(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if favs == nil {
		favs = []route.FavoriteRoute{}
	}
	writeJSON(c, http.StatusOK, gin.H{"favorites": favs})
}

func (h *PassengerHandler) AddFavorite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addFavoriteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.RouteID) {
		writeError(c, http.StatusBadRequest, "invalid routeId")
		return
	}
	err := h.routes.AddFavorite(c.Request.Context(), route.AddFavoriteCommand{
		PassengerID: types.ID(id),
		RouteID:     types.ID(req.RouteID),
		Name:        req.Name,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"passengerId": id, "routeId": req.RouteID})
}

func (h *PassengerHandler) RemoveFavorite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	routeID, ok := pathID(c, "routeId")
	if !ok {
		return
	}
	if err := h.routes.RemoveFavorite(c.Request.Context(), types.ID(id), types.ID(routeID)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
