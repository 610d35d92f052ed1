// README: Notification inbox handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"ridehail/internal/modules/notification"
	"ridehail/internal/types"
)

type NotificationHandler struct {
	notifications *notification.Service
}

func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{notifications: svc}
}

// List returns ?recipient='s newest notifications; ?limit caps the page.
func (h *NotificationHandler) List(c *gin.Context) {
	recipient := c.Query("recipient")
	if !isValidID(recipient) {
		writeError(c, http.StatusBadRequest, "invalid recipient")
		return
	}
	items, err := h.notifications.List(c.Request.Context(), types.ID(recipient), cast.ToInt(c.Query("limit")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}
	writeJSON(c, http.StatusOK, gin.H{"notifications": items})
}

func (h *NotificationHandler) Open(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	recipient := c.Query("recipient")
	if !isValidID(recipient) {
		writeError(c, http.StatusBadRequest, "invalid recipient")
		return
	}
	if err := h.notifications.Open(c.Request.Context(), types.ID(id), types.ID(recipient)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": id, "opened": true})
}
