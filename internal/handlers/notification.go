package handlers

import (
	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/middleware"
	"idees/internal/services"
)

type NotificationHandler struct {
	notes *services.Notifications
	log   logger.Logger
}

func NewNotificationHandler(notes *services.Notifications, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{notes: notes, log: log}
}

// List returns the newest notifications; ?unread=1 keeps unread ones only.
func (h *NotificationHandler) List(c *gin.Context) {
	unread := c.Query("unread") == "1" || c.Query("unread") == "true"
	list, err := h.notes.List(c.Request.Context(), currentUser(c), unread)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"notifications": list, "unread_count": middleware.UnreadCount(c)})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	if err := h.notes.MarkRead(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	n, err := h.notes.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"marked": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}
