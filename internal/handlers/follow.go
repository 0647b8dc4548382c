package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/models"
	"idees/internal/services"
)

type FollowHandler struct {
	follows *services.Follows
	log     logger.Logger
}

func NewFollowHandler(follows *services.Follows, log logger.Logger) *FollowHandler {
	return &FollowHandler{follows: follows, log: log}
}

// Status is public; isFollowing is false for anonymous callers.
func (h *FollowHandler) Status(c *gin.Context) {
	st, err := h.follows.Status(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isFollowing": st.IsFollowing, "followerCount": st.FollowerCount})
}

func (h *FollowHandler) Follow(c *gin.Context)   { h.change(c, h.follows.Follow) }
func (h *FollowHandler) Unfollow(c *gin.Context) { h.change(c, h.follows.Unfollow) }

// change applies op and answers with the new status.
func (h *FollowHandler) change(c *gin.Context, op func(context.Context, *models.User, string) error) {
	if err := op(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		RenderError(c, h.log, err)
		return
	}
	h.Status(c)
}
