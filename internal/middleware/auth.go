package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/models"
	"idees/internal/services"
)

const (
	CurrentUserKey = "user"
	UnreadCountKey = "unread_count"

	// SessionUserKey is the session field holding the signed-in user id.
	SessionUserKey = "user_id"
)

type UserLoader interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
}

type UnreadCounter interface {
	UnreadCount(ctx context.Context, user *models.User) (int64, error)
}

// LoadUser resolves the session user and the unread notification count
// into the request context. A session pointing at a deleted user is
// cleared.
func LoadUser(users UserLoader, notes UnreadCounter, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, _ := session.Get(SessionUserKey).(string)
		if id == "" {
			c.Next()
			return
		}

		user, err := users.UserByID(c.Request.Context(), id)
		switch {
		case err == nil:
			c.Set(CurrentUserKey, user)
			if n, err := notes.UnreadCount(c.Request.Context(), user); err == nil {
				c.Set(UnreadCountKey, n)
			} else {
				log.Error("count unread notifications", logger.String("user_id", id), logger.Err(err))
			}
		case errors.Is(err, services.ErrNotFound):
			session.Delete(SessionUserKey)
			if err := session.Save(); err != nil {
				log.Error("clear stale session", logger.Err(err))
			}
		default:
			log.Error("load session user", logger.String("user_id", id), logger.Err(err))
		}
		c.Next()
	}
}

// CurrentUser returns the signed-in user or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CurrentUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func UnreadCount(c *gin.Context) int64 {
	n, _ := c.Get(UnreadCountKey)
	count, _ := n.(int64)
	return count
}

// AuthRequired rejects anonymous callers. LoadUser must run first.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Sign in required"})
			return
		}
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Sign in required"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Admin access required"})
			return
		}
		c.Next()
	}
}
