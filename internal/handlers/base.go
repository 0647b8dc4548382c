package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/middleware"
	"idees/internal/models"
	"idees/internal/services"
)

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

// OK writes {"success": true} merged with obj.
func OK(c *gin.Context, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}
	obj["success"] = true
	c.JSON(http.StatusOK, obj)
}

// Fail writes {"success": false, "error": message}.
func Fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": false, "error": message})
}

// bind decodes the JSON body into dst and reports a 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		Fail(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// RenderError maps a service error onto a status and a user-facing
// message. Storage failures are logged and reported generically.
func RenderError(c *gin.Context, log logger.Logger, err error) {
	var ve *services.ValidationError
	var ie *services.InternalError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Validation failed", "errors": ve.Fields})
	case errors.Is(err, services.ErrUnauthenticated):
		Fail(c, http.StatusUnauthorized, "Sign in required")
	case errors.Is(err, services.ErrInvalidCredentials):
		Fail(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrBanned):
		Fail(c, http.StatusForbidden, "Your account is suspended")
	case errors.Is(err, services.ErrSelfAction):
		Fail(c, http.StatusForbidden, "You cannot do this to your own account")
	case errors.Is(err, services.ErrForbidden):
		Fail(c, http.StatusForbidden, "Not allowed")
	case errors.Is(err, services.ErrNotFound):
		Fail(c, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, services.ErrEmailTaken):
		Fail(c, http.StatusConflict, "Email already registered")
	case errors.As(err, &ie):
		log.Error(ie.Op, logger.String("path", c.Request.URL.Path), logger.Err(ie.Err))
		Fail(c, http.StatusInternalServerError, "Failed to "+ie.Op)
	default:
		log.Error("unhandled error", logger.String("path", c.Request.URL.Path), logger.Err(err))
		Fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
