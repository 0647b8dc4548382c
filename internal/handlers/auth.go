package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/middleware"
	"idees/internal/models"
	"idees/internal/services"
)

type AuthHandler struct {
	auth *services.Auth
	log  logger.Logger
}

func NewAuthHandler(auth *services.Auth, log logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

type signInBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var in services.SignUpInput
	if !bind(c, &in) {
		return
	}
	user, err := h.auth.SignUp(c.Request.Context(), in)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var body signInBody
	if !bind(c, &body) {
		return
	}
	user, err := h.auth.SignIn(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	OK(c, gin.H{"user": user})
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) bool {
	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		h.log.Error("save session", logger.String("user_id", user.ID), logger.Err(err))
		Fail(c, http.StatusInternalServerError, "Failed to sign in")
		return false
	}
	return true
}

// SignOut drops the session. The visitor cookie is left alone so votes
// cast anonymously stay attributed to this browser.
func (h *AuthHandler) SignOut(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		h.log.Error("clear session", logger.Err(err))
	}
	OK(c, nil)
}

// Me returns the signed-in user, or null.
func (h *AuthHandler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		OK(c, gin.H{"user": nil})
		return
	}
	OK(c, gin.H{"user": user, "unread_count": middleware.UnreadCount(c)})
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var in services.ProfileUpdate
	if !bind(c, &in) {
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), in)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"user": user})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var in services.PasswordChange
	if !bind(c, &in) {
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), currentUser(c), in); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}
