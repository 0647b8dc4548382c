package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/services"
)

// AdminHandler serves /admin. AdminRequired guards the group; the service
// checks again.
type AdminHandler struct {
	admin *services.Admin
	log   logger.Logger
}

func NewAdminHandler(admin *services.Admin, log logger.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, log: log}
}

type markDoneBody struct {
	Links   []string `json:"links"`
	Comment string   `json:"comment"`
}

type linkBody struct {
	URL string `json:"url"`
}

type doneCommentBody struct {
	Comment string `json:"comment"`
}

func (h *AdminHandler) respond(c *gin.Context, err error) {
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}

func (h *AdminHandler) MarkDone(c *gin.Context) {
	var body markDoneBody
	if !bind(c, &body) {
		return
	}
	h.respond(c, h.admin.MarkDone(c.Request.Context(), currentUser(c), c.Param("id"), body.Links, body.Comment))
}

func (h *AdminHandler) Reopen(c *gin.Context) {
	h.respond(c, h.admin.Reopen(c.Request.Context(), currentUser(c), c.Param("id")))
}

func (h *AdminHandler) AddLink(c *gin.Context) {
	var body linkBody
	if !bind(c, &body) {
		return
	}
	link, err := h.admin.AddLink(c.Request.Context(), currentUser(c), c.Param("id"), body.URL)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "link": link})
}

func (h *AdminHandler) DeleteLink(c *gin.Context) {
	h.respond(c, h.admin.DeleteLink(c.Request.Context(), currentUser(c), c.Param("id")))
}

func (h *AdminHandler) UpdateDoneComment(c *gin.Context) {
	var body doneCommentBody
	if !bind(c, &body) {
		return
	}
	h.respond(c, h.admin.UpdateDoneComment(c.Request.Context(), currentUser(c), c.Param("id"), body.Comment))
}

func (h *AdminHandler) BackfillLinks(c *gin.Context) {
	n, err := h.admin.BackfillLinkMetadata(c.Request.Context(), currentUser(c))
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"updated": n})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"stats": st})
}

func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.admin.Users(c.Request.Context(), currentUser(c))
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"users": users})
}

func (h *AdminHandler) ToggleAdmin(c *gin.Context) {
	h.respond(c, h.admin.ToggleAdmin(c.Request.Context(), currentUser(c), c.Param("id")))
}

func (h *AdminHandler) ToggleBan(c *gin.Context) {
	h.respond(c, h.admin.ToggleBan(c.Request.Context(), currentUser(c), c.Param("id")))
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var in services.UserUpdate
	if !bind(c, &in) {
		return
	}
	h.respond(c, h.admin.UpdateUser(c.Request.Context(), currentUser(c), c.Param("id"), in))
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	h.respond(c, h.admin.DeleteUser(c.Request.Context(), currentUser(c), c.Param("id")))
}

func (h *AdminHandler) Comments(c *gin.Context) {
	list, err := h.admin.AllComments(c.Request.Context(), currentUser(c))
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"comments": list})
}

func (h *AdminHandler) DeleteComment(c *gin.Context) {
	h.respond(c, h.admin.DeleteComment(c.Request.Context(), currentUser(c), c.Param("id")))
}
