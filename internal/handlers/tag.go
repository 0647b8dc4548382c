package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/services"
)

type TagHandler struct {
	tags *services.Tags
	log  logger.Logger
}

func NewTagHandler(tags *services.Tags, log logger.Logger) *TagHandler {
	return &TagHandler{tags: tags, log: log}
}

type tagBody struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"tags": tags})
}

func (h *TagHandler) Create(c *gin.Context) {
	var body tagBody
	if !bind(c, &body) {
		return
	}
	tag, err := h.tags.Create(c.Request.Context(), currentUser(c), body.Name, body.Icon)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "tag": tag})
}

func (h *TagHandler) UpdateIcon(c *gin.Context) {
	var body tagBody
	if !bind(c, &body) {
		return
	}
	if err := h.tags.UpdateIcon(c.Request.Context(), currentUser(c), c.Param("id"), body.Icon); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}

func (h *TagHandler) Delete(c *gin.Context) {
	if err := h.tags.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}
