package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/services"
)

type CommentHandler struct {
	comments *services.Comments
	log      logger.Logger
}

func NewCommentHandler(comments *services.Comments, log logger.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, log: log}
}

type commentBody struct {
	Content string `json:"content"`
}

func (h *CommentHandler) List(c *gin.Context) {
	list, err := h.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"comments": list})
}

func (h *CommentHandler) Create(c *gin.Context) {
	var body commentBody
	if !bind(c, &body) {
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), currentUser(c), c.Param("id"), body.Content)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": comment})
}

func (h *CommentHandler) Update(c *gin.Context) {
	var body commentBody
	if !bind(c, &body) {
		return
	}
	if err := h.comments.Update(c.Request.Context(), currentUser(c), c.Param("id"), body.Content); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}
