package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"idees/internal/cache"
	"idees/internal/identity"
	"idees/internal/logger"
	"idees/internal/services"
)

type SuggestionHandler struct {
	suggestions *services.Suggestions
	votes       *services.Votes
	pages       *cache.Pages
	identity    *identity.Resolver
	log         logger.Logger
}

func NewSuggestionHandler(suggestions *services.Suggestions, votes *services.Votes, pages *cache.Pages, ident *identity.Resolver, log logger.Logger) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions, votes: votes, pages: pages, identity: ident, log: log}
}

// List serves GET /. The page itself is cached by URL; has_voted is
// filled per viewer on a copy.
func (h *SuggestionHandler) List(c *gin.Context) {
	key := c.Request.URL.RequestURI()

	gen := h.pages.Generation()
	var page *services.Page
	if v, ok := h.pages.Get(key); ok {
		page = v.(*services.Page)
	} else {
		opts := services.ListOptions{
			Status: c.Query("status"),
			Sort:   c.Query("sort"),
			Page:   queryInt(c, "page"),
			Limit:  queryInt(c, "limit"),
			Search: c.Query("q"),
			TagID:  c.Query("tag"),
		}
		p, err := h.suggestions.List(c.Request.Context(), opts)
		if err != nil {
			RenderError(c, h.log, err)
			return
		}
		h.pages.Set(key, p, gen)
		page = p
	}

	out := *page
	out.Items = make([]services.SuggestionView, len(page.Items))
	copy(out.Items, page.Items)

	if voter, ok := h.identity.Peek(c, currentUser(c)); ok && len(out.Items) > 0 {
		ids := make([]string, len(out.Items))
		for i, s := range out.Items {
			ids[i] = s.ID
		}
		voted := h.votes.VotedSet(c.Request.Context(), voter, ids)
		for i := range out.Items {
			out.Items[i].HasVoted = voted[out.Items[i].ID]
		}
	}
	OK(c, gin.H{"data": out})
}

func (h *SuggestionHandler) Detail(c *gin.Context) {
	id := c.Param("id")
	key := cache.SuggestionPath(id)

	gen := h.pages.Generation()
	var view *services.SuggestionView
	if v, ok := h.pages.Get(key); ok {
		view = v.(*services.SuggestionView)
	} else {
		sv, err := h.suggestions.Get(c.Request.Context(), id)
		if err != nil {
			RenderError(c, h.log, err)
			return
		}
		h.pages.Set(key, sv, gen)
		view = sv
	}

	out := *view
	if voter, ok := h.identity.Peek(c, currentUser(c)); ok {
		out.HasVoted = h.votes.VotedSet(c.Request.Context(), voter, []string{id})[id]
	}
	OK(c, gin.H{"suggestion": out})
}

func (h *SuggestionHandler) Create(c *gin.Context) {
	var in services.SuggestionInput
	if !bind(c, &in) {
		return
	}
	s, err := h.suggestions.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "suggestion": s})
}

func (h *SuggestionHandler) Update(c *gin.Context) {
	var in services.SuggestionUpdate
	if !bind(c, &in) {
		return
	}
	if err := h.suggestions.Update(c.Request.Context(), currentUser(c), c.Param("id"), in); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}

func (h *SuggestionHandler) Delete(c *gin.Context) {
	if err := h.suggestions.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, nil)
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
