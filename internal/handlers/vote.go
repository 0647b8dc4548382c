package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"idees/internal/identity"
	"idees/internal/logger"
	"idees/internal/services"
)

const maxVoteLookup = 100

type VoteHandler struct {
	votes    *services.Votes
	identity *identity.Resolver
	log      logger.Logger
}

func NewVoteHandler(votes *services.Votes, ident *identity.Resolver, log logger.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, identity: ident, log: log}
}

// Toggle flips the caller's vote. Anonymous callers vote under their
// visitor cookie, which is minted here on first use.
func (h *VoteHandler) Toggle(c *gin.Context) {
	user := currentUser(c)
	voter := h.identity.Resolve(c, user)

	var userID *string
	if user != nil {
		userID = &user.ID
	}
	res := h.votes.Toggle(c.Request.Context(), c.Param("id"), voter, userID)

	status := http.StatusOK
	switch {
	case res.Success:
	case res.Error == services.MsgSuggestionNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}
	c.JSON(status, res)
}

// Voted reports which of ?ids=a,b the caller has voted for, plus the
// current counts. It never mints a visitor cookie.
func (h *VoteHandler) Voted(c *gin.Context) {
	ids := splitIDs(c.Query("ids"))
	if len(ids) > maxVoteLookup {
		Fail(c, http.StatusBadRequest, "Too many ids")
		return
	}

	voted := map[string]bool{}
	if voter, ok := h.identity.Peek(c, currentUser(c)); ok {
		voted = h.votes.VotedSet(c.Request.Context(), voter, ids)
	}
	counts, err := h.votes.Counts(c.Request.Context(), ids)
	if err != nil {
		RenderError(c, h.log, err)
		return
	}
	OK(c, gin.H{"voted": voted, "counts": counts})
}

func splitIDs(raw string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
