package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"idees/internal/logger"
	"idees/internal/metrics"
	"idees/internal/models"
)

const (
	MsgVoteFailed         = "Failed to update vote"
	MsgSuggestionNotFound = "suggestion not found"
	MsgVoteRateLimited    = "Too many votes. Try again in a minute."
)

// VoteResult is returned to the caller as is.
type VoteResult struct {
	Success  bool   `json:"success"`
	HasVoted bool   `json:"hasVoted"`
	Error    string `json:"error,omitempty"`
}

// RateLimitedVote is the result of a toggle rejected before it ran.
func RateLimitedVote() VoteResult {
	return VoteResult{Success: false, HasVoted: false, Error: MsgVoteRateLimited}
}

type Votes struct {
	db      *gorm.DB
	log     logger.Logger
	pages   Invalidator
	metrics VoteRecorder
}

func NewVotes(db *gorm.DB, log logger.Logger, pages Invalidator, rec VoteRecorder) *Votes {
	if pages == nil {
		pages = nopInvalidator{}
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Votes{db: db, log: log, pages: pages, metrics: rec}
}

// Toggle flips the vote of voterID on a suggestion. userID is set for
// signed-in voters and nil for visitors.
//
// The unique index on (voter_id, suggestion_id) is the only guard against
// racing toggles: an insert that hits it means the pair is already voted,
// and a delete that removes nothing means it is already not voted.
func (v *Votes) Toggle(ctx context.Context, suggestionID, voterID string, userID *string) VoteResult {
	if suggestionID == "" {
		return VoteResult{Error: MsgSuggestionNotFound}
	}
	if voterID == "" {
		v.log.Error("toggle vote without voter", logger.String("suggestion_id", suggestionID))
		return v.failed()
	}

	q := v.db.WithContext(ctx)

	var existing models.Vote
	err := q.Where("voter_id = ? AND suggestion_id = ?", voterID, suggestionID).Take(&existing).Error
	switch {
	case err == nil:
		if err := q.Delete(&models.Vote{}, "id = ?", existing.ID).Error; err != nil {
			v.log.Error("toggle vote: delete", logger.String("suggestion_id", suggestionID), logger.Err(err))
			return v.failed()
		}
		v.done(suggestionID, metrics.VoteRemoved)
		return VoteResult{Success: true, HasVoted: false}

	case errors.Is(err, gorm.ErrRecordNotFound):
		vote := models.Vote{UserID: userID, SuggestionID: suggestionID, VoterID: voterID}
		if err := q.Create(&vote).Error; err != nil {
			switch {
			case isDuplicate(err):
				// lost the race to an identical insert
				v.done(suggestionID, metrics.VoteAdded)
				return VoteResult{Success: true, HasVoted: true}
			case isForeignKey(err):
				return VoteResult{Error: MsgSuggestionNotFound}
			}
			v.log.Error("toggle vote: insert", logger.String("suggestion_id", suggestionID), logger.Err(err))
			return v.failed()
		}
		v.done(suggestionID, metrics.VoteAdded)
		return VoteResult{Success: true, HasVoted: true}

	default:
		v.log.Error("toggle vote: lookup", logger.String("suggestion_id", suggestionID), logger.Err(err))
		return v.failed()
	}
}

func (v *Votes) done(suggestionID, result string) {
	v.metrics.VoteToggled(result)
	v.pages.Invalidate(suggestionPaths(suggestionID)...)
}

func (v *Votes) failed() VoteResult {
	v.metrics.VoteToggled(metrics.VoteFailed)
	return VoteResult{Error: MsgVoteFailed}
}

// VotedSet reports which of ids voterID has voted for. Failures are logged
// and yield an empty set.
func (v *Votes) VotedSet(ctx context.Context, voterID string, ids []string) map[string]bool {
	set := make(map[string]bool)
	if voterID == "" || len(ids) == 0 {
		return set
	}
	var voted []string
	err := v.db.WithContext(ctx).Model(&models.Vote{}).
		Where("voter_id = ? AND suggestion_id IN ?", voterID, ids).
		Pluck("suggestion_id", &voted).Error
	if err != nil {
		v.log.Error("voted set", logger.Err(err))
		return set
	}
	for _, id := range voted {
		set[id] = true
	}
	return set
}

func (v *Votes) Count(ctx context.Context, suggestionID string) (int64, error) {
	var n int64
	err := v.db.WithContext(ctx).Model(&models.Vote{}).Where("suggestion_id = ?", suggestionID).Count(&n).Error
	if err != nil {
		return 0, internal("count votes", err)
	}
	return n, nil
}

func (v *Votes) Counts(ctx context.Context, ids []string) (map[string]int64, error) {
	return countVotes(v.db.WithContext(ctx), ids)
}

func countVotes(q *gorm.DB, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		SuggestionID string
		N            int64
	}
	err := q.Model(&models.Vote{}).
		Select("suggestion_id, COUNT(*) AS n").
		Where("suggestion_id IN ?", ids).
		Group("suggestion_id").
		Scan(&rows).Error
	if err != nil {
		return nil, internal("count votes", err)
	}
	for _, r := range rows {
		out[r.SuggestionID] = r.N
	}
	return out, nil
}
