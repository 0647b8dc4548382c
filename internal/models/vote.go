package models

import (
	"time"

	"gorm.io/gorm"
)

// Vote is one voter's support for one suggestion. VoterID is the user id for
// signed-in voters and the visitor token otherwise; the unique index on
// (voter_id, suggestion_id) is what keeps racing toggles from double counting.
type Vote struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       *string    `gorm:"size:36;index" json:"user_id"`
	SuggestionID string     `gorm:"size:36;not null;index;uniqueIndex:idx_votes_voter_suggestion,priority:2" json:"suggestion_id"`
	Suggestion   Suggestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	VoterID      string     `gorm:"size:64;not null;uniqueIndex:idx_votes_voter_suggestion,priority:1" json:"voter_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	v.ID = newID(v.ID)
	return nil
}
