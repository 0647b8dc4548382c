package models

import (
	"time"

	"gorm.io/gorm"
)

// SuggestionFollow subscribes a user to status changes of a suggestion.
type SuggestionFollow struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"size:36;not null;uniqueIndex:idx_follow_user_suggestion" json:"user_id"`
	User         User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	SuggestionID string     `gorm:"size:36;not null;index;uniqueIndex:idx_follow_user_suggestion" json:"suggestion_id"`
	Suggestion   Suggestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (f *SuggestionFollow) BeforeCreate(tx *gorm.DB) error {
	f.ID = newID(f.ID)
	return nil
}
