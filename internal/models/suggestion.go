package models

import (
	"time"

	"gorm.io/gorm"
)

type SuggestionStatus string

const (
	StatusOpen SuggestionStatus = "open"
	StatusDone SuggestionStatus = "done"
)

type Suggestion struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	UserID      string           `gorm:"size:36;not null;index" json:"user_id"`
	User        User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Icon        *string          `gorm:"size:32" json:"icon"`
	Status      SuggestionStatus `gorm:"size:10;not null;default:open;index" json:"status"`
	DoneAt      *time.Time       `json:"done_at"`
	DoneBy      *string          `gorm:"size:36" json:"done_by"`
	DoneComment *string          `gorm:"type:text" json:"done_comment"`
	Tags        []Tag            `gorm:"many2many:suggestion_tags;constraint:OnDelete:CASCADE;" json:"tags"`
	Links       []SuggestionLink `gorm:"constraint:OnDelete:CASCADE;" json:"links"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (s *Suggestion) BeforeCreate(tx *gorm.DB) error {
	s.ID = newID(s.ID)
	return nil
}

// SuggestionLink points at the content that completed a suggestion.
type SuggestionLink struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	SuggestionID string    `gorm:"size:36;not null;index" json:"suggestion_id"`
	Platform     string    `gorm:"size:20;not null" json:"platform"` // youtube, twitter, blog, other
	URL          string    `gorm:"not null" json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	Title        *string   `json:"title"`
	CreatedBy    string    `gorm:"size:36" json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func (l *SuggestionLink) BeforeCreate(tx *gorm.DB) error {
	l.ID = newID(l.ID)
	return nil
}
