package models

import (
	"time"

	"gorm.io/gorm"
)

type Comment struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"size:36;not null;index" json:"user_id"`
	User         User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	SuggestionID string     `gorm:"size:36;not null;index" json:"suggestion_id"`
	Suggestion   Suggestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	c.ID = newID(c.ID)
	return nil
}
