package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationSuggestionDone     NotificationType = "suggestion_done"
	NotificationFollowedDone       NotificationType = "followed_done"
	NotificationSuggestionReopened NotificationType = "suggestion_reopened"
)

type Notification struct {
	ID           string           `gorm:"primaryKey;size:36" json:"id"`
	UserID       string           `gorm:"size:36;not null;index" json:"user_id"` // receiver
	User         User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	SuggestionID *string          `gorm:"size:36;index" json:"suggestion_id"`
	Type         NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Message      string           `gorm:"type:text" json:"message"`
	IsRead       bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	n.ID = newID(n.ID)
	return nil
}
