package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"idees/internal/logger"
	"idees/internal/models"
)

const notificationPageSize = 50

type Notifications struct {
	db  *gorm.DB
	log logger.Logger
}

func NewNotifications(db *gorm.DB, log logger.Logger) *Notifications {
	return &Notifications{db: db, log: log}
}

// List returns the newest notifications of user.
func (s *Notifications) List(ctx context.Context, user *models.User, unreadOnly bool) ([]models.Notification, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", user.ID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Limit(notificationPageSize).Find(&out).Error; err != nil {
		return nil, internal("list notifications", err)
	}
	return out, nil
}

func (s *Notifications) UnreadCount(ctx context.Context, user *models.User) (int64, error) {
	if user == nil {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).Count(&n).Error
	if err != nil {
		return 0, internal("count notifications", err)
	}
	return n, nil
}

func (s *Notifications) MarkRead(ctx context.Context, user *models.User, id string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, user.ID).
		Update("is_read", true)
	if res.Error != nil {
		return internal("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *Notifications) MarkAllRead(ctx context.Context, user *models.User) (int64, error) {
	if err := requireUser(user); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, internal("mark notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Notifications) Delete(ctx context.Context, user *models.User, id string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, user.ID).Delete(&models.Notification{})
	if res.Error != nil {
		return internal("delete notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// notifyDone tells the author and every other follower that a suggestion
// was completed.
func notifyDone(tx *gorm.DB, sug *models.Suggestion) error {
	id := sug.ID
	rows := []models.Notification{{
		UserID:       sug.UserID,
		SuggestionID: &id,
		Type:         models.NotificationSuggestionDone,
		Message:      fmt.Sprintf("Your suggestion %q has been completed!", sug.Title),
	}}

	fans, err := followers(tx, sug.ID)
	if err != nil {
		return err
	}
	for _, u := range fans {
		if u.ID == sug.UserID {
			continue
		}
		rows = append(rows, models.Notification{
			UserID:       u.ID,
			SuggestionID: &id,
			Type:         models.NotificationFollowedDone,
			Message:      fmt.Sprintf("%q, which you follow, has been completed!", sug.Title),
		})
	}
	return tx.Create(&rows).Error
}

func notifyReopened(tx *gorm.DB, sug *models.Suggestion) error {
	id := sug.ID
	return tx.Create(&models.Notification{
		UserID:       sug.UserID,
		SuggestionID: &id,
		Type:         models.NotificationSuggestionReopened,
		Message:      fmt.Sprintf("Your suggestion %q has been reopened.", sug.Title),
	}).Error
}
