package services

import (
	"context"

	"gorm.io/gorm"

	"idees/internal/logger"
	"idees/internal/models"
)

type FollowStatus struct {
	IsFollowing   bool  `json:"isFollowing"`
	FollowerCount int64 `json:"followerCount"`
}

type Follows struct {
	db  *gorm.DB
	log logger.Logger
}

func NewFollows(db *gorm.DB, log logger.Logger) *Follows {
	return &Follows{db: db, log: log}
}

// Follow is idempotent.
func (s *Follows) Follow(ctx context.Context, user *models.User, suggestionID string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	f := models.SuggestionFollow{UserID: user.ID, SuggestionID: suggestionID}
	if err := s.db.WithContext(ctx).Create(&f).Error; err != nil {
		switch {
		case isDuplicate(err):
			return nil
		case isForeignKey(err):
			return ErrSuggestionNotFound
		}
		return internal("follow suggestion", err)
	}
	return nil
}

func (s *Follows) Unfollow(ctx context.Context, user *models.User, suggestionID string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND suggestion_id = ?", user.ID, suggestionID).
		Delete(&models.SuggestionFollow{}).Error
	if err != nil {
		return internal("unfollow suggestion", err)
	}
	return nil
}

// Status works for anonymous viewers too; they never follow.
func (s *Follows) Status(ctx context.Context, user *models.User, suggestionID string) (FollowStatus, error) {
	var st FollowStatus
	q := s.db.WithContext(ctx).Model(&models.SuggestionFollow{}).Where("suggestion_id = ?", suggestionID)
	if err := q.Session(&gorm.Session{}).Count(&st.FollowerCount).Error; err != nil {
		return st, internal("follow status", err)
	}
	if user == nil || st.FollowerCount == 0 {
		return st, nil
	}
	var mine int64
	if err := q.Where("user_id = ?", user.ID).Count(&mine).Error; err != nil {
		return st, internal("follow status", err)
	}
	st.IsFollowing = mine > 0
	return st, nil
}

// Followers returns the users following a suggestion.
func (s *Follows) Followers(ctx context.Context, suggestionID string) ([]models.User, error) {
	return followers(s.db.WithContext(ctx), suggestionID)
}

func followers(q *gorm.DB, suggestionID string) ([]models.User, error) {
	var users []models.User
	err := q.Where("id IN (?)",
		q.Model(&models.SuggestionFollow{}).Select("user_id").Where("suggestion_id = ?", suggestionID),
	).Find(&users).Error
	if err != nil {
		return nil, internal("list followers", err)
	}
	return users, nil
}
