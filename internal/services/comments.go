package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"gorm.io/gorm"

	"idees/internal/logger"
	"idees/internal/models"
	"idees/internal/utils"
)

const CommentMax = 2000

type CommentView struct {
	models.Comment
	Author          Author `json:"author"`
	SuggestionTitle string `json:"suggestion_title,omitempty"`
}

type Comments struct {
	db  *gorm.DB
	log logger.Logger
}

func NewComments(db *gorm.DB, log logger.Logger) *Comments {
	return &Comments{db: db, log: log}
}

func validateComment(content string) (string, error) {
	content = utils.PlainText(content)
	var ve ValidationError
	switch {
	case content == "":
		ve.Add("content", "Comment cannot be empty")
	case utf8.RuneCountInString(content) > CommentMax:
		ve.Add("content", fmt.Sprintf("Comment must be at most %d characters", CommentMax))
	}
	return content, ve.Err()
}

// List returns the comments of a suggestion, oldest first.
func (s *Comments) List(ctx context.Context, suggestionID string) ([]CommentView, error) {
	var rows []models.Comment
	err := s.db.WithContext(ctx).Preload("User").
		Where("suggestion_id = ?", suggestionID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, internal("list comments", err)
	}
	out := make([]CommentView, 0, len(rows))
	for _, c := range rows {
		out = append(out, CommentView{Comment: c, Author: authorOf(c.User)})
	}
	return out, nil
}

func (s *Comments) Create(ctx context.Context, user *models.User, suggestionID, content string) (*CommentView, error) {
	if err := requirePoster(user); err != nil {
		return nil, err
	}
	content, err := validateComment(content)
	if err != nil {
		return nil, err
	}

	c := models.Comment{UserID: user.ID, SuggestionID: suggestionID, Content: content}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		if isForeignKey(err) {
			return nil, ErrSuggestionNotFound
		}
		return nil, internal("create comment", err)
	}
	return &CommentView{Comment: c, Author: authorOf(*user)}, nil
}

func (s *Comments) find(q *gorm.DB, id string) (*models.Comment, error) {
	var c models.Comment
	if err := q.Take(&c, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load comment", err, ErrCommentNotFound)
	}
	return &c, nil
}

// Update is limited to the author; admins can only delete.
func (s *Comments) Update(ctx context.Context, user *models.User, id, content string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	content, err := validateComment(content)
	if err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	c, err := s.find(q, id)
	if err != nil {
		return err
	}
	if c.UserID != user.ID {
		return ErrForbidden
	}
	if err := q.Model(c).Update("content", content).Error; err != nil {
		return internal("update comment", err)
	}
	return nil
}

func (s *Comments) Delete(ctx context.Context, user *models.User, id string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	c, err := s.find(q, id)
	if err != nil {
		return err
	}
	if err := canModify(user, c.UserID); err != nil {
		return err
	}
	if err := q.Delete(c).Error; err != nil {
		return internal("delete comment", err)
	}
	return nil
}
