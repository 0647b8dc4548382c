package services

import (
	"context"

	"gorm.io/gorm"

	"idees/internal/cache"
	"idees/internal/db"
	"idees/internal/logger"
	"idees/internal/models"
	"idees/internal/utils"
)

type Tags struct {
	db    *gorm.DB
	log   logger.Logger
	pages Invalidator
}

func NewTags(conn *gorm.DB, log logger.Logger, pages Invalidator) *Tags {
	if pages == nil {
		pages = nopInvalidator{}
	}
	return &Tags{db: conn, log: log, pages: pages}
}

func (s *Tags) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, internal("list tags", err)
	}
	return tags, nil
}

func (s *Tags) Create(ctx context.Context, actor *models.User, name, icon string) (*models.Tag, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = utils.PlainText(name)
	slug := db.Slugify(name)

	var ve ValidationError
	switch {
	case name == "":
		ve.Add("name", "Name is required")
	case len(name) > 50:
		ve.Add("name", "Name must be at most 50 characters")
	case slug == "":
		ve.Add("name", "Name must contain letters or digits")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	tag := models.Tag{Name: name, Slug: slug, Icon: strPtr(utils.PlainText(icon))}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		if isDuplicate(err) {
			ve.Add("name", "A tag with this name already exists")
			return nil, ve.Err()
		}
		return nil, internal("create tag", err)
	}
	s.pages.Invalidate(cache.ListPath)
	return &tag, nil
}

// UpdateIcon sets the icon; an empty icon clears it.
func (s *Tags) UpdateIcon(ctx context.Context, actor *models.User, id, icon string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Tag{}).Where("id = ?", id).
		Update("icon", strPtr(utils.PlainText(icon)))
	if res.Error != nil {
		return internal("update tag icon", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTagNotFound
	}
	s.pages.Purge()
	return nil
}

func (s *Tags) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM suggestion_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Tag{}, "id = ?", id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return internal("delete tag", err)
	}
	if deleted == 0 {
		return ErrTagNotFound
	}
	s.pages.Purge()
	return nil
}
