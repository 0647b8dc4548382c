package models

import (
	"gorm.io/gorm"
)

type Tag struct {
	ID   string  `gorm:"primaryKey;size:36" json:"id" yaml:"-"`
	Name string  `gorm:"size:50;not null" json:"name" yaml:"name"`
	Slug string  `gorm:"size:60;uniqueIndex;not null" json:"slug" yaml:"slug"`
	Icon *string `gorm:"size:32" json:"icon" yaml:"icon"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	t.ID = newID(t.ID)
	return nil
}
