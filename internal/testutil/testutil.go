// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"idees/internal/db"
	"idees/internal/models"
)

var seq atomic.Int64

// NewDB opens a private in-memory sqlite database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(db.SQLiteDSN("file::memory:")), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

type UserOption func(*models.User)

func Admin() UserOption  { return func(u *models.User) { u.IsAdmin = true } }
func Banned() UserOption { return func(u *models.User) { u.IsBanned = true } }

// CreateUser inserts a user with a unique email. The password hash is a
// placeholder; use the auth service when a real login is needed.
func CreateUser(t testing.TB, conn *gorm.DB, opts ...UserOption) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Email:    fmt.Sprintf("user%d@example.com", n),
		Username: fmt.Sprintf("user%d", n),
		Password: "x",
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := conn.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func CreateSuggestion(t testing.TB, conn *gorm.DB, userID, title string) *models.Suggestion {
	t.Helper()
	s := &models.Suggestion{UserID: userID, Title: title, Status: models.StatusOpen}
	if err := conn.Create(s).Error; err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	return s
}

func CreateTag(t testing.TB, conn *gorm.DB, name string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name, Slug: db.Slugify(name)}
	if err := conn.Create(tag).Error; err != nil {
		t.Fatalf("create tag: %v", err)
	}
	return tag
}
