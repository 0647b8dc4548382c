package db

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"idees/internal/config"
	"idees/internal/logger"
	"idees/internal/models"
)

// Open connects to the configured database and migrates the schema.
func Open(cfg *config.Config, log logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.DatabaseURL))
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		// one writer at a time, sqlite returns SQLITE_BUSY otherwise
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	log.Info("database connection established", logger.String("driver", cfg.DBDriver))

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	log.Info("database migration completed")
	return conn, nil
}

// Migrate creates or updates every table. The unique index on
// votes(voter_id, suggestion_id) is created here with the rest of the schema.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Suggestion{},
		&models.SuggestionLink{},
		&models.Vote{},
		&models.Comment{},
		&models.SuggestionFollow{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SQLiteDSN turns on foreign key enforcement, which sqlite leaves off by
// default, so deleting a suggestion cascades to its votes.
func SQLiteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file::memory:"
	}
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

type seedFile struct {
	Tags []models.Tag `yaml:"tags"`
}

// SeedTags inserts the tags listed in a YAML file, skipping slugs that
// already exist. Returns how many rows were created.
func SeedTags(conn *gorm.DB, path string, log logger.Logger) (int, error) {
	if path == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	created := 0
	for _, tag := range seed.Tags {
		if tag.Name == "" {
			continue
		}
		if tag.Slug == "" {
			tag.Slug = Slugify(tag.Name)
		}

		var count int64
		if err := conn.Model(&models.Tag{}).Where("slug = ?", tag.Slug).Count(&count).Error; err != nil {
			return created, err
		}
		if count > 0 {
			continue
		}
		if err := conn.Create(&tag).Error; err != nil {
			log.Error("failed to seed tag", logger.String("slug", tag.Slug), logger.Err(err))
			continue
		}
		created++
	}
	if created > 0 {
		log.Info("tags seeded", logger.Int("created", created))
	}
	return created, nil
}

// Slugify lowercases name and collapses every run of characters outside
// [a-z0-9] into a single dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
