package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devSessionSecret = "idees-dev-session-secret-change-me"
)

// Config is read from IDEES_* environment variables. Every key also falls
// back to its unprefixed name, so DATABASE_URL works as well.
type Config struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Env             string        `envconfig:"ENV" default:"development"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	PrettyLog bool   `envconfig:"PRETTY_LOG" default:"true"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"` // postgres | sqlite
	DatabaseURL string `envconfig:"DATABASE_URL" default:"host=localhost user=postgres password=postgres dbname=idees port=5432 sslmode=disable"`
	SeedFile    string `envconfig:"SEED_FILE"` // optional YAML list of tags

	SessionSecret string `envconfig:"SESSION_SECRET"`
	SiteURL       string `envconfig:"SITE_URL" default:"http://localhost:8080"`
	BlogDomain    string `envconfig:"BLOG_DOMAIN"`
	TrustProxy    bool   `envconfig:"TRUST_PROXY" default:"false"`
	VisitorCookie string `envconfig:"VISITOR_COOKIE" default:"visitor_id"`

	CacheSize int           `envconfig:"CACHE_SIZE" default:"500"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"1m"`

	// Shared rate-limit store. Empty address keeps counters in process.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Per-action overrides, e.g. "vote:30/1m,comment:10/1m".
	RateLimits map[string]string `envconfig:"RATE_LIMITS"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("idees", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("IDEES_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("IDEES_DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	if c.SessionSecret == "" {
		if c.IsProduction() {
			return errors.New("IDEES_SESSION_SECRET is required in production")
		}
		c.SessionSecret = devSessionSecret
	}
	if c.IsProduction() && len(c.SessionSecret) < 32 {
		return errors.New("IDEES_SESSION_SECRET must be at least 32 bytes in production")
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("IDEES_CACHE_SIZE must be > 0, got %d", c.CacheSize)
	}
	if c.VisitorCookie == "" {
		return errors.New("IDEES_VISITOR_COOKIE must not be empty")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// Secure reports whether cookies must carry the Secure attribute.
func (c *Config) Secure() bool { return c.IsProduction() }
