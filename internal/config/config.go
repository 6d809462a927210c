package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends selectable via TEXTLENS_STORE.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the textlens server.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Pool   PoolConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type StoreConfig struct {
	Backend         string
	URL             string
	SQLitePath      string
	MigrationsDir   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// AdminSecret grants admin classification without a stored token.
	// Empty disables the bypass; admin routes then require a stored token
	// with is_admin set.
	AdminSecret string
}

type PoolConfig struct {
	Workers    int
	JobTimeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("TEXTLENS_PORT", 8080),
			Env:             envString("TEXTLENS_ENV", "development"),
			RateLimitPerMin: envInt("TEXTLENS_RATE_LIMIT", 60),
		},
		Store: StoreConfig{
			Backend:         envString("TEXTLENS_STORE", BackendPostgres),
			URL:             os.Getenv("DATABASE_URL"),
			SQLitePath:      envString("TEXTLENS_SQLITE_PATH", "tokens.db"),
			MigrationsDir:   envString("TEXTLENS_MIGRATIONS_DIR", "migrations"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			AdminSecret: os.Getenv("TEXTLENS_ADMIN_TOKEN"),
		},
		Pool: PoolConfig{
			Workers:    envInt("TEXTLENS_WORKERS", 5),
			JobTimeout: envDurationSecs("TEXTLENS_JOB_TIMEOUT_SECS", 180*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Store.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when TEXTLENS_STORE is postgres")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("TEXTLENS_SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("TEXTLENS_STORE must be one of postgres, sqlite; got %q", c.Store.Backend)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Pool.Workers < 1 {
		return fmt.Errorf("TEXTLENS_WORKERS must be at least 1, got %d", c.Pool.Workers)
	}
	if c.Pool.JobTimeout <= 0 {
		return fmt.Errorf("TEXTLENS_JOB_TIMEOUT_SECS must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
