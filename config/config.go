// Package config reads the storefront settings from the environment,
// optionally seeded from a dotenv file. It is consumed once at start-up.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skryldev/storefront/db"
)

// Backend selects the ProductRepository implementation.
type Backend string

const (
	BackendSQL  Backend = "sql"
	BackendGorm Backend = "gorm"
)

// Config is the full service configuration.
type Config struct {
	DatabaseURL     string
	DatabaseDriver  string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	SlowQuery       time.Duration

	HTTPAddr    string
	Backend     Backend
	AutoMigrate bool
	LogLevel    slog.Level

	// OTLPEndpoint enables telemetry export when non-empty.
	OTLPEndpoint string
}

// Load reads an optional dotenv file (ENV_FILE, default ".env"), then the
// process environment. Variables already set in the environment win over
// the file.
func Load() (*Config, error) {
	envFile := getenv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from lookup, which is os.Getenv in production.
func FromEnv(lookup func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		DatabaseDriver: get("DATABASE_DRIVER", "postgres"),
		HTTPAddr:       get("HTTP_ADDR", ":8080"),
		Backend:        Backend(strings.ToLower(get("REPO_BACKEND", string(BackendSQL)))),
		OTLPEndpoint:   get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	var err error
	if cfg.DatabaseURL, err = databaseURL(cfg.DatabaseDriver, get); err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns, err = intVar("DB_MAX_OPEN_CONNS", get("DB_MAX_OPEN_CONNS", "25")); err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns, err = intVar("DB_MAX_IDLE_CONNS", get("DB_MAX_IDLE_CONNS", "10")); err != nil {
		return nil, err
	}
	if cfg.ConnMaxLifetime, err = durationVar("DB_CONN_MAX_LIFETIME", get("DB_CONN_MAX_LIFETIME", "5m")); err != nil {
		return nil, err
	}
	if cfg.QueryTimeout, err = durationVar("DB_QUERY_TIMEOUT", get("DB_QUERY_TIMEOUT", "10s")); err != nil {
		return nil, err
	}
	if cfg.SlowQuery, err = durationVar("DB_SLOW_QUERY", get("DB_SLOW_QUERY", "200ms")); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate, err = strconv.ParseBool(get("AUTO_MIGRATE", "false")); err != nil {
		return nil, fmt.Errorf("config: AUTO_MIGRATE: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DB returns the connection pool settings for the db package.
func (c *Config) DB(hooks ...db.Hook) db.Config {
	return db.Config{
		DSN:             c.DatabaseURL,
		DriverName:      c.DatabaseDriver,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		DefaultTimeout:  c.QueryTimeout,
		Hooks:           hooks,
	}
}

func (c *Config) validate() error {
	if _, err := db.LookupDriver(c.DatabaseDriver); err != nil {
		return fmt.Errorf("config: DATABASE_DRIVER: %w", err)
	}
	switch c.Backend {
	case BackendSQL, BackendGorm:
	default:
		return fmt.Errorf("config: REPO_BACKEND: unknown backend %q (want sql or gorm)", c.Backend)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("config: pool sizes must not be negative")
	}
	return nil
}

// databaseURL prefers DATABASE_URL. Without it, a DSN is assembled from
// DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME and DB_SSLMODE through the
// driver's own DSN builder.
func databaseURL(driverName string, get func(string, string) string) (string, error) {
	if dsn := get("DATABASE_URL", ""); dsn != "" {
		return dsn, nil
	}
	if get("DB_NAME", "") == "" {
		return "", fmt.Errorf("config: DATABASE_URL (or DB_NAME) is required")
	}
	drv, err := db.LookupDriver(driverName)
	if err != nil {
		return "", fmt.Errorf("config: DATABASE_DRIVER: %w", err)
	}
	port, err := intVar("DB_PORT", get("DB_PORT", "0"))
	if err != nil {
		return "", err
	}
	dsn, err := drv.DSN(db.DriverOptions{
		Host:     get("DB_HOST", "localhost"),
		Port:     port,
		User:     get("DB_USER", ""),
		Password: get("DB_PASSWORD", ""),
		Database: get("DB_NAME", ""),
		SSLMode:  get("DB_SSLMODE", ""),
	})
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return dsn, nil
}

func intVar(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %q is not an integer", name, v)
	}
	return n, nil
}

func durationVar(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return d, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
