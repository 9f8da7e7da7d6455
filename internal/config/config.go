package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverBBolt    = "bbolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Store            string        `toml:"store"`
	DataDir          string        `toml:"data_dir"`
	SQLitePath       string        `toml:"sqlite_path"`
	DatabaseURL      string        `toml:"database_url"`
	NatsURL          string        `toml:"nats_url"`
	PageSize         int           `toml:"page_size"`
	AutoSaveInterval time.Duration `toml:"auto_save_interval"`
	LogLevel         string        `toml:"log_level"`
}

// Default returns the configuration used when no file or environment overrides are given.
func Default() Config {
	return Config{
		Store:            DriverBBolt,
		DataDir:          "data",
		SQLitePath:       "data/blogflow.sqlite",
		PageSize:         9,
		AutoSaveInterval: 30 * time.Second,
		LogLevel:         "info",
	}
}

// Load reads path over the defaults, then applies BLOGFLOW_* environment overrides. A missing file is not an
// error when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.Store = getEnv("BLOGFLOW_STORE", cfg.Store)
	cfg.DataDir = getEnv("BLOGFLOW_DATA_DIR", cfg.DataDir)
	cfg.SQLitePath = getEnv("BLOGFLOW_SQLITE_PATH", cfg.SQLitePath)
	cfg.DatabaseURL = getEnv("BLOGFLOW_DATABASE_URL", cfg.DatabaseURL)
	cfg.NatsURL = getEnv("BLOGFLOW_NATS_URL", cfg.NatsURL)
	cfg.LogLevel = getEnv("BLOGFLOW_LOG_LEVEL", cfg.LogLevel)

	if v := getEnv("BLOGFLOW_PAGE_SIZE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid BLOGFLOW_PAGE_SIZE %q: %w", v, err)
		}
		cfg.PageSize = n
	}

	if v := getEnv("BLOGFLOW_AUTO_SAVE_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid BLOGFLOW_AUTO_SAVE_INTERVAL %q: %w", v, err)
		}
		cfg.AutoSaveInterval = d
	}

	return cfg, cfg.Validate()
}

// Validate checks the driver and its required settings.
func (c Config) Validate() error {
	var errs []error

	switch c.Store {
	case DriverMemory, DriverBBolt, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}

	if c.AutoSaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("auto_save_interval must be positive, got %s", c.AutoSaveInterval))
	}

	return errors.Join(errs...)
}

// Level maps LogLevel to a slog level. Unknown names mean info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
