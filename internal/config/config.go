// Package config loads server settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"bridge-standings/internal/logging"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Sync       SyncConfig       `yaml:"sync"`
	Tournament TournamentConfig `yaml:"tournament"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite3 pgx"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type SyncConfig struct {
	// PollInterval is how often the snapshot is re-fetched. Zero disables
	// polling.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=0"`
}

type TournamentConfig struct {
	EnforceSchedule bool `yaml:"enforce_schedule"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=json console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// Default returns the settings used when nothing else is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			StaticDir: "web/static",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "./standings.db",
		},
		Sync: SyncConfig{
			PollInterval: 10 * time.Second,
		},
		Tournament: TournamentConfig{
			EnforceSchedule: true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoggingOptions converts the log section for the logging package.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("STANDINGS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("STANDINGS_STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
	if v := os.Getenv("STANDINGS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("STANDINGS_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("STANDINGS_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STANDINGS_POLL_INTERVAL: %w", err)
		}
		c.Sync.PollInterval = d
	}
	if v := os.Getenv("STANDINGS_ENFORCE_SCHEDULE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STANDINGS_ENFORCE_SCHEDULE: %w", err)
		}
		c.Tournament.EnforceSchedule = b
	}
	if v := os.Getenv("STANDINGS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STANDINGS_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("STANDINGS_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	return nil
}
