package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// StoreLocation selects where the database lives.
type StoreLocation string

const (
	LocationMemory      StoreLocation = "memory"
	LocationDevelopment StoreLocation = "development"
	LocationProduction  StoreLocation = "production"
)

// MemoryPath is the SQLite path used for LocationMemory.
const MemoryPath = ":memory:"

// ParseStoreLocation maps a selector string onto a StoreLocation.
func ParseStoreLocation(s string) (StoreLocation, error) {
	switch l := StoreLocation(strings.ToLower(strings.TrimSpace(s))); l {
	case LocationMemory, LocationDevelopment, LocationProduction:
		return l, nil
	}
	return "", fmt.Errorf("unknown store location %q (want memory, development or production)", s)
}

// UnmarshalText lets env and yaml decode the selector directly.
func (l *StoreLocation) UnmarshalText(text []byte) error {
	parsed, err := ParseStoreLocation(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Config holds the application configuration.
type Config struct {
	Store     StoreLocation `env:"TAPLINE_STORE" yaml:"store"`
	DevDBPath string        `env:"TAPLINE_DEV_DB_PATH" yaml:"dev_db_path"`

	// DataDir replaces the per-user application data directory.
	DataDir string `env:"TAPLINE_DATA_DIR" yaml:"data_dir"`

	LogLevel  string `env:"TAPLINE_LOG_LEVEL" yaml:"log_level"`
	LogFormat string `env:"TAPLINE_LOG_FORMAT" yaml:"log_format"`

	// CheckpointSchedule is a cron spec for WAL checkpoints. Empty disables them.
	CheckpointSchedule string `env:"TAPLINE_CHECKPOINT_SCHEDULE" yaml:"checkpoint_schedule"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store:              LocationProduction,
		DevDBPath:          "./tapline.db",
		LogLevel:           "info",
		LogFormat:          "text",
		CheckpointSchedule: "@every 15m",
	}
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// File is an optional YAML config file. Empty skips it.
	File string

	// DotEnv is the .env path; a missing file is not an error.
	// Defaults to ".env".
	DotEnv string

	// Environ replaces the process environment (tests). Nil uses os.Environ.
	Environ map[string]string
}

// Load layers defaults, the YAML file, .env and the environment, then validates.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", opts.File, err)
		}
	}

	environ, err := environment(opts)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// environment merges .env values under the real (or injected) environment.
func environment(opts LoadOptions) (map[string]string, error) {
	dotenv := opts.DotEnv
	if dotenv == "" {
		dotenv = ".env"
	}

	merged, err := godotenv.Read(dotenv)
	if errors.Is(err, os.ErrNotExist) {
		merged = map[string]string{}
	} else if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dotenv, err)
	}

	environ := opts.Environ
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}
	for k, v := range environ {
		merged[k] = v
	}
	return merged, nil
}

// Validate rejects unknown selectors, levels, formats and schedules.
func (c *Config) Validate() error {
	if _, err := ParseStoreLocation(string(c.Store)); err != nil {
		return err
	}
	if c.Store == LocationDevelopment && c.DevDBPath == "" {
		return errors.New("TAPLINE_DEV_DB_PATH must not be empty for the development store")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.CheckpointSchedule != "" {
		if _, err := cron.ParseStandard(c.CheckpointSchedule); err != nil {
			return fmt.Errorf("invalid checkpoint schedule %q: %w", c.CheckpointSchedule, err)
		}
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unknown log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// DatabasePath resolves the SQLite path for the configured location.
func (c *Config) DatabasePath() (string, error) {
	switch c.Store {
	case LocationMemory:
		return MemoryPath, nil
	case LocationDevelopment:
		return c.DevDBPath, nil
	case LocationProduction:
		dir := c.DataDir
		if dir == "" {
			var err error
			if dir, err = UserDataDir(); err != nil {
				return "", err
			}
		}
		return filepath.Join(dir, AppDirName, DatabaseFileName), nil
	}
	return "", fmt.Errorf("unknown store location %q", c.Store)
}
