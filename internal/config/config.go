// Package config loads sooq settings from an optional YAML file and the
// environment.
//
// Precedence, lowest first: defaults, file, SOOQ_* environment variables,
// explicit command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sooq/internal/dialect"
)

// DefaultPath is read when no --config flag is given and the file exists.
const DefaultPath = "sooq.yaml"

// Environment variables consulted by Load.
const (
	EnvSchema   = "SOOQ_SCHEMA"
	EnvDialect  = "SOOQ_DIALECT"
	EnvDSN      = "SOOQ_DSN"
	EnvLogLevel = "SOOQ_LOG_LEVEL"
)

// Config holds the settings shared by every command.
type Config struct {
	SchemaPath string `yaml:"schema"`    // mapping document (.yaml or .cue)
	Dialect    string `yaml:"dialect"`   // dialect name or alias (default "sqlite")
	DSN        string `yaml:"dsn"`       // data source for `run`
	LogLevel   string `yaml:"log_level"` // debug, info, warn, error (default "info")
	Format     string `yaml:"format"`    // text or json output
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Dialect:  "sqlite",
		LogLevel: "info",
		Format:   "text",
	}
}

// Load reads path (or DefaultPath when path is empty and the file exists),
// then applies environment overrides. An explicit path that does not
// exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSchema); v != "" {
		c.SchemaPath = v
	}
	if v := os.Getenv(EnvDialect); v != "" {
		c.Dialect = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		c.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the dialect name and the log level.
func (c *Config) Validate() error {
	if _, err := dialect.Get(c.Dialect); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
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
