// Package tint builds the console handler used by the default logging sink.
package tint

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/lmittmann/tint"
	"github.com/samber/oops"
)

// Config represents configuration for the console log handler.
type Config struct {
	// Writer receives the formatted output (code-only, cannot be configured
	// via files).
	Writer io.Writer `koanf:"-" code_only:"WithWriter"`

	// Level is the minimum level emitted by the handler.
	Level string `koanf:"level"`

	// TimeFormat controls timestamp rendering.
	TimeFormat string `koanf:"time_format"`
}

// NewDefaultConfig returns default configuration.
func NewDefaultConfig() Config {
	return Config{
		Writer:     os.Stderr,
		Level:      "info",
		TimeFormat: time.RFC3339,
	}
}

// NewConfig returns configuration with provided options based on defaults.
func NewConfig(options ...Option) Config {
	cfg := NewDefaultConfig()
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

// LoadFromKoanf loads configuration from koanf instance at the given path.
func (c *Config) LoadFromKoanf(k *koanf.Koanf, path string) error {
	return oops.Wrapf(k.Unmarshal(path, c), "failed to load config from koanf at path %s", path)
}

// ParseLevel parses the configured level string into slog.Level.
func (c *Config) ParseLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TintOptions returns tint.Options with config values applied.
func (c *Config) TintOptions() *tint.Options {
	return &tint.Options{
		AddSource:  true,
		Level:      c.ParseLevel(),
		TimeFormat: c.TimeFormat,
	}
}

// NewHandler creates a new tint handler with config values applied.
func (c *Config) NewHandler() slog.Handler {
	return tint.NewHandler(c.Writer, c.TintOptions())
}

// Option configures the handler.
type Option func(m *Config)

// WithWriter sets the output writer (code-only, cannot be configured via files).
func WithWriter(writer io.Writer) Option {
	return func(m *Config) { m.Writer = writer }
}

// WithLevel sets the minimum emitted level.
func WithLevel(level string) Option {
	return func(m *Config) { m.Level = level }
}

// WithTimeFormat sets the timestamp format.
func WithTimeFormat(format string) Option {
	return func(m *Config) { m.TimeFormat = format }
}
