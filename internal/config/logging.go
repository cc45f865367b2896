package config

import (
	"fmt"

	"morphogen/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level,omitempty"`   // debug, info, warn, error
	Format      string `yaml:"format" json:"format,omitempty"` // json, console
	Development bool   `yaml:"development" json:"development,omitempty"`
	File        string `yaml:"file" json:"file,omitempty"` // empty logs to stderr
}

// Options converts the config into logging.Options.
func (c LoggingConfig) Options() logging.Options {
	opts := logging.Options{
		Level:       c.Level,
		Format:      c.Format,
		Development: c.Development,
	}
	if c.File != "" {
		opts.OutputPaths = []string{c.File}
	}
	return opts
}

// Validate checks level and format.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch c.Format {
	case "", "json", "console", "text":
	default:
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}
