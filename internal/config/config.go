package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"morphogen/internal/entropy"
	"morphogen/internal/evolution"
)

// Config holds all morphogen configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Evolution engine parameters
	Evolution evolution.Config `yaml:"evolution"`

	// Tick source and entropy chain
	Entropy EntropyConfig `yaml:"entropy"`

	// SQLite persistence
	Storage StorageConfig `yaml:"storage"`

	// HTTP host
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EntropyConfig configures the clock and the hash chain.
type EntropyConfig struct {
	TickDuration string `yaml:"tick_duration"` // wall time per tick when serving
	Salt         string `yaml:"salt"`          // hex; empty means generate at init
}

// StorageConfig configures the state database.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	JournalEvents bool   `yaml:"journal_events"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Listen          string `yaml:"listen"`
	ReadTimeout     string `yaml:"read_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	PersistInterval string `yaml:"persist_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "morphogen",
		Version: "0.3.0",

		Evolution: evolution.DefaultConfig(),

		Entropy: EntropyConfig{
			TickDuration: "12s",
		},

		Storage: StorageConfig{
			DatabasePath:  "data/morphogen.db",
			JournalEvents: true,
		},

		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     "10s",
			ShutdownTimeout: "5s",
			PersistInterval: "30s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if path := os.Getenv("MORPHOGEN_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if addr := os.Getenv("MORPHOGEN_LISTEN"); addr != "" {
		c.Server.Listen = addr
	}
	if lvl := os.Getenv("MORPHOGEN_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if v := os.Getenv("MORPHOGEN_EVOLUTION_INTERVAL"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MORPHOGEN_EVOLUTION_INTERVAL: %w", err)
		}
		c.Evolution.Interval = n
	}
	return nil
}

// GetTickDuration returns the wall time per tick.
func (c *Config) GetTickDuration() time.Duration {
	return parseDuration(c.Entropy.TickDuration, 12*time.Second)
}

// GetReadTimeout returns the HTTP read header timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 10*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown budget.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 5*time.Second)
}

// GetPersistInterval returns how often serve checkpoints state.
func (c *Config) GetPersistInterval() time.Duration {
	return parseDuration(c.Server.PersistInterval, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Salt parses the configured salt. ok is false when none is set.
func (c *Config) Salt() (salt entropy.Value, ok bool, err error) {
	if c.Entropy.Salt == "" {
		return entropy.Value{}, false, nil
	}
	salt, err = entropy.ParseValue(c.Entropy.Salt)
	if err != nil {
		return entropy.Value{}, false, fmt.Errorf("entropy.salt: %w", err)
	}
	return salt, true, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Evolution.Validate(); err != nil {
		return fmt.Errorf("evolution: %w", err)
	}
	if c.Entropy.TickDuration != "" {
		d, err := time.ParseDuration(c.Entropy.TickDuration)
		if err != nil {
			return fmt.Errorf("entropy.tick_duration: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("entropy.tick_duration must be positive, got %s", d)
		}
	}
	if _, _, err := c.Salt(); err != nil {
		return err
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path not configured (set MORPHOGEN_DB)")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
