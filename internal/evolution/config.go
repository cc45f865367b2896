package evolution

import "fmt"

const (
	DefaultInterval   uint64 = 100
	DefaultMaxGenesis int    = 10
)

// Config holds the engine's fixed parameters.
type Config struct {
	// Interval is the number of ticks between evolution cycles.
	Interval uint64 `yaml:"interval" json:"interval"`
	// MaxGenesis caps how many artifacts SeedGenesis may create.
	MaxGenesis int `yaml:"max_genesis" json:"max_genesis"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Interval:   DefaultInterval,
		MaxGenesis: DefaultMaxGenesis,
	}
}

// Validate checks the configuration. Two genesis artifacts are the minimum
// that lets the first evolution find a breeding pair.
func (c Config) Validate() error {
	if c.Interval < 1 {
		return fmt.Errorf("evolution interval must be >= 1")
	}
	if c.MaxGenesis < 2 {
		return fmt.Errorf("max_genesis must be >= 2, got %d", c.MaxGenesis)
	}
	return nil
}
