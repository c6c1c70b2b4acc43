// Package config loads the taskq command configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the whole configuration file.
type Config struct {
	Pool PoolConfig `toml:"pool"`
	Log  LogConfig  `toml:"log"`
	Run  RunConfig  `toml:"run"`
}

// PoolConfig maps onto the pool options.
type PoolConfig struct {
	MinIdle     int     `toml:"min_idle"`
	LowWater    int     `toml:"low_water"`
	Replenish   int     `toml:"replenish"`
	MaxWorkers  int     `toml:"max_workers"`
	NamePrefix  string  `toml:"name_prefix"`
	RateLimit   float64 `toml:"rate_limit"`
	RateBurst   int     `toml:"rate_burst"`
	CPUAffinity bool    `toml:"cpu_affinity"`
}

// LogConfig selects the log level, format and destination.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
	Output string `toml:"output"` // stdout, stderr or a file path
}

// RunConfig describes the demo workload of "taskq run".
type RunConfig struct {
	Tasks           int           `toml:"tasks"`
	Order           string        `toml:"order"`
	MaxSleep        time.Duration `toml:"max_sleep"`
	Timeout         time.Duration `toml:"timeout"`
	CancelAfter     time.Duration `toml:"cancel_after"`
	PollingInterval time.Duration `toml:"polling_interval"`
	FailEvery       int           `toml:"fail_every"`
	Metrics         bool          `toml:"metrics"`
}

// Load reads path, applies defaults for missing values and validates the
// result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Pool.MinIdle < 1 {
		errs = append(errs, fmt.Errorf("pool.min_idle must be at least 1, got %d", c.Pool.MinIdle))
	}
	if c.Pool.LowWater < 0 || c.Pool.LowWater > c.Pool.MinIdle {
		errs = append(errs, fmt.Errorf("pool.low_water must be between 0 and pool.min_idle, got %d", c.Pool.LowWater))
	}
	if c.Pool.MaxWorkers != 0 && c.Pool.MaxWorkers < c.Pool.MinIdle {
		errs = append(errs, fmt.Errorf("pool.max_workers must be 0 or at least pool.min_idle, got %d", c.Pool.MaxWorkers))
	}
	if c.Pool.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("pool.rate_limit must not be negative"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if c.Run.Tasks < 0 {
		errs = append(errs, fmt.Errorf("run.tasks must not be negative, got %d", c.Run.Tasks))
	}
	switch c.Run.Order {
	case "ordered", "reverse", "unordered":
	default:
		errs = append(errs, fmt.Errorf("run.order must be ordered, reverse or unordered, got %q", c.Run.Order))
	}
	if c.Run.Timeout < 0 || c.Run.CancelAfter < 0 || c.Run.MaxSleep < 0 {
		errs = append(errs, errors.New("run durations must not be negative"))
	}
	if c.Run.FailEvery < 0 {
		errs = append(errs, fmt.Errorf("run.fail_every must not be negative, got %d", c.Run.FailEvery))
	}

	return errors.Join(errs...)
}
