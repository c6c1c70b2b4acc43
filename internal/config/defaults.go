package config

import (
	"runtime"
	"time"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills every zero value. Pool sizes left unset derive from
// min_idle.
func applyDefaults(cfg *Config) {
	if cfg.Pool.MinIdle == 0 {
		cfg.Pool.MinIdle = runtime.GOMAXPROCS(0)
	}
	if cfg.Pool.LowWater == 0 {
		cfg.Pool.LowWater = max(1, cfg.Pool.MinIdle/4)
	}
	if cfg.Pool.Replenish == 0 {
		cfg.Pool.Replenish = max(1, cfg.Pool.MinIdle/2)
	}
	if cfg.Pool.NamePrefix == "" {
		cfg.Pool.NamePrefix = "taskq-worker-"
	}
	if cfg.Pool.RateBurst == 0 {
		cfg.Pool.RateBurst = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}

	if cfg.Run.Tasks == 0 {
		cfg.Run.Tasks = 20
	}
	if cfg.Run.Order == "" {
		cfg.Run.Order = "ordered"
	}
	if cfg.Run.MaxSleep == 0 {
		cfg.Run.MaxSleep = 100 * time.Millisecond
	}
	if cfg.Run.PollingInterval == 0 {
		cfg.Run.PollingInterval = 50 * time.Millisecond
	}
}
