package pool

import (
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/time/rate"
)

// Option is a functional option for configuring the worker pool.
type Option func(*config)

type config struct {
	minIdle    int
	lowWater   int
	replenish  int
	maxWorkers int
	namePrefix string
	affinity   bool

	rateLimiter *rate.Limiter
	logger      *slog.Logger
	metrics     Metrics

	lowWaterSet, replenishSet bool
}

// WithMinIdle sets the number of workers spawned by New, which is also the
// idle level the pool tends back to once a burst of work has drained.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithMinIdle(n int) Option {
	return func(cfg *config) {
		cfg.minIdle = n
	}
}

// WithLowWaterMark sets the idle-worker count below which Submit spawns
// more workers before taking one. Must not exceed the minimum idle count.
// If not specified, defaults to max(1, minIdle/4).
func WithLowWaterMark(n int) Option {
	return func(cfg *config) {
		cfg.lowWater = n
		cfg.lowWaterSet = true
	}
}

// WithReplenishCount sets how many workers one replenishment spawns.
// If not specified, defaults to max(1, minIdle/2).
func WithReplenishCount(n int) Option {
	return func(cfg *config) {
		cfg.replenish = n
		cfg.replenishSet = true
	}
}

// WithMaxWorkers caps the number of live workers. Zero, the default, means
// the pool grows without bound.
func WithMaxWorkers(n int) Option {
	return func(cfg *config) {
		cfg.maxWorkers = n
	}
}

// WithNamePrefix sets the prefix of the per-submission worker names that are
// attached to the work as a pprof label.
func WithNamePrefix(prefix string) Option {
	return func(cfg *config) {
		if prefix != "" {
			cfg.namePrefix = prefix
		}
	}
}

// WithRateLimit throttles Submit to perSecond submissions with the given burst.
// If not specified, no rate limiting is applied.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 submissions/sec with a burst of 5
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *config) {
		if perSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithCPUAffinity locks every worker goroutine to its own OS thread and, on
// Linux, pins that thread to a core chosen round-robin.
func WithCPUAffinity(enabled bool) Option {
	return func(cfg *config) {
		cfg.affinity = enabled
	}
}

// WithLogger sets the logger used for worker lifecycle and panic reports.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithMetrics installs a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(cfg *config) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		minIdle:    runtime.GOMAXPROCS(0),
		namePrefix: "taskq-worker-",
		logger:     slog.New(slog.DiscardHandler),
		metrics:    nopMetrics{},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if !cfg.lowWaterSet {
		cfg.lowWater = max(1, cfg.minIdle/4)
	}
	if !cfg.replenishSet {
		cfg.replenish = max(1, cfg.minIdle/2)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *config) validate() error {
	switch {
	case cfg.minIdle < 1:
		return fmt.Errorf("%w: min idle workers must be at least 1, got %d", ErrInvalidConfig, cfg.minIdle)
	case cfg.lowWater < 0 || cfg.lowWater > cfg.minIdle:
		return fmt.Errorf("%w: low water mark must be in [0, %d], got %d", ErrInvalidConfig, cfg.minIdle, cfg.lowWater)
	case cfg.replenish < 1:
		return fmt.Errorf("%w: replenish count must be at least 1, got %d", ErrInvalidConfig, cfg.replenish)
	case cfg.maxWorkers != 0 && cfg.maxWorkers < cfg.minIdle:
		return fmt.Errorf("%w: max workers must be 0 or at least %d, got %d", ErrInvalidConfig, cfg.minIdle, cfg.maxWorkers)
	}
	return nil
}
