package task

import (
	"log/slog"
	"time"

	"github.com/utkarsh5026/taskq/internal/algorithms"
)

// BackoffType selects the delay growth between retries.
type BackoffType = algorithms.BackoffType

const (
	BackoffExponential  = algorithms.BackoffExponential
	BackoffJittered     = algorithms.BackoffJittered
	BackoffDecorrelated = algorithms.BackoffDecorrelated
)

// Option configures a Task, or every task of a Collection.
type Option func(*settings)

type settings struct {
	cancellation    *Cancellation
	cancellationSet bool

	timeout    time.Duration
	timeoutSet bool

	maxAttempts    int
	backoffType    BackoffType
	backoffInitial time.Duration
	backoffMax     time.Duration
	backoffJitter  float64

	logger *slog.Logger
}

// WithCancellation makes the task stoppable through c. The token must not
// be cancelled yet.
func WithCancellation(c *Cancellation) Option {
	return func(s *settings) {
		s.cancellation = c
		s.cancellationSet = true
	}
}

// WithTimeout stops the task once it has run for d. A zero timeout expires
// as soon as the task starts.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
		s.timeoutSet = true
	}
}

// WithRetry runs the task function up to maxAttempts times until it
// succeeds, waiting initialDelay before the first retry and doubling the
// wait after every further failure.
//
// A task that has been cancelled or timed out is never retried.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(s *settings) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if initialDelay >= 0 {
			s.backoffInitial = initialDelay
		}
	}
}

// WithBackoff selects the retry delay algorithm. It has no effect without
// WithRetry.
func WithBackoff(kind BackoffType, initialDelay, maxDelay time.Duration) Option {
	return func(s *settings) {
		s.backoffType = kind
		s.backoffInitial = initialDelay
		s.backoffMax = maxDelay
	}
}

// WithLogger sets the logger for retries and result delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func newSettings(opts []Option) (*settings, error) {
	s := &settings{
		maxAttempts:    1,
		backoffType:    BackoffExponential,
		backoffInitial: 100 * time.Millisecond,
		backoffMax:     5 * time.Second,
		backoffJitter:  0.1,
		logger:         slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *settings) validate() error {
	if s.cancellationSet {
		if s.cancellation == nil {
			return ErrNilCancellation
		}
		if s.cancellation.IsCancelled() {
			return ErrAlreadyCancelled
		}
	}
	if s.timeoutSet && s.timeout < 0 {
		return ErrNegativeTimeout
	}
	return nil
}

func (s *settings) backoff() algorithms.Backoff {
	return algorithms.NewBackoff(s.backoffType, s.backoffInitial, s.backoffMax, s.backoffJitter)
}
