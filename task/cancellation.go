package task

import (
	"sync"
	"time"
)

// DefaultPollingInterval is how often a watchdog checks a Cancellation.
const DefaultPollingInterval = 350 * time.Millisecond

// Cancellation is a one-way flag shared by any number of tasks. Once
// cancelled it stays cancelled; the first cancel call decides the reason
// and source.
type Cancellation struct {
	interval time.Duration

	mu        sync.RWMutex
	cancelled bool
	reason    string
	source    string
	done      chan struct{}
}

// NewCancellation creates a token polled every DefaultPollingInterval.
func NewCancellation() *Cancellation {
	c, _ := NewCancellationWithInterval(DefaultPollingInterval)
	return c
}

// NewCancellationWithInterval creates a token polled every interval.
func NewCancellationWithInterval(interval time.Duration) (*Cancellation, error) {
	if interval <= 0 {
		return nil, ErrInvalidPollingInterval
	}
	return &Cancellation{
		interval: interval,
		done:     make(chan struct{}),
	}, nil
}

// Cancel requests cancellation without a reason.
func (c *Cancellation) Cancel() {
	c.CancelBy("", "")
}

// CancelWithReason requests cancellation, recording why.
func (c *Cancellation) CancelWithReason(reason string) {
	c.CancelBy(reason, "")
}

// CancelBy requests cancellation, recording why and who asked for it.
// Calls after the first are ignored.
func (c *Cancellation) CancelBy(reason, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelled {
		return
	}
	c.cancelled = true
	c.reason = reason
	c.source = source
	close(c.done)
}

// IsCancelled reports whether cancellation was requested.
func (c *Cancellation) IsCancelled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cancelled
}

// Reason returns the reason given by the first cancel call.
func (c *Cancellation) Reason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reason
}

// Source returns the source given by the first cancel call.
func (c *Cancellation) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// PollingInterval returns how often watchdogs check the token.
func (c *Cancellation) PollingInterval() time.Duration {
	return c.interval
}

// Done returns a channel closed on cancellation.
func (c *Cancellation) Done() <-chan struct{} {
	return c.done
}

func (c *Cancellation) err() *CancelledError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &CancelledError{Reason: c.reason, Source: c.source}
}
