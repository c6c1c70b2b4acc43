package task

import (
	"context"
	"sync"
	"time"
)

// watchdog cancels a running task from the outside. Once stop has returned,
// the fired flag is final, so the task can decide its outcome without racing
// a late alarm.
type watchdog struct {
	mu      sync.Mutex
	stopped bool
	fired   bool
	halt    func()
}

func (w *watchdog) fire(cancel context.CancelCauseFunc, cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || w.fired {
		return
	}
	w.fired = true
	cancel(cause)
}

// stop disarms the watchdog and reports whether it fired.
func (w *watchdog) stop() bool {
	w.mu.Lock()
	w.stopped = true
	fired := w.fired
	w.mu.Unlock()

	w.halt()
	return fired
}

// watchCancellation polls c at its polling interval, starting immediately.
func watchCancellation(c *Cancellation, cancel context.CancelCauseFunc) *watchdog {
	quit := make(chan struct{})
	w := &watchdog{halt: sync.OnceFunc(func() { close(quit) })}

	go func() {
		ticker := time.NewTicker(c.PollingInterval())
		defer ticker.Stop()

		for {
			if c.IsCancelled() {
				w.fire(cancel, c.err())
				return
			}
			select {
			case <-ticker.C:
			case <-quit:
				return
			}
		}
	}()
	return w
}

// watchTimeout fires once after d.
func watchTimeout(d time.Duration, cancel context.CancelCauseFunc) *watchdog {
	w := &watchdog{}
	timer := time.AfterFunc(d, func() {
		w.fire(cancel, &TimeoutError{Timeout: d})
	})
	w.halt = func() { timer.Stop() }
	return w
}
