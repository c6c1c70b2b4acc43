package pool

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

var (
	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")
	ErrPoolClosed      = errors.New("pool: closed")
	ErrNilWork         = errors.New("pool: work must not be nil")
	ErrInvalidConfig   = errors.New("pool: invalid configuration")
)

// nameModulus bounds the numeric suffix of worker names.
const nameModulus = 32767

// waitUntil blocks until either the done channel is closed or the timeout is reached.
// It is used during shutdown to wait for workers to exit.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

// runRecovered executes work and converts a panic into an error carrying the
// stack of the panicking goroutine.
func runRecovered(work func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("worker panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	work()
	return nil
}

func workerName(prefix string, n uint64) string {
	return fmt.Sprintf("%s%d", prefix, n%nameModulus)
}
