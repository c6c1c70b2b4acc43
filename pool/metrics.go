package pool

import "time"

// Metrics receives worker and work-item events from a WorkerPool.
// Implementations must be safe for concurrent use.
type Metrics interface {
	WorkerSpawned()
	WorkerExited()
	WorkStarted()
	WorkFinished(d time.Duration, panicked bool)
}

type nopMetrics struct{}

func (nopMetrics) WorkerSpawned() {}
func (nopMetrics) WorkerExited() {}
func (nopMetrics) WorkStarted() {}
func (nopMetrics) WorkFinished(time.Duration, bool) {}

// Stats is a point-in-time snapshot of a WorkerPool.
type Stats struct {
	Live      int
	Idle      int
	Busy      int
	Spawned   uint64
	Completed uint64
	Panicked  uint64
}
