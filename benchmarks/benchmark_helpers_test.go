package benchmarks

import (
	"context"
	"testing"
	"time"

	"github.com/utkarsh5026/taskq/pool"
)

// poolConfig is one worker pool shape to benchmark.
type poolConfig struct {
	name string
	opts []pool.Option
}

// getPoolConfigs returns pool shapes with different replenishment policies
func getPoolConfigs(minIdle int) []poolConfig {
	return []poolConfig{
		{
			name: "Default",
			opts: []pool.Option{
				pool.WithMinIdle(minIdle),
			},
		},
		{
			name: "EagerReplenish",
			opts: []pool.Option{
				pool.WithMinIdle(minIdle),
				pool.WithLowWaterMark(minIdle),
				pool.WithReplenishCount(minIdle),
			},
		},
		{
			name: "Capped",
			opts: []pool.Option{
				pool.WithMinIdle(minIdle),
				pool.WithMaxWorkers(minIdle),
			},
		},
	}
}

func newBenchPool(b *testing.B, opts ...pool.Option) *pool.WorkerPool {
	b.Helper()
	p, err := pool.New(opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() {
		_ = p.Close(10 * time.Second)
	})
	return p
}

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) func(ctx context.Context, task int) (int, error) {
	return func(ctx context.Context, task int) (int, error) {
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result, nil
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) func(ctx context.Context, task int) (int, error) {
	return func(ctx context.Context, task int) (int, error) {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			return task * 2, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func reportThroughput(b *testing.B, tasksPerOp int) {
	nsPerOp := float64(b.Elapsed().Nanoseconds()) / float64(b.N)
	b.ReportMetric(float64(tasksPerOp)/nsPerOp*1e9, "tasks/sec")
}
