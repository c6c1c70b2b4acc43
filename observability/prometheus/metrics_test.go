package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/utkarsh5026/taskq/pool"
	"github.com/utkarsh5026/taskq/queue"
	"github.com/utkarsh5026/taskq/task"
)

func histogramSampleCount(t *testing.T, h prom.Histogram) uint64 {
	t.Helper()

	msg := &dto.Metric{}
	require.NoError(t, h.Write(msg))
	return msg.GetHistogram().GetSampleCount()
}

func TestMetrics_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := NewMetrics("taskq", reg, Options{})
	require.NoError(t, err)

	m.WorkerSpawned()
	m.WorkerSpawned()
	m.WorkerExited()
	m.WorkStarted()
	m.WorkStarted()
	m.WorkFinished(10*time.Millisecond, false)
	m.WorkFinished(20*time.Millisecond, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.workersLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.workersSpawned))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.workersBusy))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workItems.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workItems.WithLabelValues("panic")))
	assert.Equal(t, uint64(2), histogramSampleCount(t, m.workDuration))
}

func TestMetrics_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetrics("taskq", reg, Options{})
	require.NoError(t, err)
	second, err := NewMetrics("taskq", reg, Options{})
	require.NoError(t, err)

	first.WorkerSpawned()
	second.WorkerSpawned()

	assert.Equal(t, 2.0, testutil.ToFloat64(first.workersSpawned))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WorkerSpawned()
		m.WorkerExited()
		m.WorkStarted()
		m.WorkFinished(time.Second, false)
	})
}

func TestMetrics_WiredIntoPool(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := NewMetrics("taskq", reg, Options{})
	require.NoError(t, err)

	p, err := pool.New(pool.WithMinIdle(2), pool.WithMetrics(m))
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))
	<-done

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.workItems.WithLabelValues("ok")) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.workersLive))

	require.NoError(t, p.Close(time.Second))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.workersLive))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "cancelled", Status(&task.CancelledError{}))
	assert.Equal(t, "timed_out", Status(&task.TimeoutError{}))
	assert.Equal(t, "failed", Status(errors.New("x")))
}

func TestResultObserver(t *testing.T) {
	reg := prom.NewRegistry()
	obs, err := NewResultObserver[int]("taskq", reg)
	require.NoError(t, err)

	p, err := pool.New(pool.WithMinIdle(3))
	require.NoError(t, err)
	defer p.Close(time.Second)

	c, err := task.NewTimedCollection[int, int](p, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = c.AddParameterless(func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	_, err = c.AddParameterless(func(context.Context) (int, error) { return 0, errors.New("bad") })
	require.NoError(t, err)
	_, err = c.AddParameterless(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.NoError(t, err)

	done, err := c.ExecuteLaterNotify(context.Background(),
		[]queue.Observer[task.Result[int]]{obs}, queue.ThrowOnError, task.Unordered)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("results were not delivered")
	}

	for status, want := range map[string]float64{"ok": 1, "failed": 1, "timed_out": 1, "cancelled": 0} {
		assert.Equal(t, want, testutil.ToFloat64(obs.results.WithLabelValues(status)), status)
	}
}
