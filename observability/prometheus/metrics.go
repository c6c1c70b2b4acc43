// Package prometheus exports worker pool and task result metrics to
// Prometheus collectors.
package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/utkarsh5026/taskq/pool"
)

// Options controls collector configuration.
type Options struct {
	DurationBuckets []float64
}

// Metrics adapts pool.Metrics to Prometheus collectors.
type Metrics struct {
	workersLive    prom.Gauge
	workersBusy    prom.Gauge
	workersSpawned prom.Counter
	workItems      *prom.CounterVec
	workDuration   prom.Histogram
}

var _ pool.Metrics = (*Metrics)(nil)

// NewMetrics creates and registers the pool collectors. Collectors already
// registered under the same names are reused, so several pools may share
// one registry.
func NewMetrics(namespace string, reg prom.Registerer, opts Options) (*Metrics, error) {
	if namespace == "" {
		namespace = "taskq"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	live := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_live",
		Help:      "Number of worker goroutines alive.",
	})
	busy := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_busy",
		Help:      "Number of workers currently running work.",
	})
	spawned := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "workers_spawned_total",
		Help:      "Total number of workers spawned.",
	})
	items := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "work_items_total",
		Help:      "Total number of work items run, by outcome.",
	}, []string{"outcome"})
	duration := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "work_duration_seconds",
		Help:      "Work item run time in seconds.",
		Buckets:   buckets,
	})

	var err error
	if live, err = registerCollector(reg, live); err != nil {
		return nil, err
	}
	if busy, err = registerCollector(reg, busy); err != nil {
		return nil, err
	}
	if spawned, err = registerCollector(reg, spawned); err != nil {
		return nil, err
	}
	if items, err = registerCollector(reg, items); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(reg, duration); err != nil {
		return nil, err
	}

	return &Metrics{
		workersLive:    live,
		workersBusy:    busy,
		workersSpawned: spawned,
		workItems:      items,
		workDuration:   duration,
	}, nil
}

// WorkerSpawned records a new worker.
func (m *Metrics) WorkerSpawned() {
	if m == nil {
		return
	}
	m.workersSpawned.Inc()
	m.workersLive.Inc()
}

// WorkerExited records a worker leaving the pool.
func (m *Metrics) WorkerExited() {
	if m == nil {
		return
	}
	m.workersLive.Dec()
}

// WorkStarted records a worker picking up work.
func (m *Metrics) WorkStarted() {
	if m == nil {
		return
	}
	m.workersBusy.Inc()
}

// WorkFinished records the end of a work item.
func (m *Metrics) WorkFinished(d time.Duration, panicked bool) {
	if m == nil {
		return
	}
	m.workersBusy.Dec()
	m.workDuration.Observe(d.Seconds())

	outcome := "ok"
	if panicked {
		outcome = "panic"
	}
	m.workItems.WithLabelValues(outcome).Inc()
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
