package prometheus

import (
	"errors"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/utkarsh5026/taskq/queue"
	"github.com/utkarsh5026/taskq/task"
)

// ResultObserver counts task results by status as they are added to a
// results queue. Removals are ignored, so each result is counted once.
type ResultObserver[R any] struct {
	results *prom.CounterVec
}

var _ queue.Observer[task.Result[int]] = (*ResultObserver[int])(nil)

// NewResultObserver creates and registers the task_results_total counter.
func NewResultObserver[R any](namespace string, reg prom.Registerer) (*ResultObserver[R], error) {
	if namespace == "" {
		namespace = "taskq"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	vec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_results_total",
		Help:      "Total number of task results, by status.",
	}, []string{"status"})

	vec, err := registerCollector(reg, vec)
	if err != nil {
		return nil, err
	}
	return &ResultObserver[R]{results: vec}, nil
}

// Notify implements queue.Observer.
func (o *ResultObserver[R]) Notify(event queue.Event, res task.Result[R]) error {
	if event != queue.EventAdded {
		return nil
	}
	o.results.WithLabelValues(Status(res.Err())).Inc()
	return nil
}

// Status classifies a task error as ok, cancelled, timed_out or failed.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, task.ErrCancelled):
		return "cancelled"
	case errors.Is(err, task.ErrTimedOut):
		return "timed_out"
	default:
		return "failed"
	}
}
