package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/utkarsh5026/taskq/queue"
)

// Func is a task body that computes a value from its state.
type Func[T, R any] func(ctx context.Context, state T) (R, error)

// Action is a task body that only reports success or failure.
type Action[T any] func(ctx context.Context, state T) error

// Submitter runs work on some other goroutine. *pool.WorkerPool satisfies it.
type Submitter interface {
	SubmitContext(ctx context.Context, work func()) error
}

// Task is one unit of work bound to its state. Every execution publishes
// exactly one Result, whatever happens inside the function.
//
// Stopping a task is cooperative: when its Cancellation is cancelled or its
// timeout expires, the ctx handed to the function is cancelled with a
// *CancelledError or *TimeoutError cause and the function is expected to
// return. The published Result then carries that error.
type Task[T, R any] struct {
	id       ID
	fn       Func[T, R]
	state    T
	hasValue bool
	pool     Submitter
	cfg      *settings
}

// New creates a task computing a value from state.
func New[T, R any](p Submitter, fn Func[T, R], state T, opts ...Option) (*Task[T, R], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	return newTask(p, fn, state, true, opts)
}

// NewAction creates a task that runs a for its side effects.
func NewAction[T any](p Submitter, a Action[T], state T, opts ...Option) (*Task[T, struct{}], error) {
	return newActionTask[T, struct{}](p, a, state, opts)
}

// NewParameterless creates a stateless task computing a value.
func NewParameterless[R any](p Submitter, fn func(ctx context.Context) (R, error), opts ...Option) (*Task[struct{}, R], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	return New(p, dropState[R](fn), struct{}{}, opts...)
}

// NewParameterlessAction creates a stateless task run for its side effects.
func NewParameterlessAction(p Submitter, fn func(ctx context.Context) error, opts ...Option) (*Task[struct{}, struct{}], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	return NewAction(p, dropActionState(fn), struct{}{}, opts...)
}

func newActionTask[T, R any](p Submitter, a Action[T], state T, opts []Option) (*Task[T, R], error) {
	if a == nil {
		return nil, ErrNilFunc
	}
	fn := func(ctx context.Context, s T) (R, error) {
		var zero R
		return zero, a(ctx, s)
	}
	return newTask(p, fn, state, false, opts)
}

func newTask[T, R any](p Submitter, fn Func[T, R], state T, hasValue bool, opts []Option) (*Task[T, R], error) {
	if p == nil {
		return nil, ErrNilPool
	}
	cfg, err := newSettings(opts)
	if err != nil {
		return nil, err
	}

	return &Task[T, R]{
		id:       nextID(),
		fn:       fn,
		state:    state,
		hasValue: hasValue,
		pool:     p,
		cfg:      cfg,
	}, nil
}

func dropState[R any](fn func(context.Context) (R, error)) Func[struct{}, R] {
	return func(ctx context.Context, _ struct{}) (R, error) {
		return fn(ctx)
	}
}

func dropActionState(fn func(context.Context) error) Action[struct{}] {
	return func(ctx context.Context, _ struct{}) error {
		return fn(ctx)
	}
}

// ID returns the task's identifier.
func (t *Task[T, R]) ID() ID { return t.id }

// State returns the value the task function is called with.
func (t *Task[T, R]) State() T { return t.state }

// ExecuteAndWait runs the task on the pool and blocks until its result is
// published or ctx ends. The function's ctx carries ctx's values but not its
// cancellation, so a task left behind by an ended ctx still runs to completion.
func (t *Task[T, R]) ExecuteAndWait(ctx context.Context) (Result[R], error) {
	results, err := t.ExecuteLater(ctx)
	if err != nil {
		return Result[R]{}, err
	}
	res, err := results.GetContext(ctx)
	if err != nil {
		return Result[R]{}, err
	}
	return res, nil
}

// ExecuteLater runs the task on the pool and returns the queue its result
// will be published to. The returned error only reports a failed submission.
func (t *Task[T, R]) ExecuteLater(ctx context.Context) (*queue.ObservableQueue[Result[R]], error) {
	results, err := queue.NewObservableQueue[Result[R]](queue.ThrowOnError)
	if err != nil {
		return nil, err
	}
	if err := t.submit(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// ExecuteLaterNotify runs the task on the pool and delivers its result to
// observers, on the worker goroutine, under the given failure mode.
func (t *Task[T, R]) ExecuteLaterNotify(ctx context.Context, observers []queue.Observer[Result[R]], mode queue.FailureMode) error {
	if observers == nil {
		return ErrNilObservers
	}
	results, err := queue.NewObservableQueue[Result[R]](mode)
	if err != nil {
		return err
	}
	for _, o := range observers {
		results.AttachObserver(o)
	}
	return t.submit(ctx, results)
}

// submit bounds the wait for a worker by ctx. The task itself runs under
// ctx's values only: once submitted it finishes even if ctx ends, and only
// its Cancellation or timeout can stop it.
func (t *Task[T, R]) submit(ctx context.Context, results *queue.ObservableQueue[Result[R]]) error {
	runCtx := context.WithoutCancel(ctx)
	return t.pool.SubmitContext(ctx, func() {
		t.run(runCtx, results)
	})
}

// run executes the task on the current goroutine and publishes its result.
func (t *Task[T, R]) run(parent context.Context, results *queue.ObservableQueue[Result[R]]) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	var dogs []*watchdog
	if t.cfg.cancellation != nil {
		dogs = append(dogs, watchCancellation(t.cfg.cancellation, cancel))
	}
	if t.cfg.timeoutSet {
		dogs = append(dogs, watchTimeout(t.cfg.timeout, cancel))
	}

	value, err := t.invoke(ctx)

	fired := false
	for _, d := range dogs {
		if d.stop() {
			fired = true
		}
	}
	if fired {
		if cause := context.Cause(ctx); errors.Is(cause, ErrCancelled) || errors.Is(cause, ErrTimedOut) {
			err = withFunctionErr(cause, err)
		}
	}

	res := successResult(t.id, value, t.hasValue)
	if err != nil {
		res = failedResult[R](t.id, err)
	}

	if perr := results.Put(res); perr != nil {
		t.cfg.logger.Warn("result observer failed",
			slog.String("task_id", t.id.String()),
			slog.Any("error", perr),
		)
	}
}

// invoke calls the function, retrying failed attempts with backoff until
// they run out or ctx ends.
func (t *Task[T, R]) invoke(ctx context.Context) (value R, err error) {
	backoff := t.cfg.backoff()

	for attempt := range t.cfg.maxAttempts {
		if attempt > 0 {
			delay := backoff.Delay(attempt - 1)
			t.cfg.logger.Debug("retrying task",
				slog.String("task_id", t.id.String()),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return value, err
			}
		}

		value, err = callRecovered(ctx, t.fn, t.state)
		if err == nil || ctx.Err() != nil {
			return value, err
		}
	}
	return value, err
}

func callRecovered[T, R any](ctx context.Context, fn Func[T, R], state T) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("task panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()
	return fn(ctx, state)
}
