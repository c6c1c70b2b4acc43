package task

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/utkarsh5026/taskq/queue"
)

// DefaultCollectionTimeout is the per-task timeout of a timed collection
// created with a zero timeout.
const DefaultCollectionTimeout = 60 * time.Second

// Collection runs many tasks concurrently on one pool and gathers their
// results from a shared queue, either as they finish or replayed in the
// order the tasks were added (or its reverse).
//
// A Collection is single use: exactly one Execute* call may run it, after
// which it can no longer be modified.
type Collection[T, R any] struct {
	pool         Submitter
	defaults     []Option
	cancellation *Cancellation
	timeout      time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	tasks    []*Task[T, R]
	executed bool
}

// NewCollection creates an empty collection. opts apply to every task added
// to it, before the options given to the individual Add call.
func NewCollection[T, R any](p Submitter, opts ...Option) (*Collection[T, R], error) {
	if p == nil {
		return nil, ErrNilPool
	}
	cfg, err := newSettings(opts)
	if err != nil {
		return nil, err
	}

	return &Collection[T, R]{
		pool:         p,
		defaults:     slices.Clone(opts),
		cancellation: cfg.cancellation,
		timeout:      cfg.timeout,
		logger:       cfg.logger,
	}, nil
}

// NewCancellableCollection creates a collection whose tasks all stop when c
// is cancelled. A nil c gets a fresh token, available from Cancellation.
func NewCancellableCollection[T, R any](p Submitter, c *Cancellation, opts ...Option) (*Collection[T, R], error) {
	if c == nil {
		c = NewCancellation()
	}
	return NewCollection[T, R](p, append(slices.Clone(opts), WithCancellation(c))...)
}

// NewTimedCollection creates a collection whose tasks each time out after
// timeout. A zero timeout means DefaultCollectionTimeout.
func NewTimedCollection[T, R any](p Submitter, timeout time.Duration, opts ...Option) (*Collection[T, R], error) {
	if timeout < 0 {
		return nil, ErrNegativeTimeout
	}
	if timeout == 0 {
		timeout = DefaultCollectionTimeout
	}
	return NewCollection[T, R](p, append(slices.Clone(opts), WithTimeout(timeout))...)
}

// Add appends a task computing a value from state.
func (c *Collection[T, R]) Add(fn Func[T, R], state T, opts ...Option) (ID, error) {
	if fn == nil {
		return 0, ErrNilFunc
	}
	return c.add(func(all []Option) (*Task[T, R], error) {
		return newTask(c.pool, fn, state, true, all)
	}, opts)
}

// AddAction appends a task run for its side effects. Its result has no value.
func (c *Collection[T, R]) AddAction(a Action[T], state T, opts ...Option) (ID, error) {
	return c.add(func(all []Option) (*Task[T, R], error) {
		return newActionTask[T, R](c.pool, a, state, all)
	}, opts)
}

// AddParameterless appends a task computing a value without state.
func (c *Collection[T, R]) AddParameterless(fn func(ctx context.Context) (R, error), opts ...Option) (ID, error) {
	if fn == nil {
		return 0, ErrNilFunc
	}
	var zero T
	return c.Add(func(ctx context.Context, _ T) (R, error) { return fn(ctx) }, zero, opts...)
}

// AddParameterlessAction appends a stateless task run for its side effects.
func (c *Collection[T, R]) AddParameterlessAction(fn func(ctx context.Context) error, opts ...Option) (ID, error) {
	if fn == nil {
		return 0, ErrNilFunc
	}
	var zero T
	return c.AddAction(func(ctx context.Context, _ T) error { return fn(ctx) }, zero, opts...)
}

func (c *Collection[T, R]) add(build func([]Option) (*Task[T, R], error), opts []Option) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.executed {
		return 0, ErrAlreadyExecuted
	}

	t, err := build(slices.Concat(c.defaults, opts))
	if err != nil {
		return 0, err
	}
	c.tasks = append(c.tasks, t)
	return t.id, nil
}

// Remove drops the task at index.
func (c *Collection[T, R]) Remove(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.executed {
		return ErrAlreadyExecuted
	}
	if index < 0 || index >= len(c.tasks) {
		return fmt.Errorf("%w: index=%d size=%d", ErrIndexOutOfRange, index, len(c.tasks))
	}
	c.tasks = slices.Delete(c.tasks, index, index+1)
	return nil
}

// Clear drops every task.
func (c *Collection[T, R]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.executed {
		return ErrAlreadyExecuted
	}
	c.tasks = nil
	return nil
}

// Len returns the number of tasks.
func (c *Collection[T, R]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// TaskIDs returns the task IDs in the order the tasks were added.
func (c *Collection[T, R]) TaskIDs() []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return taskIDs(c.tasks)
}

// Cancellation returns the token shared by the tasks, if any.
func (c *Collection[T, R]) Cancellation() *Cancellation {
	return c.cancellation
}

// Timeout returns the default per-task timeout, or 0 if there is none.
func (c *Collection[T, R]) Timeout() time.Duration {
	return c.timeout
}

// ExecuteLater submits every task and returns the shared results queue,
// which receives one result per task in completion order.
func (c *Collection[T, R]) ExecuteLater(ctx context.Context) (*queue.ObservableQueue[Result[R]], error) {
	run, err := c.start(ctx)
	if err != nil {
		return nil, err
	}
	return run.results, nil
}

// ExecuteAndWaitAll submits every task and blocks until all results have
// arrived, returning them in the requested order.
func (c *Collection[T, R]) ExecuteAndWaitAll(ctx context.Context, order Order) ([]Result[R], error) {
	if err := order.validate(); err != nil {
		return nil, err
	}
	run, err := c.start(ctx)
	if err != nil {
		return nil, err
	}
	return run.take(ctx, len(run.ids), order)
}

// ExecuteAndWait submits every task and returns as soon as the first count
// results of the requested order are available. Tasks that have not
// finished by then keep running; their results are not returned.
func (c *Collection[T, R]) ExecuteAndWait(ctx context.Context, count int, order Order) ([]Result[R], error) {
	if err := order.validate(); err != nil {
		return nil, err
	}
	if n := c.Len(); count < 0 || count > n {
		return nil, fmt.Errorf("%w: count=%d size=%d", ErrInvalidCount, count, n)
	}
	run, err := c.start(ctx)
	if err != nil {
		return nil, err
	}
	return run.take(ctx, count, order)
}

// ExecuteAndYield submits every task and returns the results as a lazy
// stream in the requested order. The stream ends early if ctx ends, and can
// be ranged over only once.
func (c *Collection[T, R]) ExecuteAndYield(ctx context.Context, order Order) (iter.Seq[Result[R]], error) {
	if err := order.validate(); err != nil {
		return nil, err
	}
	run, err := c.start(ctx)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func(yield func(Result[R]) bool) {
		once.Do(func() {
			_ = run.stream(ctx, order, yield)
		})
	}, nil
}

// ExecuteLaterNotify runs the collection in the background and delivers its
// results, in the requested order, to observers as EventAdded notifications
// of a delivery queue using mode. The returned channel is closed once every
// result has been delivered or ctx has ended.
func (c *Collection[T, R]) ExecuteLaterNotify(
	ctx context.Context,
	observers []queue.Observer[Result[R]],
	mode queue.FailureMode,
	order Order,
) (<-chan struct{}, error) {
	if observers == nil {
		return nil, ErrNilObservers
	}
	if err := order.validate(); err != nil {
		return nil, err
	}

	delivery, err := queue.NewObservableQueue[Result[R]](mode)
	if err != nil {
		return nil, err
	}
	for _, o := range observers {
		delivery.AttachObserver(o)
	}

	done := make(chan struct{})
	started := make(chan error, 1)
	go func() {
		defer close(done)

		run, err := c.start(ctx)
		started <- err
		if err != nil {
			return
		}

		err = run.stream(ctx, order, func(res Result[R]) bool {
			if err := delivery.Put(res); err != nil {
				c.logger.Warn("result observer failed",
					slog.String("run_id", run.id.String()),
					slog.String("task_id", res.TaskID().String()),
					slog.Any("error", err),
				)
			}
			return true
		})
		if err != nil {
			c.logger.Warn("collection delivery stopped", slog.String("run_id", run.id.String()), slog.Any("error", err))
		}
	}()

	if err := <-started; err != nil {
		return nil, err
	}
	return done, nil
}

// collectionRun is one execution of a collection.
type collectionRun[R any] struct {
	id      uuid.UUID
	ids     []ID
	results *queue.ObservableQueue[Result[R]]
}

// start marks the collection executed and submits all its tasks in order.
// If a submission fails after others went through, the remaining tasks get
// a failed result carrying the submission error so that every task still
// publishes exactly one result.
func (c *Collection[T, R]) start(ctx context.Context) (*collectionRun[R], error) {
	c.mu.Lock()
	if c.executed {
		c.mu.Unlock()
		return nil, ErrAlreadyExecuted
	}
	c.executed = true
	tasks := slices.Clone(c.tasks)
	c.mu.Unlock()

	results, err := queue.NewObservableQueue[Result[R]](queue.ThrowOnError)
	if err != nil {
		return nil, err
	}

	run := &collectionRun[R]{
		id:      uuid.New(),
		ids:     taskIDs(tasks),
		results: results,
	}
	c.logger.Debug("executing collection",
		slog.String("run_id", run.id.String()),
		slog.Int("tasks", len(tasks)),
	)

	for i, t := range tasks {
		err := t.submit(ctx, results)
		if err == nil {
			continue
		}
		if i == 0 {
			return nil, err
		}

		c.logger.Warn("task submission failed",
			slog.String("run_id", run.id.String()),
			slog.Int("submitted", i),
			slog.Any("error", err),
		)
		failed := make([]Result[R], 0, len(tasks)-i)
		for _, rest := range tasks[i:] {
			failed = append(failed, failedResult[R](rest.id, fmt.Errorf("submitting task %s: %w", rest.id, err)))
		}
		_ = results.PutRange(failed...)
		break
	}
	return run, nil
}

// take collects the first count results of the requested order.
func (r *collectionRun[R]) take(ctx context.Context, count int, order Order) ([]Result[R], error) {
	out := make([]Result[R], 0, count)
	if count == 0 {
		return out, nil
	}

	err := r.stream(ctx, order, func(res Result[R]) bool {
		out = append(out, res)
		return len(out) < count
	})
	return out, err
}

// stream pulls results off the shared queue and yields them in order. It
// returns ctx's error if ctx ends before the stream is complete.
func (r *collectionRun[R]) stream(ctx context.Context, order Order, yield func(Result[R]) bool) error {
	if order == Unordered {
		for range r.ids {
			res, err := r.results.GetContext(ctx)
			if err != nil {
				return err
			}
			if !yield(res) {
				return nil
			}
		}
		return nil
	}

	ro := newReorderer[R](r.ids, order)
	for range r.ids {
		res, err := r.results.GetContext(ctx)
		if err != nil {
			return err
		}
		if !ro.push(res, yield) {
			return nil
		}
	}
	return nil
}

func taskIDs[T, R any](tasks []*Task[T, R]) []ID {
	ids := make([]ID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.id
	}
	return ids
}
