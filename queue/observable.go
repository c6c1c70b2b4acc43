package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
)

var (
	ErrObserverNotification = errors.New("queue: observer notification failed")
	ErrUnknownFailureMode   = errors.New("queue: unknown observer failure handling mode")
)

// Event identifies what happened to an item of an ObservableQueue.
type Event string

const (
	EventAdded   Event = "ItemAdded"
	EventRemoved Event = "ItemRemoved"
)

// FailureMode decides what an ObservableQueue does when an observer fails.
type FailureMode int

const (
	// ThrowOnError returns the observer's failure to the caller of the queue
	// operation and skips the remaining observers for that event.
	ThrowOnError FailureMode = iota
	// RemoveObserver detaches the failing observer and keeps notifying the rest.
	RemoveObserver
	// IgnoreErrors swallows the failure and keeps notifying the rest.
	IgnoreErrors
)

func (m FailureMode) String() string {
	switch m {
	case ThrowOnError:
		return "throw-on-error"
	case RemoveObserver:
		return "remove-observer"
	case IgnoreErrors:
		return "ignore-errors"
	default:
		return fmt.Sprintf("FailureMode(%d)", int(m))
	}
}

func (m FailureMode) valid() bool {
	return m >= ThrowOnError && m <= IgnoreErrors
}

// Observer receives queue events.
type Observer[T any] interface {
	Notify(event Event, item T) error
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc[T any] func(event Event, item T) error

// Notify calls f(event, item).
func (f ObserverFunc[T]) Notify(event Event, item T) error {
	return f(event, item)
}

// ObserverError reports which observer failed and on which event.
type ObserverError struct {
	Index int
	Event Event
	Err   error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("queue: failed to notify observer #%d of %s: %v", e.Index, e.Event, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrObserverNotification) hold for every ObserverError.
func (e *ObserverError) Is(target error) bool {
	return target == ErrObserverNotification
}

// ObservableQueue is a BlockingQueue that reports every insertion and
// removal to a dynamic list of observers.
//
// Observers are notified in attachment order, synchronously, on the goroutine
// that performed the queue operation and after the item has been added or
// removed. A failing observer never undoes the queue mutation; what happens to
// the failure is decided by the queue's FailureMode.
//
// No queue lock is held while observers run, so an observer may call back
// into the queue it observes. When several goroutines use the queue, each
// of them notifies its own events, so observers must be safe for concurrent
// use and only the events of one goroutine are guaranteed to arrive in
// operation order.
//
// The failure mode is meant to be configured before the queue is shared.
type ObservableQueue[T any] struct {
	inner *BlockingQueue[T]

	obsMu     sync.RWMutex
	observers []*attachment[T]
	mode      FailureMode
}

// attachment gives every AttachObserver call its own identity, so failing
// observers can be detached even when their dynamic type is not comparable.
type attachment[T any] struct {
	observer Observer[T]
}

// NewObservableQueue creates an empty queue using the given failure mode.
func NewObservableQueue[T any](mode FailureMode) (*ObservableQueue[T], error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFailureMode, mode)
	}
	return &ObservableQueue[T]{
		inner: NewBlockingQueue[T](),
		mode:  mode,
	}, nil
}

// FailureMode returns the current observer failure handling mode.
func (q *ObservableQueue[T]) FailureMode() FailureMode {
	q.obsMu.RLock()
	defer q.obsMu.RUnlock()
	return q.mode
}

// SetFailureMode changes the observer failure handling mode.
func (q *ObservableQueue[T]) SetFailureMode(mode FailureMode) error {
	if !mode.valid() {
		return fmt.Errorf("%w: %v", ErrUnknownFailureMode, mode)
	}
	q.obsMu.Lock()
	q.mode = mode
	q.obsMu.Unlock()
	return nil
}

// AttachObserver appends an observer to the notification list.
func (q *ObservableQueue[T]) AttachObserver(o Observer[T]) {
	if o == nil {
		return
	}
	q.obsMu.Lock()
	q.observers = append(q.observers, &attachment[T]{observer: o})
	q.obsMu.Unlock()
}

// DetachObserver removes the first attachment of o.
// Returns true if the observer was attached.
//
// Observers are compared with ==, so observers that are not comparable
// (such as ObserverFunc values) can only be removed with ClearObservers
// or by failing under RemoveObserver.
func (q *ObservableQueue[T]) DetachObserver(o Observer[T]) bool {
	q.obsMu.Lock()
	defer q.obsMu.Unlock()

	for i, a := range q.observers {
		if sameObserver(a.observer, o) {
			q.observers = slices.Delete(q.observers, i, i+1)
			return true
		}
	}
	return false
}

// ClearObservers detaches every observer.
func (q *ObservableQueue[T]) ClearObservers() {
	q.obsMu.Lock()
	q.observers = nil
	q.obsMu.Unlock()
}

// ObserverCount returns the number of attached observers.
func (q *ObservableQueue[T]) ObserverCount() int {
	q.obsMu.RLock()
	defer q.obsMu.RUnlock()
	return len(q.observers)
}

// Put appends an item and notifies observers with EventAdded.
func (q *ObservableQueue[T]) Put(item T) error {
	q.inner.Put(item)
	return q.notify(EventAdded, item)
}

// PutRange appends the items in order, notifying EventAdded once per item.
// Under ThrowOnError every item is still enqueued; the first observer
// failure is returned.
func (q *ObservableQueue[T]) PutRange(items ...T) error {
	q.inner.PutRange(items...)
	return q.notifyAll(EventAdded, items)
}

// Get removes the head item, blocking until one exists, and notifies
// observers with EventRemoved. The item is returned even when an observer
// fails.
func (q *ObservableQueue[T]) Get() (T, error) {
	item := q.inner.Get()
	return item, q.notify(EventRemoved, item)
}

// GetContext is Get bounded by ctx.
func (q *ObservableQueue[T]) GetContext(ctx context.Context) (T, error) {
	item, err := q.inner.GetContext(ctx)
	if err != nil {
		return item, err
	}
	return item, q.notify(EventRemoved, item)
}

// GetRange removes count items in FIFO order and notifies EventRemoved
// for each of them.
func (q *ObservableQueue[T]) GetRange(count int) ([]T, error) {
	items, err := q.inner.GetRange(count)
	if err != nil {
		return nil, err
	}
	return items, q.notifyAll(EventRemoved, items)
}

// TryGet removes the head item without blocking.
func (q *ObservableQueue[T]) TryGet() (T, bool, error) {
	item, ok := q.inner.TryGet()
	if !ok {
		return item, false, nil
	}
	return item, true, q.notify(EventRemoved, item)
}

// Clear drains the queue, notifying EventRemoved for every dropped item.
func (q *ObservableQueue[T]) Clear() error {
	return q.notifyAll(EventRemoved, q.inner.Clear())
}

// Len returns the number of queued items.
func (q *ObservableQueue[T]) Len() int {
	return q.inner.Len()
}

// notifyAll notifies every item and returns the first failure.
func (q *ObservableQueue[T]) notifyAll(event Event, items []T) error {
	var first error
	for _, item := range items {
		if err := q.notify(event, item); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// notify walks a snapshot of the attachments. Under RemoveObserver the
// failing attachments are dropped from the live list after the round.
func (q *ObservableQueue[T]) notify(event Event, item T) error {
	q.obsMu.RLock()
	if len(q.observers) == 0 {
		q.obsMu.RUnlock()
		return nil
	}
	snapshot := slices.Clone(q.observers)
	mode := q.mode
	q.obsMu.RUnlock()

	var failed []*attachment[T]
	for i, a := range snapshot {
		err := callObserver(a.observer, event, item)
		if err == nil {
			continue
		}

		switch mode {
		case ThrowOnError:
			return &ObserverError{Index: i, Event: event, Err: err}
		case RemoveObserver:
			failed = append(failed, a)
		case IgnoreErrors:
		}
	}

	if len(failed) > 0 {
		q.obsMu.Lock()
		q.observers = slices.DeleteFunc(q.observers, func(a *attachment[T]) bool {
			return slices.Contains(failed, a)
		})
		q.obsMu.Unlock()
	}
	return nil
}

// callObserver treats a panicking observer as a failing one.
func callObserver[T any](o Observer[T], event Event, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("observer panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()
	return o.Notify(event, item)
}

// sameObserver compares two observers without panicking on
// non-comparable dynamic types.
func sameObserver[T any](a, b Observer[T]) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
