package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNegativeCount = errors.New("queue: count must not be negative")
)

// BlockingQueue is an unbounded, thread-safe FIFO queue.
//
// Put never blocks. Get blocks until an item is available. Any number of
// goroutines may produce and consume concurrently; items are never lost,
// duplicated or reordered.
//
// Type parameters:
//   - T: The item type
type BlockingQueue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []T
	head     int
}

// NewBlockingQueue creates an empty queue.
func NewBlockingQueue[T any]() *BlockingQueue[T] {
	q := &BlockingQueue[T]{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Put appends an item to the tail and wakes one waiting consumer.
func (q *BlockingQueue[T]) Put(item T) {
	q.mu.Lock()
	q.push(item)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// PutRange appends all items in order under a single critical section.
func (q *BlockingQueue[T]) PutRange(items ...T) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	for _, item := range items {
		q.push(item)
	}
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// Get removes and returns the head item, blocking until one is available.
func (q *BlockingQueue[T]) Get() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waitLocked(nil)
	return q.pop()
}

// GetContext is Get with a way out: it returns ctx.Err() if the context
// ends before an item becomes available.
func (q *BlockingQueue[T]) GetContext(ctx context.Context) (T, error) {
	stop := q.wakeOnDone(ctx)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.waitLocked(ctx); err != nil {
		var zero T
		return zero, err
	}
	return q.pop(), nil
}

// GetRange removes count items in FIFO order, blocking until all of them
// have been taken. Items are removed under one critical section, so no other
// consumer can interleave with the batch.
func (q *BlockingQueue[T]) GetRange(count int) ([]T, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}

	result := make([]T, 0, count)

	q.mu.Lock()
	defer q.mu.Unlock()

	for range count {
		q.waitLocked(nil)
		result = append(result, q.pop())
	}
	return result, nil
}

// TryGet removes the head item without blocking.
// Returns (zero, false) if the queue is empty.
func (q *BlockingQueue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// Len returns the number of queued items.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Clear drops every queued item and returns them in FIFO order.
func (q *BlockingQueue[T]) Clear() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

// waitLocked blocks on the condition until the queue is non-empty. The
// emptiness check is repeated after every wakeup, so a broadcast that found
// the queue drained by another consumer just puts the caller back to sleep.
// A nil ctx waits forever.
func (q *BlockingQueue[T]) waitLocked(ctx context.Context) error {
	for q.lenLocked() == 0 {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		q.notEmpty.Wait()
	}
	return nil
}

// wakeOnDone arranges for waiters to be woken when ctx ends, so that a
// blocked GetContext can notice the cancellation.
func (q *BlockingQueue[T]) wakeOnDone(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.notEmpty.Broadcast()
	})
}

func (q *BlockingQueue[T]) push(item T) {
	q.items = append(q.items, item)
}

func (q *BlockingQueue[T]) pop() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Compact once the consumed prefix dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item
}

func (q *BlockingQueue[T]) lenLocked() int {
	return len(q.items) - q.head
}

func (q *BlockingQueue[T]) drainLocked() []T {
	out := make([]T, q.lenLocked())
	copy(out, q.items[q.head:])
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return out
}
