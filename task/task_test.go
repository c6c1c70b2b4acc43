package task

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/utkarsh5026/taskq/queue"
)

func TestNew_Validation(t *testing.T) {
	sub := newGoSubmitter()
	square := func(_ context.Context, n int) (int, error) { return n * n, nil }

	_, err := New[int, int](sub, nil, 1)
	assert.ErrorIs(t, err, ErrNilFunc)

	_, err = New(nil, square, 1)
	assert.ErrorIs(t, err, ErrNilPool)

	_, err = NewAction[int](sub, nil, 1)
	assert.ErrorIs(t, err, ErrNilFunc)

	_, err = NewParameterless[int](sub, nil)
	assert.ErrorIs(t, err, ErrNilFunc)

	_, err = NewParameterlessAction(sub, nil)
	assert.ErrorIs(t, err, ErrNilFunc)

	_, err = New(sub, square, 1, WithCancellation(nil))
	assert.ErrorIs(t, err, ErrNilCancellation)

	c := NewCancellation()
	c.Cancel()
	_, err = New(sub, square, 1, WithCancellation(c))
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = New(sub, square, 1, WithTimeout(-time.Millisecond))
	assert.ErrorIs(t, err, ErrNegativeTimeout)
}

func TestExecuteAndWait(t *testing.T) {
	p := newPool(t, 2)
	ctx := testContext(t)

	t.Run("function", func(t *testing.T) {
		tk, err := New(p, func(_ context.Context, n int) (int, error) { return n * n, nil }, 7)
		require.NoError(t, err)
		assert.Equal(t, 7, tk.State())

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.Equal(t, tk.ID(), res.TaskID())
		assert.True(t, res.Success())
		assert.True(t, res.HasValue())

		v, err := res.Value()
		require.NoError(t, err)
		assert.Equal(t, 49, v)
	})

	t.Run("action", func(t *testing.T) {
		var ran atomic.Bool
		tk, err := NewParameterlessAction(p, func(context.Context) error {
			ran.Store(true)
			return nil
		})
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.True(t, ran.Load())
		assert.True(t, res.Success())
		assert.False(t, res.HasValue())
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		tk, err := NewParameterless(p, func(context.Context) (string, error) { return "ignored", boom })
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.False(t, res.Success())
		assert.False(t, res.HasValue())
		assert.ErrorIs(t, res.Err(), boom)

		v, err := res.Value()
		assert.Empty(t, v)
		assert.ErrorIs(t, err, ErrNoResult)
	})

	t.Run("panic becomes a failed result", func(t *testing.T) {
		tk, err := NewAction(p, func(context.Context, string) error { panic("kaboom") }, "x")
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		require.Error(t, res.Err())
		assert.Contains(t, res.Err().Error(), "kaboom")

		// The pool survives the panic.
		again, err := NewParameterless(p, func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)
		next, err := again.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.True(t, next.Success())
	})

	t.Run("each execution publishes its own result", func(t *testing.T) {
		var calls atomic.Int32
		tk, err := NewParameterless(p, func(context.Context) (int32, error) { return calls.Add(1), nil })
		require.NoError(t, err)

		for want := int32(1); want <= 3; want++ {
			res, err := tk.ExecuteAndWait(ctx)
			require.NoError(t, err)
			v, _ := res.Value()
			assert.Equal(t, want, v)
		}
	})
}

func TestCancellableTask_CancelWhileRunning(t *testing.T) {
	p := newPool(t, 2)
	ctx := testContext(t)

	c, err := NewCancellationWithInterval(10 * time.Millisecond)
	require.NoError(t, err)

	var iterations atomic.Int64
	tk, err := NewParameterlessAction(p, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				iterations.Add(1)
				time.Sleep(time.Millisecond)
			}
		}
	}, WithCancellation(c))
	require.NoError(t, err)

	results, err := tk.ExecuteLater(ctx)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	cancelledAt := time.Now()
	c.CancelBy("shutdown", "test")

	res, err := results.GetContext(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(cancelledAt), time.Second)

	require.False(t, res.Success())
	msg := res.Err().Error()
	assert.True(t, strings.Contains(msg, "shutdown") && strings.Contains(msg, "test"), "got %q", msg)
	assert.ErrorIs(t, res.Err(), ErrCancelled)
	assert.ErrorIs(t, res.Err(), context.Canceled, "the function's own error is kept")

	var ce *CancelledError
	require.ErrorAs(t, res.Err(), &ce)
	assert.Equal(t, "shutdown", ce.Reason)
	assert.Equal(t, "test", ce.Source)
	assert.Positive(t, iterations.Load())
}

func TestCancellableTask_FinishesBeforeCancel(t *testing.T) {
	p := newPool(t, 1)
	c := NewCancellation()

	tk, err := New(p, func(_ context.Context, s string) (string, error) { return s + "!", nil }, "done", WithCancellation(c))
	require.NoError(t, err)

	res, err := tk.ExecuteAndWait(testContext(t))
	require.NoError(t, err)
	c.Cancel()

	v, err := res.Value()
	require.NoError(t, err)
	assert.Equal(t, "done!", v)
}

func TestTimedTask(t *testing.T) {
	p := newPool(t, 2)
	ctx := testContext(t)

	t.Run("times out", func(t *testing.T) {
		tk, err := NewParameterlessAction(p, waitForCancel, WithTimeout(30*time.Millisecond))
		require.NoError(t, err)

		start := time.Now()
		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)

		require.False(t, res.Success())
		assert.ErrorIs(t, res.Err(), ErrTimedOut)
		assert.Contains(t, res.Err().Error(), "task timed out after 30ms")

		var te *TimeoutError
		require.ErrorAs(t, res.Err(), &te)
		assert.Equal(t, 30*time.Millisecond, te.Timeout)
	})

	t.Run("completes in time", func(t *testing.T) {
		tk, err := NewParameterless(p, func(context.Context) (int, error) { return 5, nil }, WithTimeout(time.Second))
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.True(t, res.Success())
	})

	t.Run("ignoring ctx still reports the timeout", func(t *testing.T) {
		tk, err := NewParameterless(p, func(context.Context) (int, error) {
			time.Sleep(60 * time.Millisecond)
			return 1, nil
		}, WithTimeout(10*time.Millisecond))
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err(), ErrTimedOut)
		assert.False(t, res.HasValue())
	})
}

func TestRetry(t *testing.T) {
	p := newPool(t, 1)
	ctx := testContext(t)

	t.Run("succeeds after failures", func(t *testing.T) {
		var attempts atomic.Int32
		tk, err := NewParameterless(p, func(context.Context) (int32, error) {
			n := attempts.Add(1)
			if n < 3 {
				return 0, errors.New("flaky")
			}
			return n, nil
		}, WithRetry(5, time.Millisecond))
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		v, err := res.Value()
		require.NoError(t, err)
		assert.Equal(t, int32(3), v)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var attempts atomic.Int32
		tk, err := NewParameterlessAction(p, func(context.Context) error {
			attempts.Add(1)
			return errors.New("always")
		}, WithRetry(3, time.Millisecond), WithBackoff(BackoffJittered, time.Millisecond, 5*time.Millisecond))
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.False(t, res.Success())
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("no retry after timeout", func(t *testing.T) {
		var attempts atomic.Int32
		tk, err := NewParameterlessAction(p, func(ctx context.Context) error {
			attempts.Add(1)
			return waitForCancel(ctx)
		}, WithRetry(5, time.Millisecond), WithTimeout(10*time.Millisecond))
		require.NoError(t, err)

		res, err := tk.ExecuteAndWait(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err(), ErrTimedOut)
		assert.Equal(t, int32(1), attempts.Load())
	})
}

func TestExecuteLaterNotify(t *testing.T) {
	p := newPool(t, 1)
	ctx := testContext(t)

	tk, err := New(p, func(_ context.Context, s string) (int, error) { return len(s), nil }, "four")
	require.NoError(t, err)

	assert.ErrorIs(t, tk.ExecuteLaterNotify(ctx, nil, queue.IgnoreErrors), ErrNilObservers)

	got := make(chan Result[int], 1)
	observer := queue.ObserverFunc[Result[int]](func(e queue.Event, r Result[int]) error {
		if e == queue.EventAdded {
			got <- r
		}
		return nil
	})
	require.NoError(t, tk.ExecuteLaterNotify(ctx, []queue.Observer[Result[int]]{observer}, queue.ThrowOnError))

	select {
	case r := <-got:
		v, err := r.Value()
		require.NoError(t, err)
		assert.Equal(t, 4, v)
	case <-time.After(time.Second):
		t.Fatal("observer was not notified")
	}
}

func TestExecuteLater_FailingObserverDoesNotLoseResult(t *testing.T) {
	sub := newGoSubmitter()
	tk, err := NewParameterless(sub, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	results, err := tk.ExecuteLater(testContext(t))
	require.NoError(t, err)
	results.AttachObserver(queue.ObserverFunc[Result[int]](func(queue.Event, Result[int]) error {
		return errors.New("observer down")
	}))

	// The observer may be attached before or after the result lands; the
	// result is on the queue either way.
	sub.wg.Wait()
	assert.Equal(t, 1, results.Len())
}

func TestExecute_SubmissionError(t *testing.T) {
	sub := &goSubmitter{failAfter: 0}
	tk, err := NewParameterless(sub, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	_, err = tk.ExecuteAndWait(testContext(t))
	assert.ErrorIs(t, err, errSubmit)
}

func TestExecuteLater_TaskOutlivesCallerContext(t *testing.T) {
	p := newPool(t, 2)

	started := make(chan struct{})
	tk, err := NewParameterless(p, func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-time.After(50 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	results, err := tk.ExecuteLater(ctx)
	require.NoError(t, err)
	<-started
	cancel()

	res, err := results.GetContext(testContext(t))
	require.NoError(t, err)
	require.True(t, res.Success(), "unexpected error: %v", res.Err())
	v, _ := res.Value()
	assert.Equal(t, "done", v)
}
