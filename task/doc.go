// Package task wraps functions into tasks that run on a worker pool and
// publish exactly one Result each, and groups tasks into collections whose
// results can be replayed in submission order.
//
// # Single tasks
//
//	t, err := task.New(p, func(ctx context.Context, n int) (int, error) {
//	    return n * n, nil
//	}, 7)
//	res, err := t.ExecuteAndWait(ctx)
//	v, err := res.Value() // 49
//
// # Cancellation and timeouts
//
// WithCancellation and WithTimeout arm a watchdog next to the running
// function. When it fires, the function's ctx is cancelled and the Result
// reports a *CancelledError or *TimeoutError. Functions must watch ctx.Done()
// to stop; nothing is killed from the outside.
//
//	c := task.NewCancellation()
//	t, _ := task.NewParameterlessAction(p, work, task.WithCancellation(c))
//	q, _ := t.ExecuteLater(ctx)
//	c.CancelBy("shutdown", "operator")
//
// # Collections
//
// A Collection submits all its tasks at once. ExecuteAndWaitAll with Ordered
// returns results in the order the tasks were added even though they finish
// in any order; results that finish early wait in a sorted side map until
// their turn.
package task
