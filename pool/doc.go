// Package pool provides a self-replenishing pool of reusable worker goroutines
// for fire-and-forget work.
//
// The primary type is WorkerPool. Unlike a fixed-size pool fed by a channel,
// every worker has its own inbox and returns itself to an idle queue after
// each piece of work. Submit takes an idle worker and hands it the work; when
// too few workers are idle, Submit first spawns a batch of new ones.
//
// # Basic Usage
//
//	p, err := pool.New(pool.WithMinIdle(4))
//	if err != nil {
//	    return err
//	}
//	defer p.Close(time.Second)
//
//	err = p.Submit(func() {
//	    fmt.Println("running on a pooled worker")
//	})
//
// # Replenishment
//
// Three numbers govern growth:
//
//   - WithMinIdle(n): workers spawned up front (default: GOMAXPROCS)
//   - WithLowWaterMark(n): Submit replenishes when fewer workers are idle (default: n/4)
//   - WithReplenishCount(n): workers spawned per replenishment (default: n/2)
//
// WithMaxWorkers caps growth. Once the cap is reached Submit waits for a
// busy worker to come back.
//
// # Rate Limiting
//
//	p, err := pool.New(
//	    pool.WithMinIdle(8),
//	    pool.WithRateLimit(5.0, 10), // 5 submissions/sec, burst of 10
//	)
//
// # Error Handling
//
// Work is a plain func(); capturing its outcome is the caller's job. A panic
// inside work is recovered, logged with its stack trace and counted, and the
// worker goes back to the idle queue as if the work had returned.
//
// # Diagnostics
//
// Every submission names the worker "<prefix><n mod 32767>" and runs the work
// under the pprof label worker=<name>, so CPU profiles can be split per
// submission. Building with -tags debug additionally traces handoffs to stderr.
package pool
