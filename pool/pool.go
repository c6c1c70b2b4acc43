package pool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utkarsh5026/taskq/queue"
	"golang.org/x/sync/errgroup"
)

// WorkerPool is a self-replenishing pool of reusable worker goroutines.
//
// Each worker owns an inbox. An idle worker sits on the pool's idle queue;
// Submit takes one off the queue and hands it the work. After the work
// returns, panicking or not, the worker puts itself back on the idle queue.
// When the idle queue runs below the low water mark, Submit spawns a batch
// of new workers before taking one, so bursts grow the pool instead of
// queueing behind busy workers.
type WorkerPool struct {
	cfg *config

	idle *queue.BlockingQueue[*worker]

	// mu orders work handoff against Close: handoffs hold it for reading,
	// Close takes it for writing to flip closed.
	mu     sync.RWMutex
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	live        atomic.Int64
	busy        atomic.Int64
	spawned     atomic.Uint64
	submissions atomic.Uint64
	completed   atomic.Uint64
	panicked    atomic.Uint64
}

// New creates a pool and spawns its minimum number of idle workers.
// Default configuration: min idle = GOMAXPROCS, low water mark = min idle / 4,
// replenish count = min idle / 2, unbounded growth.
func New(opts ...Option) (*WorkerPool, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		cfg:    cfg,
		idle:   queue.NewBlockingQueue[*worker](),
		ctx:    ctx,
		cancel: cancel,
	}

	p.spawn(cfg.minIdle)
	p.cfg.logger.Debug("worker pool started",
		slog.Int("min_idle", cfg.minIdle),
		slog.Int("low_water", cfg.lowWater),
		slog.Int("replenish", cfg.replenish),
		slog.Int("max_workers", cfg.maxWorkers),
	)
	return p, nil
}

// Submit hands work to an idle worker, waiting for one if necessary.
// It returns once a worker has accepted the work, never waiting for the
// work itself.
func (p *WorkerPool) Submit(work func()) error {
	return p.SubmitContext(context.Background(), work)
}

// SubmitContext is Submit bounded by ctx. The context only limits the wait
// for rate limiting and for an idle worker; it is not passed to the work.
func (p *WorkerPool) SubmitContext(ctx context.Context, work func()) error {
	if work == nil {
		return ErrNilWork
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	if p.cfg.rateLimiter != nil {
		if err := p.cfg.rateLimiter.Wait(ctx); err != nil {
			return p.submitErr(err)
		}
	}

	if p.idle.Len() < p.cfg.lowWater {
		p.replenish()
	}

	w, err := p.idle.GetContext(ctx)
	if err != nil {
		return p.submitErr(err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return ErrPoolClosed
	}

	name := workerName(p.cfg.namePrefix, p.submissions.Add(1))
	w.inbox <- job{name: name, work: work}
	debugLog("handed work to worker %d as %s", w.id, name)
	return nil
}

// SubmitState submits fn bound to state.
func SubmitState[S any](p *WorkerPool, fn func(S), state S) error {
	if fn == nil {
		return ErrNilWork
	}
	return p.Submit(func() { fn(state) })
}

// Idle returns the number of workers waiting for work.
func (p *WorkerPool) Idle() int {
	return p.idle.Len()
}

// Live returns the number of worker goroutines that have not exited.
func (p *WorkerPool) Live() int {
	return int(p.live.Load())
}

// Busy returns the number of workers currently running work.
func (p *WorkerPool) Busy() int {
	return int(p.busy.Load())
}

// Stats returns a snapshot of the pool counters. The fields are read
// independently and may be mutually inconsistent under load.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Live:      p.Live(),
		Idle:      p.Idle(),
		Busy:      p.Busy(),
		Spawned:   p.spawned.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// Close stops accepting work, lets busy workers finish what they are
// running and waits for every worker to exit. A timeout of 0 waits forever.
func (p *WorkerPool) Close(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed.Store(true)
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	err := waitUntil(done, timeout)
	p.cfg.logger.Debug("worker pool closed", slog.Int("live", p.Live()), slog.Any("error", err))
	return err
}

// replenish spawns one batch of workers, never exceeding the worker cap.
func (p *WorkerPool) replenish() {
	n := p.cfg.replenish
	if p.cfg.maxWorkers > 0 {
		n = min(n, p.cfg.maxWorkers-p.Live())
	}
	if n <= 0 {
		return
	}

	spawned := p.spawn(n)
	if spawned > 0 {
		p.cfg.logger.Debug("replenished idle workers",
			slog.Int("spawned", spawned),
			slog.Int("idle", p.Idle()),
			slog.Int("live", p.Live()),
		)
	}
}

// spawn starts up to n workers and queues them as idle. It holds the read
// lock so no worker is added to the errgroup once Close has begun waiting.
func (p *WorkerPool) spawn(n int) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return 0
	}

	spawned := 0
	for range n {
		live := p.live.Add(1)
		if p.cfg.maxWorkers > 0 && live > int64(p.cfg.maxWorkers) {
			p.live.Add(-1)
			break
		}

		w := &worker{
			id:    int(p.spawned.Add(1)),
			inbox: make(chan job, 1),
		}
		p.cfg.metrics.WorkerSpawned()
		p.idle.Put(w)
		p.group.Go(func() error {
			return p.runWorker(w)
		})
		spawned++
	}
	return spawned
}

func (p *WorkerPool) submitErr(err error) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	return err
}
