package pool

import (
	"context"
	"log/slog"
	"runtime/pprof"
	"time"

	"github.com/utkarsh5026/taskq/internal/cpu"
)

type job struct {
	name string
	work func()
}

type worker struct {
	id    int
	inbox chan job
}

// runWorker is the loop of a single worker: wait for work, run it, go back
// on the idle queue. A worker never dies because of the work it runs; it
// exits only when the pool closes, after running any work already handed to it.
func (p *WorkerPool) runWorker(w *worker) error {
	defer func() {
		p.live.Add(-1)
		p.cfg.metrics.WorkerExited()
		debugLog("worker %d exited", w.id)
	}()

	if p.cfg.affinity {
		release, err := cpu.Pin(w.id - 1)
		defer release()
		if err != nil {
			p.cfg.logger.Warn("failed to pin worker to core",
				slog.Int("worker_id", w.id),
				slog.Any("error", err),
			)
		}
	}

	for {
		select {
		case j := <-w.inbox:
			p.execute(w, j)
			p.idle.Put(w)

		case <-p.ctx.Done():
			select {
			case j := <-w.inbox:
				p.execute(w, j)
			default:
			}
			return nil
		}
	}
}

// execute runs one piece of work under the worker's pprof label.
func (p *WorkerPool) execute(w *worker, j job) {
	p.busy.Add(1)
	p.cfg.metrics.WorkStarted()
	start := time.Now()

	var err error
	pprof.Do(p.ctx, pprof.Labels("worker", j.name), func(context.Context) {
		err = runRecovered(j.work)
	})

	elapsed := time.Since(start)
	p.busy.Add(-1)
	p.completed.Add(1)
	if err != nil {
		p.panicked.Add(1)
		p.cfg.logger.Error("work panicked",
			slog.String("worker", j.name),
			slog.Int("worker_id", w.id),
			slog.Any("error", err),
		)
	}
	p.cfg.metrics.WorkFinished(elapsed, err != nil)
}
