package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/utkarsh5026/taskq/pool"
)

var errSubmit = errors.New("submission refused")

// goSubmitter runs every piece of work on a fresh goroutine and refuses
// submissions once failAfter have been accepted (never, if negative).
type goSubmitter struct {
	failAfter int
	accepted  atomic.Int32
	wg        sync.WaitGroup
}

func (s *goSubmitter) SubmitContext(ctx context.Context, work func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failAfter >= 0 && int(s.accepted.Load()) >= s.failAfter {
		return errSubmit
	}
	s.accepted.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		work()
	}()
	return nil
}

func newGoSubmitter() *goSubmitter {
	return &goSubmitter{failAfter: -1}
}

func newPool(t *testing.T, minIdle int) *pool.WorkerPool {
	t.Helper()

	p, err := pool.New(pool.WithMinIdle(minIdle))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close(5 * time.Second)
	})
	return p
}

// waitForCancel blocks until ctx ends and returns its error, the way a
// well-behaved long-running task does.
func waitForCancel(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
