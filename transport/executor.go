package transport

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency bounds a BoundedExecutor created with a
// non-positive size.
const DefaultMaxConcurrency = 64

// Executor runs tasks, usually off the caller's goroutine. Every submitted task runs
// exactly once; when ctx ends before the task gets a slot it still runs, with
// the ended ctx, so completion callbacks are never lost.
type Executor interface {
	Submit(ctx context.Context, task func(ctx context.Context))
}

// BoundedExecutor runs at most n tasks at a time.
type BoundedExecutor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewBoundedExecutor creates an executor running at most n tasks at once.
func NewBoundedExecutor(n int64) *BoundedExecutor {
	if n <= 0 {
		n = DefaultMaxConcurrency
	}
	return &BoundedExecutor{sem: semaphore.NewWeighted(n)}
}

// Submit implements Executor. It never blocks.
func (e *BoundedExecutor) Submit(ctx context.Context, task func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.sem.Acquire(ctx, 1); err != nil {
			task(ctx)
			return
		}
		defer e.sem.Release(1)
		task(ctx)
	}()
}

// Wait blocks until every submitted task has returned.
func (e *BoundedExecutor) Wait() {
	e.wg.Wait()
}
