package transport

import (
	"context"
	"sync"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Compile-time interface check.
var _ AsyncTransport = (*Async)(nil)

// Async adapts a Transport to an AsyncTransport. Each operation runs as one
// Executor task.
type Async struct {
	next Transport
	exec Executor
}

// NewAsync wraps t. A nil exec gets a BoundedExecutor of
// DefaultMaxConcurrency.
func NewAsync(t Transport, exec Executor) *Async {
	if exec == nil {
		exec = NewBoundedExecutor(DefaultMaxConcurrency)
	}
	return &Async{next: t, exec: exec}
}

// DoAsync implements AsyncTransport. done is called exactly once. The
// returned CancelFunc aborts the operation, or the body read that follows
// it, and must be called once the response is no longer needed.
func (a *Async) DoAsync(ctx context.Context, req *wire.Request, done Callback) CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	var once sync.Once
	finish := func(resp *wire.Response, err error) {
		once.Do(func() { done(resp, err) })
	}

	a.exec.Submit(ctx, func(ctx context.Context) {
		if err := ctx.Err(); err != nil {
			finish(nil, err)
			return
		}
		finish(a.next.Do(ctx, req))
	})

	return CancelFunc(cancel)
}

// Unwrap returns the wrapped Transport.
func (a *Async) Unwrap() Transport { return a.next }

