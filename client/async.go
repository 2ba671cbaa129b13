package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/transport"
	"github.com/kroma-labs/cloudsdk-go/wire"
)

// ErrPending is returned by Future.Result while the call is running.
var ErrPending = errors.New("client: call still running")

// AsyncHandler executes calls through the async transport. Continuations
// run on the executor; no goroutine is held while a backoff is pending.
type AsyncHandler struct {
	*Handler
}

// NewAsyncHandler creates an async handler from validated parameters.
func NewAsyncHandler(p *HandlerParams) *AsyncHandler {
	return &AsyncHandler{Handler: NewHandler(p)}
}

// Future is the pending result of ExecuteAsync.
type Future[Out any] struct {
	done   chan struct{}
	once   sync.Once
	value  Out
	err    error
	cancel func()
}

func newFuture[Out any]() *Future[Out] {
	return &Future[Out]{
		done:   make(chan struct{}),
		cancel: func() {},
	}
}

// Done is closed when the call has finished and its metrics are reported.
func (f *Future[Out]) Done() <-chan struct{} { return f.done }

// Await blocks until the call finishes or ctx ends. An ended ctx does not
// cancel the call; use Cancel for that.
func (f *Future[Out]) Await(ctx context.Context) (Out, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero Out
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrPending.
func (f *Future[Out]) Result() (Out, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero Out
		return zero, ErrPending
	}
}

// Cancel aborts the call. The in-flight attempt or backoff is interrupted
// and the call fails with KindAborted. Cancel after completion does nothing.
func (f *Future[Out]) Cancel() { f.cancel() }

func (f *Future[Out]) complete(value Out, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// ExecuteAsync starts one call and returns its Future. Marshalling runs on
// the caller's goroutine; attempts are chained through the async transport
// and the executor with the same retry, redirect and metrics behaviour as
// Execute.
func ExecuteAsync[In, Out any](ctx context.Context, h *AsyncHandler, p ExecutionParams[In, Out]) *Future[Out] {
	f := newFuture[Out]()
	c, err := newCall(ctx, h.Handler, p)
	if err != nil {
		var zero Out
		f.complete(zero, err)
		return f
	}
	f.cancel = c.tracker.Abort

	if o, ok := c.marshal(); !ok {
		f.complete(c.finish(o))
		return f
	}
	c.attemptAsync(f)
	return f
}

// attemptAsync dispatches one attempt. The transport callback hands the
// classify step to the executor.
func (c *call[In, Out]) attemptAsync(f *Future[Out]) {
	req, o, ok := c.prepare()
	if !ok {
		c.continueAsync(f, o)
		return
	}

	rec := c.ec.Recorder
	async := c.h.params.asyncTransport
	exec := c.h.params.executor
	stop := &attemptStop{}

	c.tracker.armAttempt(c.requestTimeout())
	rec.StartEvent(metrics.HttpRequestTime)
	stop.set(async.DoAsync(c.ctx, req, func(resp *wire.Response, err error) {
		rec.EndEvent(metrics.HttpRequestTime)
		c.recordPoolStats(async)
		exec.Submit(c.ctx, func(context.Context) {
			o := c.classify(req, resp, err)
			stop.classified()
			c.continueAsync(f, o)
		})
	}))
}

// attemptStop calls an attempt's CancelFunc once the attempt is classified
// and DoAsync has returned, in either order. Neither side waits for the
// other, so transports and executors may complete inline.
type attemptStop struct {
	mu   sync.Mutex
	stop transport.CancelFunc
	done bool
}

func (s *attemptStop) set(stop transport.CancelFunc) {
	if stop == nil {
		return
	}
	s.mu.Lock()
	if !s.done {
		s.stop = stop
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	stop()
}

func (s *attemptStop) classified() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.done = true
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *call[In, Out]) continueAsync(f *Future[Out], o attemptOutcome[Out]) {
	switch o.kind {
	case outcomeRetry:
		c.scheduleRetry(f, o.delay)
	case outcomeRedirect:
		c.redirect(o.location)
		c.attemptAsync(f)
	default:
		f.complete(c.finish(o))
	}
}

// scheduleRetry starts the next attempt after delay, or finishes the call
// as aborted if its context ends first.
func (c *call[In, Out]) scheduleRetry(f *Future[Out], delay time.Duration) {
	rec := c.ec.Recorder
	rec.StartEvent(metrics.RetryPauseTime)

	var claimed atomic.Bool
	stopWatch := context.AfterFunc(c.ctx, func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		rec.EndEvent(metrics.RetryPauseTime)
		f.complete(c.finish(c.abortOutcome()))
	})

	time.AfterFunc(delay, func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		stopWatch()
		rec.EndEvent(metrics.RetryPauseTime)
		c.state.Advance(delay)
		c.h.params.executor.Submit(c.ctx, func(context.Context) {
			c.attemptAsync(f)
		})
	})
}
