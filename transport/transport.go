package transport

import (
	"context"
	"time"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Transport sends a wire request and returns the raw response. Any status code
// is a response, not an error; errors mean no response was received.
type Transport interface {
	Do(ctx context.Context, req *wire.Request) (*wire.Response, error)
}

// Func adapts a function to a Transport.
type Func func(ctx context.Context, req *wire.Request) (*wire.Response, error)

// Do calls f.
func (f Func) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	return f(ctx, req)
}

// CancelFunc aborts an in-flight async operation. Calling it after completion
// is a no-op.
type CancelFunc func()

// Callback receives the outcome of an async operation exactly once.
type Callback func(resp *wire.Response, err error)

// AsyncTransport sends a wire request without blocking the caller.
type AsyncTransport interface {
	DoAsync(ctx context.Context, req *wire.Request, done Callback) CancelFunc
}

// Middleware decorates a Transport.
type Middleware func(next Transport) Transport

// Chain wraps base with the middlewares. The first middleware is the
// outermost.
func Chain(base Transport, mws ...Middleware) Transport {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			base = mws[i](base)
		}
	}
	return base
}

// PoolStats is a snapshot of a transport's connection pool.
type PoolStats struct {
	// Available is the number of connections that can be handed out without
	// waiting. -1 when unbounded.
	Available int64

	// Leased is the number of connections carrying a request.
	Leased int64

	// Pending is the number of requests waiting for a connection.
	Pending int64

	// MaxIdleConns is the maximum idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost is the maximum total connections per host.
	// Zero means unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept before closing.
	IdleConnTimeout time.Duration
}

// PoolStatsReporter is implemented by transports that expose pool usage.
type PoolStatsReporter interface {
	PoolStats() PoolStats
}

// Unwrapper is implemented by decorators so pool stats can be found through
// a middleware chain.
type Unwrapper interface {
	Unwrap() Transport
}

// StatsOf walks the decorator chain of t, a Transport or AsyncTransport, and
// returns the first pool stats found.
func StatsOf(t any) (PoolStats, bool) {
	for t != nil {
		if r, ok := t.(PoolStatsReporter); ok {
			return r.PoolStats(), true
		}
		u, ok := t.(Unwrapper)
		if !ok {
			return PoolStats{}, false
		}
		t = u.Unwrap()
	}
	return PoolStats{}, false
}
