// Package transport dispatches wire requests over HTTP.
//
// A Transport sends one wire.Request and returns the raw wire.Response; it
// never interprets status codes, retries or signs. An AsyncTransport does the
// same without blocking the caller and hands back a CancelFunc that aborts the
// in-flight operation.
//
// # Quick Start
//
//	t := transport.New(
//	    transport.WithConfig(transport.LowLatencyConfig()),
//	    transport.WithServiceName("orders"),
//	)
//	resp, err := t.Do(ctx, req)
//
// # Decorators
//
// Middlewares wrap any Transport:
//
//	t := transport.Chain(transport.New(),
//	    transport.WithRateLimit(transport.DefaultRateLimitConfig()),
//	    transport.WithCircuitBreaker("orders", transport.DefaultBreakerConfig()),
//	)
//
// # Async
//
// NewAsync adapts a Transport to an AsyncTransport running on a bounded
// Executor:
//
//	async := transport.NewAsync(t, transport.NewBoundedExecutor(64))
//	cancel := async.DoAsync(ctx, req, func(resp *wire.Response, err error) { ... })
//
// # Testing
//
// MockTransport stubs responses and records requests:
//
//	mt := transport.NewMockTransport().
//	    Enqueue(transport.Reply{Status: 503}).
//	    StubResponse(200, `{"ok":true}`)
package transport
