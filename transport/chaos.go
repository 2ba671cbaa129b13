package transport

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// ErrChaosInjected is wrapped by the network errors WithChaos simulates.
var ErrChaosInjected = errors.New("chaos: simulated network error")

// ChaosConfig injects faults into requests to exercise retries, throttling
// and timeouts in development and tests.
//
// Example:
//
//	t := transport.Chain(transport.New(),
//	    transport.WithChaos(transport.ChaosConfig{
//	        Latency:      200 * time.Millisecond,
//	        ErrorRate:    0.1,
//	        ThrottleRate: 0.05,
//	    }),
//	)
type ChaosConfig struct {
	// Latency is added to every request.
	// Default: 0
	Latency time.Duration

	// LatencyJitter adds a random delay in [0, LatencyJitter) on top of Latency.
	// Default: 0
	LatencyJitter time.Duration

	// ErrorRate is the probability (0.0-1.0) of failing with a simulated
	// connection error.
	// Default: 0.0
	ErrorRate float64

	// TimeoutRate is the probability (0.0-1.0) of holding the request until
	// its context ends.
	// Default: 0.0
	TimeoutRate float64

	// ThrottleRate is the probability (0.0-1.0) of answering with a
	// throttling error response instead of sending the request.
	// Default: 0.0
	ThrottleRate float64
}

// Delay returns the latency to add, jitter included.
func (c ChaosConfig) Delay() time.Duration {
	d := c.Latency
	if c.LatencyJitter > 0 {
		d += rand.N(c.LatencyJitter) //nolint:gosec
	}
	return d
}

// Enabled reports whether any fault is configured.
func (c ChaosConfig) Enabled() bool {
	return c.Latency > 0 || c.LatencyJitter > 0 || c.ErrorRate > 0 || c.TimeoutRate > 0 || c.ThrottleRate > 0
}

func chance(rate float64) bool {
	return rate > 0 && rand.Float64() < rate //nolint:gosec
}

type chaosTransport struct {
	next Transport
	cfg  ChaosConfig
}

// WithChaos injects the faults in cfg before forwarding to the next
// Transport. A config without faults returns next unchanged.
func WithChaos(cfg ChaosConfig) Middleware {
	return func(next Transport) Transport {
		if !cfg.Enabled() {
			return next
		}
		return &chaosTransport{next: next, cfg: cfg}
	}
}

// Do implements Transport.
func (t *chaosTransport) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if chance(t.cfg.TimeoutRate) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if chance(t.cfg.ErrorRate) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ErrChaosInjected}
	}

	if d := t.cfg.Delay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if chance(t.cfg.ThrottleRate) {
		return throttledResponse(req), nil
	}
	return t.next.Do(ctx, req)
}

// Unwrap returns the decorated Transport.
func (t *chaosTransport) Unwrap() Transport { return t.next }

func throttledResponse(req *wire.Request) *wire.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &wire.Response{
		StatusCode: http.StatusTooManyRequests,
		StatusText: http.StatusText(http.StatusTooManyRequests),
		Headers:    h,
		Body:       io.NopCloser(strings.NewReader(`{"__type":"ThrottlingException","message":"chaos: simulated throttling"}`)),
		Request:    req,
	}
}
