package transport

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// ErrRateLimited is returned when a request is rejected by a rate limiter.
var ErrRateLimited = errors.New("transport: rate limit exceeded")

// RateLimitConfig configures client-side rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the sustained rate.
	// Values below 1 are raised to 1.
	Burst int

	// WaitOnLimit makes requests wait for a token, bounded by their context.
	// Otherwise they fail immediately with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig allows 100 requests per second with a burst of 10,
// waiting for tokens.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

func (c RateLimitConfig) newLimiter() *rate.Limiter {
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), burst)
}

// RateLimiterStats is a snapshot of a limiter.
type RateLimiterStats struct {
	Limit           float64
	Burst           int
	TokensAvailable float64
}

// KeyFunc groups requests sharing one limiter.
type KeyFunc func(req *wire.Request) string

// ByOperation keys limiters by service and operation name.
func ByOperation(req *wire.Request) string {
	return req.ServiceName + "/" + req.OperationName
}

type rateLimitTransport struct {
	next Transport
	cfg  RateLimitConfig
	key  KeyFunc

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// WithRateLimit limits the whole Transport to cfg.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	return WithKeyedRateLimit(cfg, nil)
}

// WithKeyedRateLimit applies cfg separately to each key returned by key.
// A nil key shares one limiter between all requests.
func WithKeyedRateLimit(cfg RateLimitConfig, key KeyFunc) Middleware {
	return func(next Transport) Transport {
		if cfg.RequestsPerSecond <= 0 {
			return next
		}
		return &rateLimitTransport{
			next:     next,
			cfg:      cfg,
			key:      key,
			limiters: make(map[string]*rate.Limiter),
		}
	}
}

// Do implements Transport.
func (t *rateLimitTransport) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	limiter := t.limiter(req)

	if t.cfg.WaitOnLimit {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// The wait would outlive the context deadline.
			return nil, ErrRateLimited
		}
	} else if !limiter.Allow() {
		return nil, ErrRateLimited
	}

	return t.next.Do(ctx, req)
}

func (t *rateLimitTransport) limiter(req *wire.Request) *rate.Limiter {
	var key string
	if t.key != nil {
		key = t.key(req)
	}

	t.mu.RLock()
	l, ok := t.limiters[key]
	t.mu.RUnlock()
	if ok {
		return l
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.limiters[key]; ok {
		return l
	}
	l = t.cfg.newLimiter()
	t.limiters[key] = l
	return l
}

// Stats returns the limiter state for key. Use "" for an unkeyed limiter.
func (t *rateLimitTransport) Stats(key string) (RateLimiterStats, bool) {
	t.mu.RLock()
	l, ok := t.limiters[key]
	t.mu.RUnlock()
	if !ok {
		return RateLimiterStats{}, false
	}
	return RateLimiterStats{
		Limit:           float64(l.Limit()),
		Burst:           l.Burst(),
		TokensAvailable: l.Tokens(),
	}, true
}

// Unwrap returns the wrapped Transport.
func (t *rateLimitTransport) Unwrap() Transport { return t.next }
