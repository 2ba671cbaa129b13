package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// NewRedisStore creates a SharedDataStore backed by Redis, so every process
// talking to a service shares one breaker state.
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	cfg := transport.DistributedBreakerConfig(transport.NewRedisStore(rdb))
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker matches gobreaker.CircuitBreaker for wire responses.
type CircuitBreaker interface {
	Execute(req func() (*wire.Response, error)) (*wire.Response, error)
}

// BreakerClassifier reports whether an attempt counts as a failure toward
// tripping the breaker.
type BreakerClassifier func(resp *wire.Response, err error) bool

// BreakerConfig configures the circuit breaker decorator.
//
// States:
//   - Closed: requests flow, failures are counted.
//   - Open: requests are rejected with gobreaker.ErrOpenState.
//   - Half-Open: MaxRequests probes decide whether to close again.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	// If 0, one probe is allowed.
	MaxRequests uint32

	// Interval clears the counts while closed. If 0, counts are never cleared.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the minimum request count before the breaker may trip.
	// Default: 20
	FailureThreshold uint32

	// FailureRatio trips the breaker once failures reach this share.
	// Default: 0.5
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after this many failures in a
	// row. 0 disables the rule.
	// Default: 5
	ConsecutiveFailures uint32

	// Store shares breaker state between processes. Nil keeps it local.
	Store gobreaker.SharedDataStore

	// Classifier decides which attempts are failures.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	// Logger receives state transitions at warn level.
	Logger zerolog.Logger

	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a local breaker that fails fast and recovers
// fast.
//
//   - Interval: 10s
//   - Timeout: 10s
//   - FailureThreshold: 20
//   - FailureRatio: 0.5
//   - ConsecutiveFailures: 5
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
		Logger:              zerolog.Nop(),
	}
}

// DistributedBreakerConfig returns DefaultBreakerConfig sharing state through
// store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts 5xx responses and network errors as
// failures. Throttling (429) is left to the retry policy and cancellation by
// the caller never counts.
func DefaultBreakerClassifier(resp *wire.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrRateLimited) {
			return false
		}
		return isNetworkError(err)
	}
	return resp != nil && resp.StatusCode >= 500
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// errSyntheticFailure tells the breaker that a response counts as a failure.
// It never reaches the caller, who gets the response instead.
var errSyntheticFailure = errors.New("synthetic failure")

// ignoredError carries an error the classifier does not count as a failure.
type ignoredError struct{ err error }

func (e *ignoredError) Error() string { return e.err.Error() }
func (e *ignoredError) Unwrap() error { return e.err }

func isSuccessful(err error) bool {
	var ignored *ignoredError
	return err == nil || errors.As(err, &ignored)
}

type breakerTransport struct {
	breaker    CircuitBreaker
	next       Transport
	classifier BreakerClassifier
	name       string
}

// WithCircuitBreaker guards a Transport with a circuit breaker named name.
// Rejected requests fail with an error wrapping gobreaker.ErrOpenState or
// gobreaker.ErrTooManyRequests.
func WithCircuitBreaker(name string, cfg BreakerConfig) Middleware {
	return func(next Transport) Transport {
		return newBreakerTransport(next, name, cfg)
	}
}

func newBreakerTransport(next Transport, name string, cfg BreakerConfig) *breakerTransport {
	if name == "" {
		name = "cloudsdk"
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultBreakerClassifier
	}

	st := gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  readyToTrip(cfg),
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn().
				Str("breaker", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker
	if cfg.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[*wire.Response](cfg.Store, st)
		if err != nil {
			// Keep process-level protection when the store is unusable.
			cfg.Logger.Error().Err(err).Str("breaker", name).Msg("distributed circuit breaker unavailable, using local state")
			cb = gobreaker.NewCircuitBreaker[*wire.Response](st)
		} else {
			cb = dcb
		}
	} else {
		cb = gobreaker.NewCircuitBreaker[*wire.Response](st)
	}

	return &breakerTransport{
		breaker:    cb,
		next:       next,
		classifier: cfg.Classifier,
		name:       name,
	}
}

func readyToTrip(cfg BreakerConfig) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
			return true
		}
		if cfg.FailureThreshold > 0 && counts.Requests < cfg.FailureThreshold {
			return false
		}
		if cfg.FailureRatio > 0 && counts.Requests > 0 {
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		}
		return false
	}
}

// Do implements Transport.
func (t *breakerTransport) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	resp, err := t.breaker.Execute(func() (*wire.Response, error) {
		resp, err := t.next.Do(ctx, req)
		failed := t.classifier(resp, err)
		switch {
		case failed && err == nil:
			return resp, errSyntheticFailure
		case !failed && err != nil:
			return resp, &ignoredError{err: err}
		}
		return resp, err
	})
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, errSyntheticFailure) && resp != nil {
		return resp, nil
	}
	var ignored *ignoredError
	if errors.As(err, &ignored) {
		return resp, ignored.err
	}
	if isCircuitOpen(err) {
		return nil, fmt.Errorf("transport: circuit %s: %w", t.name, err)
	}
	return nil, err
}

// Unwrap returns the wrapped Transport.
func (t *breakerTransport) Unwrap() Transport { return t.next }
