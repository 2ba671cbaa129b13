package retry

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Ensure our backoff strategies implement the backoff.BackOff interface.
var (
	_ backoff.BackOff = (*LinearBackOff)(nil)
	_ backoff.BackOff = (*DecorrelatedJitterBackOff)(nil)
	_ backoff.BackOff = (*ConstantBackOffWithJitter)(nil)
)

// LinearBackOff increases the interval by a fixed increment plus jitter.
//
// Interval calculation: initial + (attempt × increment) ± jitter
//
// Example with Initial=100ms, Increment=100ms, JitterFactor=0:
//
//	Retry 1: 100ms
//	Retry 2: 200ms
//	Retry 3: 300ms
type LinearBackOff struct {
	// InitialInterval is the first backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// Increment is added to each subsequent interval.
	// Default: 100ms
	Increment time.Duration

	// MaxInterval caps the interval.
	// Default: 20s
	MaxInterval time.Duration

	// JitterFactor adds randomization (0.0-1.0).
	// Default: 0.5
	JitterFactor float64

	currentInterval time.Duration
	attempt         int
}

// NewLinearBackOff creates a LinearBackOff with defaults.
func NewLinearBackOff() *LinearBackOff {
	return &LinearBackOff{
		InitialInterval: DefaultBaseDelay,
		Increment:       DefaultBaseDelay,
		MaxInterval:     DefaultMaxBackoff,
		JitterFactor:    DefaultJitterFactor,
	}
}

// Reset resets the backoff to initial state.
func (b *LinearBackOff) Reset() {
	b.currentInterval = b.InitialInterval
	b.attempt = 0
}

// NextBackOff returns the next interval with jitter applied.
func (b *LinearBackOff) NextBackOff() time.Duration {
	if b.currentInterval == 0 {
		b.currentInterval = b.InitialInterval
	}

	interval := applyJitter(b.currentInterval, b.JitterFactor)

	b.attempt++
	b.currentInterval = b.InitialInterval + time.Duration(b.attempt)*b.Increment
	if b.MaxInterval > 0 && b.currentInterval > b.MaxInterval {
		b.currentInterval = b.MaxInterval
	}

	return interval
}

// DecorrelatedJitterBackOff picks each interval at random between Base and
// three times the previous interval, capped at Cap.
//
// Formula: sleep = random_between(base, min(cap, previous_sleep × 3))
//
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type DecorrelatedJitterBackOff struct {
	// Base is the minimum interval.
	// Default: 100ms
	Base time.Duration

	// Cap is the maximum interval.
	// Default: 20s
	Cap time.Duration

	sleep time.Duration
}

// NewDecorrelatedJitterBackOff creates a DecorrelatedJitterBackOff with defaults.
func NewDecorrelatedJitterBackOff() *DecorrelatedJitterBackOff {
	return &DecorrelatedJitterBackOff{
		Base: DefaultBaseDelay,
		Cap:  DefaultMaxBackoff,
	}
}

// Reset resets the backoff to initial state.
func (b *DecorrelatedJitterBackOff) Reset() {
	b.sleep = b.Base
}

// NextBackOff returns the next interval using decorrelated jitter.
func (b *DecorrelatedJitterBackOff) NextBackOff() time.Duration {
	if b.sleep == 0 {
		b.sleep = b.Base
	}

	upperBound := b.sleep * 3
	if upperBound > b.Cap {
		upperBound = b.Cap
	}

	b.sleep = randomBetween(b.Base, upperBound)
	return b.sleep
}

// ConstantBackOffWithJitter waits a fixed interval with randomization.
type ConstantBackOffWithJitter struct {
	// Interval is the base interval.
	// Default: 1s
	Interval time.Duration

	// JitterFactor adds randomization (0.0-1.0).
	// Default: 0.5
	JitterFactor float64
}

// NewConstantBackOffWithJitter creates a ConstantBackOffWithJitter with defaults.
func NewConstantBackOffWithJitter() *ConstantBackOffWithJitter {
	return &ConstantBackOffWithJitter{
		Interval:     time.Second,
		JitterFactor: DefaultJitterFactor,
	}
}

// Reset is a no-op for constant backoff.
func (b *ConstantBackOffWithJitter) Reset() {}

// NextBackOff returns the interval with jitter applied.
func (b *ConstantBackOffWithJitter) NextBackOff() time.Duration {
	return applyJitter(b.Interval, b.JitterFactor)
}

// ExponentialConfig configures NewExponentialBackOff.
type ExponentialConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NewExponentialBackOff creates a cenkalti/backoff ExponentialBackOff,
// ensuring jitter is always applied.
func NewExponentialBackOff(cfg ExponentialConfig) *backoff.ExponentialBackOff {
	jitterFactor := cfg.JitterFactor
	if jitterFactor <= 0 {
		jitterFactor = DefaultJitterFactor
	}
	multiplier := cfg.Multiplier
	if multiplier <= 1 {
		multiplier = DefaultMultiplier
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		RandomizationFactor: jitterFactor,
		Multiplier:          multiplier,
		MaxInterval:         cfg.MaxInterval,
	}
	b.Reset()
	return b
}

// applyJitter applies randomization to an interval.
// JitterFactor of 0.5 means the result will be in range [interval*0.5, interval*1.5].
func applyJitter(interval time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return interval
	}
	if jitterFactor > 1 {
		jitterFactor = 1
	}

	delta := float64(interval) * jitterFactor
	minInterval := float64(interval) - delta
	maxInterval := float64(interval) + delta

	//nolint:gosec // intentional weak rand for jitter (not cryptographic)
	return time.Duration(minInterval + rand.Float64()*(maxInterval-minInterval))
}

// randomBetween returns a random duration in [minDur, maxDur).
//
//nolint:gosec // intentional weak rand for jitter (not cryptographic)
func randomBetween(minDur, maxDur time.Duration) time.Duration {
	if minDur >= maxDur {
		return minDur
	}
	return minDur + time.Duration(rand.Int64N(int64(maxDur-minDur)))
}
