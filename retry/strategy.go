package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Stop is returned by a Strategy that refuses any further attempt.
const Stop = backoff.Stop

// Strategy computes the delay before the next attempt.
type Strategy interface {
	Delay(c Context) time.Duration
}

// StrategyFunc adapts a function to a Strategy.
type StrategyFunc func(c Context) time.Duration

// Delay calls f.
func (f StrategyFunc) Delay(c Context) time.Duration { return f(c) }

// FullJitter waits a random duration in [0, min(Cap, base × 2^attempt)).
// Throttling failures use ThrottledBase instead of Base.
type FullJitter struct {
	Base          time.Duration
	ThrottledBase time.Duration
	Cap           time.Duration
}

// Delay implements Strategy.
func (s FullJitter) Delay(c Context) time.Duration {
	ceil := exponentialCeiling(s.base(c), s.Cap, c.Attempt)
	if ceil <= 0 {
		return 0
	}
	return randomBetween(0, ceil)
}

func (s FullJitter) base(c Context) time.Duration {
	if s.ThrottledBase > 0 && IsThrottling(c.Err) {
		return s.ThrottledBase
	}
	return s.Base
}

// EqualJitter waits half the exponential ceiling plus a random share of the
// other half.
type EqualJitter struct {
	Base          time.Duration
	ThrottledBase time.Duration
	Cap           time.Duration
}

// Delay implements Strategy.
func (s EqualJitter) Delay(c Context) time.Duration {
	base := s.Base
	if s.ThrottledBase > 0 && IsThrottling(c.Err) {
		base = s.ThrottledBase
	}
	ceil := exponentialCeiling(base, s.Cap, c.Attempt)
	half := ceil / 2
	return half + randomBetween(0, half)
}

// Fixed waits the same duration before every retry.
type Fixed time.Duration

// Delay implements Strategy.
func (s Fixed) Delay(Context) time.Duration { return time.Duration(s) }

// None retries immediately.
var None Strategy = Fixed(0)

// FromBackOff adapts a cenkalti/backoff BackOff. newBackOff is called once per
// call, on its first retry; the instance lives in the call's State so its
// progression is never shared between calls. Without a State a fresh BackOff
// is advanced to the current attempt.
func FromBackOff(newBackOff func() backoff.BackOff) Strategy {
	return StrategyFunc(func(c Context) time.Duration {
		if c.State == nil {
			b := newBackOff()
			b.Reset()
			d := b.NextBackOff()
			for i := 0; i < c.Attempt && d != backoff.Stop; i++ {
				d = b.NextBackOff()
			}
			return d
		}
		if c.State.bo == nil {
			c.State.bo = newBackOff()
			c.State.bo.Reset()
		}
		return c.State.bo.NextBackOff()
	})
}

// Exponential backs off exponentially through backoff.ExponentialBackOff.
func Exponential(cfg ExponentialConfig) Strategy {
	return FromBackOff(func() backoff.BackOff {
		return NewExponentialBackOff(cfg)
	})
}

// exponentialCeiling returns min(capDelay, base × 2^attempt) without overflow.
func exponentialCeiling(base, capDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if capDelay > 0 && d >= capDelay {
			break
		}
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	if capDelay > 0 && d > capDelay {
		return capDelay
	}
	return d
}
