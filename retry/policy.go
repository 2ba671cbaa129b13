package retry

import (
	"errors"
	"fmt"
	"time"
)

// Default values for the predefined policies.
const (
	// DefaultMaxErrorRetry is the default number of retries after the first attempt.
	DefaultMaxErrorRetry = 3

	// DefaultBaseDelay is the base backoff for non-throttling failures.
	DefaultBaseDelay = 100 * time.Millisecond

	// DefaultThrottledBaseDelay is the base backoff for throttling failures.
	DefaultThrottledBaseDelay = 500 * time.Millisecond

	// DefaultMaxBackoff caps any single backoff.
	DefaultMaxBackoff = 20 * time.Second

	// DefaultMultiplier is the growth factor for exponential backoff.
	DefaultMultiplier = 2.0

	// DefaultJitterFactor is the default randomization factor.
	DefaultJitterFactor = 0.5

	// DynamoDBMaxErrorRetry is the retry count of DynamoDBPolicy.
	DynamoDBMaxErrorRetry = 10

	// DynamoDBBaseDelay is the base backoff of DynamoDBPolicy.
	DynamoDBBaseDelay = 25 * time.Millisecond
)

// Policy decides retries for one client or service.
//
// Example:
//
//	policy := retry.DefaultPolicy()
//	policy.MaxErrorRetry = 5
//	policy.Backoff = retry.Fixed(200 * time.Millisecond)
type Policy struct {
	// Condition decides whether a failure is retryable.
	// Default: DefaultCondition
	Condition Condition

	// Backoff computes the delay before each retry.
	// Default: FullJitter with DefaultBaseDelay
	Backoff Strategy

	// MaxErrorRetry is the maximum number of retries after the first attempt.
	// 0 disables retries.
	MaxErrorRetry int

	// HonorMaxErrorRetryInClientConfig lets a client-level max retry count
	// override MaxErrorRetry.
	HonorMaxErrorRetryInClientConfig bool
}

// DefaultPolicy returns the standard policy.
//
// Configuration:
//   - 3 retries
//   - full jitter backoff from 100ms, 500ms when throttled, capped at 20s
//   - DefaultCondition
func DefaultPolicy() Policy {
	return Policy{
		Condition: DefaultCondition,
		Backoff: FullJitter{
			Base:          DefaultBaseDelay,
			ThrottledBase: DefaultThrottledBaseDelay,
			Cap:           DefaultMaxBackoff,
		},
		MaxErrorRetry:                    DefaultMaxErrorRetry,
		HonorMaxErrorRetryInClientConfig: true,
	}
}

// DynamoDBPolicy returns the policy for services with cheap, frequently
// throttled requests.
//
// Configuration:
//   - 10 retries
//   - full jitter backoff from 25ms, 500ms when throttled, capped at 20s
func DynamoDBPolicy() Policy {
	return Policy{
		Condition: DefaultCondition,
		Backoff: FullJitter{
			Base:          DynamoDBBaseDelay,
			ThrottledBase: DefaultThrottledBaseDelay,
			Cap:           DefaultMaxBackoff,
		},
		MaxErrorRetry:                    DynamoDBMaxErrorRetry,
		HonorMaxErrorRetryInClientConfig: true,
	}
}

// NoRetryPolicy returns a policy that never retries.
func NoRetryPolicy() Policy {
	return Policy{
		Condition:     NeverRetry,
		Backoff:       None,
		MaxErrorRetry: 0,
	}
}

// IsEnabled returns true if retries are enabled.
func (p Policy) IsEnabled() bool {
	return p.MaxErrorRetry > 0
}

// WithMaxErrorRetry returns a copy of p limited to n retries.
func (p Policy) WithMaxErrorRetry(n int) Policy {
	p.MaxErrorRetry = n
	return p
}

// Resolve applies a client-level retry limit when the policy honours it.
// A negative clientMax means the client did not set one.
func (p Policy) Resolve(clientMax int) Policy {
	if p.HonorMaxErrorRetryInClientConfig && clientMax >= 0 {
		p.MaxErrorRetry = clientMax
	}
	return p
}

// Validate reports configuration errors.
func (p Policy) Validate() error {
	var errs []error
	if p.Condition == nil {
		errs = append(errs, errors.New("retry: policy condition is nil"))
	}
	if p.Backoff == nil {
		errs = append(errs, errors.New("retry: policy backoff is nil"))
	}
	if p.MaxErrorRetry < 0 {
		errs = append(errs, fmt.Errorf("retry: max error retry %d is negative", p.MaxErrorRetry))
	}
	return errors.Join(errs...)
}

// ShouldRetry reports whether the failed attempt described by c is retried.
// Aborted calls, requests with non-rewindable bodies and calls that used up
// their retries are never retried.
func (p Policy) ShouldRetry(c Context) bool {
	if c.Aborted || c.Err == nil {
		return false
	}
	if c.Attempt >= p.MaxErrorRetry {
		return false
	}
	if c.Request != nil && !c.Request.Rewindable() {
		return false
	}
	cond := p.Condition
	if cond == nil {
		cond = DefaultCondition
	}
	return cond.ShouldRetry(c)
}

// Delay returns the pause before the next attempt, or Stop.
func (p Policy) Delay(c Context) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	d := p.Backoff.Delay(c)
	if d < 0 && d != Stop {
		return 0
	}
	return d
}

// NeedsCredentialRefresh reports whether credentials must be re-resolved
// before the next attempt.
func (p Policy) NeedsCredentialRefresh(c Context) bool {
	return IsClockSkew(c.Err) || IsExpiredToken(c.Err)
}
