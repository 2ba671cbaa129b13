package retry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Table maps service names to retry policies. Lookups are case-insensitive.
// It is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{policies: make(map[string]Policy)}
}

// Set registers the policy for service.
func (t *Table) Set(service string, p Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policies[strings.ToLower(service)] = p
}

// Lookup returns the policy registered for service.
func (t *Table) Lookup(service string) (Policy, bool) {
	if t == nil {
		return Policy{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.policies[strings.ToLower(service)]
	return p, ok
}

// PolicyFor returns the policy for service, or fallback when none is set.
func (t *Table) PolicyFor(service string, fallback Policy) Policy {
	if p, ok := t.Lookup(service); ok {
		return p
	}
	return fallback
}

// Services lists the registered service names in sorted order.
func (t *Table) Services() []string {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.policies))
	for s := range t.policies {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Backoff strategy names accepted by PolicySpec.
const (
	StrategyFullJitter   = "full_jitter"
	StrategyEqualJitter  = "equal_jitter"
	StrategyExponential  = "exponential"
	StrategyLinear       = "linear"
	StrategyDecorrelated = "decorrelated"
	StrategyFixed        = "fixed"
	StrategyNone         = "none"
)

// PolicySpec is the data form of a Policy, as loaded from configuration.
// Zero fields take the DefaultPolicy values.
type PolicySpec struct {
	MaxErrorRetry      *int          `mapstructure:"max_error_retry"`
	Strategy           string        `mapstructure:"strategy"`
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	ThrottledBaseDelay time.Duration `mapstructure:"throttled_base_delay"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
	JitterFactor       float64       `mapstructure:"jitter_factor"`
	RetryOnStatus      []int         `mapstructure:"retry_on_status"`
}

// Build converts the spec into a Policy.
func (s PolicySpec) Build() (Policy, error) {
	p := DefaultPolicy()
	if s.MaxErrorRetry != nil {
		p.MaxErrorRetry = *s.MaxErrorRetry
	}

	base := orDefault(s.BaseDelay, DefaultBaseDelay)
	throttled := orDefault(s.ThrottledBaseDelay, DefaultThrottledBaseDelay)
	maxBackoff := orDefault(s.MaxBackoff, DefaultMaxBackoff)
	jitter := s.JitterFactor
	if jitter <= 0 {
		jitter = DefaultJitterFactor
	}

	switch strings.ToLower(s.Strategy) {
	case "", StrategyFullJitter:
		p.Backoff = FullJitter{Base: base, ThrottledBase: throttled, Cap: maxBackoff}
	case StrategyEqualJitter:
		p.Backoff = EqualJitter{Base: base, ThrottledBase: throttled, Cap: maxBackoff}
	case StrategyExponential:
		p.Backoff = Exponential(ExponentialConfig{
			InitialInterval: base,
			MaxInterval:     maxBackoff,
			Multiplier:      DefaultMultiplier,
			JitterFactor:    jitter,
		})
	case StrategyLinear:
		p.Backoff = FromBackOff(func() backoff.BackOff {
			return &LinearBackOff{
				InitialInterval: base,
				Increment:       base,
				MaxInterval:     maxBackoff,
				JitterFactor:    jitter,
			}
		})
	case StrategyDecorrelated:
		p.Backoff = FromBackOff(func() backoff.BackOff {
			return &DecorrelatedJitterBackOff{Base: base, Cap: maxBackoff}
		})
	case StrategyFixed:
		p.Backoff = Fixed(base)
	case StrategyNone:
		p.Backoff = None
	default:
		return Policy{}, fmt.Errorf("retry: unknown backoff strategy %q", s.Strategy)
	}

	if len(s.RetryOnStatus) > 0 {
		p.Condition = OrConditions(DefaultCondition, StatusCodeCondition(s.RetryOnStatus...))
	}

	return p, p.Validate()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
