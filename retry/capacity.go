package retry

import "sync"

// Retry capacity constants.
const (
	// ThrottledRetryCost is the capacity a non-throttling retry consumes.
	ThrottledRetryCost = 5

	// ThrottledRetries is how many such retries a full bucket allows.
	ThrottledRetries = 100

	// DefaultRetryCapacity is the size of a client's bucket.
	DefaultRetryCapacity = ThrottledRetryCost * ThrottledRetries

	// NoRetryIncrement is returned to the bucket by a call that succeeded
	// without consuming capacity.
	NoRetryIncrement = 1
)

// Capacity is a client-wide token bucket limiting retries while a service is
// failing. It is safe for concurrent use.
type Capacity struct {
	mu        sync.Mutex
	max       int
	available int
	disabled  bool
}

// NewCapacity returns a bucket holding size tokens. A negative size disables
// the bucket: every Acquire succeeds.
func NewCapacity(size int) *Capacity {
	if size < 0 {
		return &Capacity{disabled: true}
	}
	return &Capacity{max: size, available: size}
}

// Enabled reports whether the bucket limits retries.
func (c *Capacity) Enabled() bool {
	return c != nil && !c.disabled
}

// Acquire takes n tokens. It returns false, taking nothing, when fewer than n
// are available.
func (c *Capacity) Acquire(n int) bool {
	if !c.Enabled() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.available < n {
		return false
	}
	c.available -= n
	return true
}

// Release returns n tokens, never exceeding the bucket size.
func (c *Capacity) Release(n int) {
	if !c.Enabled() || n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available += n
	if c.available > c.max {
		c.available = c.max
	}
}

// Available returns the current token count, or -1 when disabled.
func (c *Capacity) Available() int {
	if !c.Enabled() {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// Consumed returns how many tokens are currently taken.
func (c *Capacity) Consumed() int {
	if !c.Enabled() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max - c.available
}
