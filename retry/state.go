package retry

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// State tracks the retries of a single call. It is owned by the attempt loop
// and never shared between calls.
type State struct {
	// Attempt is the number of retries made so far.
	Attempt int

	LastErr    error
	LastStatus int

	// LastDelay is the most recent backoff; TotalDelay is their sum.
	LastDelay  time.Duration
	TotalDelay time.Duration

	// CapacityAcquired is the retry capacity held by the call.
	CapacityAcquired int

	bo backoff.BackOff
}

// Fail records the failure of the current attempt.
func (s *State) Fail(err error) {
	s.LastErr = err
	s.LastStatus = StatusCode(err)
}

// Advance records a backoff and moves to the next attempt.
func (s *State) Advance(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	s.LastDelay = delay
	s.TotalDelay += delay
	s.Attempt++
}

// Context builds the retry decision input for the current attempt.
func (s *State) Context(c Context) Context {
	c.Attempt = s.Attempt
	c.State = s
	if c.Err == nil {
		c.Err = s.LastErr
	}
	return c
}
