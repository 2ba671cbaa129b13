package metrics

import (
	"sync"
	"time"
)

// TimingInfo is the single start/end pair spanning a whole call.
// It can be ended once; later EndTiming calls are ignored.
type TimingInfo struct {
	mu    sync.Mutex
	now   func() time.Time
	start time.Time
	end   time.Time
	ended bool
}

func newTimingInfo(now func() time.Time) *TimingInfo {
	return &TimingInfo{now: now, start: now()}
}

// EndTiming closes the timing pair. It returns true only for the call that
// actually ended it.
func (t *TimingInfo) EndTiming() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return false
	}
	t.end = t.now()
	t.ended = true
	return true
}

// Ended reports whether EndTiming has run.
func (t *TimingInfo) Ended() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// StartTime returns when the call started.
func (t *TimingInfo) StartTime() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.start
}

// Duration returns the elapsed time, or zero while the call is still open.
func (t *TimingInfo) Duration() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		return 0
	}
	return t.end.Sub(t.start)
}
