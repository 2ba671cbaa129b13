package client

import (
	"context"
	"sync"
	"time"
)

// AbortTracker interrupts a call. It is bound to exactly one call; the
// handler arms it with the configured timeouts, and callers may fire it with
// Abort. Firing cancels the call's context, which aborts the in-flight
// attempt or backoff. An aborted call is never retried.
type AbortTracker struct {
	mu      sync.Mutex
	bound   bool
	cancel  context.CancelCauseFunc
	cause   error
	call    *time.Timer
	attempt *time.Timer
}

// NewAbortTracker returns an unbound tracker. Pass it in
// RequestConfig.AbortTracker to abort the call from outside.
func NewAbortTracker() *AbortTracker {
	return &AbortTracker{}
}

// Abort fires the tracker. Aborting before the call starts makes the call
// fail as soon as it is bound.
func (t *AbortTracker) Abort() {
	t.fire(context.Canceled)
}

// Aborted reports whether the tracker fired.
func (t *AbortTracker) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause != nil
}

// Cause returns the reason the tracker fired, or nil.
func (t *AbortTracker) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// bind derives the call context from parent. A tracker binds once.
func (t *AbortTracker) bind(parent context.Context) (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bound {
		return nil, ErrAbortTrackerInUse
	}
	t.bound = true
	ctx, cancel := context.WithCancelCause(parent)
	t.cancel = cancel
	if t.cause != nil {
		cancel(t.cause)
	}
	return ctx, nil
}

// armCall fires the tracker once d has passed. Non-positive d is ignored.
func (t *AbortTracker) armCall(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.call = time.AfterFunc(d, func() { t.fire(ErrClientExecutionTimeout) })
}

// armAttempt fires the tracker once d has passed, unless disarmAttempt is
// called first.
func (t *AbortTracker) armAttempt(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt != nil {
		t.attempt.Stop()
	}
	t.attempt = time.AfterFunc(d, func() { t.fire(ErrRequestTimeout) })
}

func (t *AbortTracker) disarmAttempt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt != nil {
		t.attempt.Stop()
		t.attempt = nil
	}
}

// release stops the timers and frees the call context.
func (t *AbortTracker) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.call != nil {
		t.call.Stop()
	}
	if t.attempt != nil {
		t.attempt.Stop()
	}
	if t.cancel != nil {
		t.cancel(context.Canceled)
	}
}

// fire records the first cause and cancels the call.
func (t *AbortTracker) fire(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cause != nil {
		return
	}
	t.cause = cause
	if t.cancel != nil {
		t.cancel(cause)
	}
}
