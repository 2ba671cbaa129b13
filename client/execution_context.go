package client

import (
	"sync"

	"github.com/kroma-labs/cloudsdk-go/auth"
	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/retry"
)

// ExecutionContext is the state of one call. It is created by the handler
// for every call and never reused.
type ExecutionContext struct {
	// Recorder collects the call's timings, counters and properties.
	Recorder *metrics.Recorder

	// Collector receives Recorder when the call ends.
	Collector metrics.Collector

	// Credentials resolves credentials, timed under
	// metrics.CredentialsRequestTime.
	Credentials *auth.TimedProvider

	Signer auth.SignerProvider
	Policy retry.Policy

	// Hooks are the client-level hooks followed by the request hooks.
	Hooks []Hook

	mu    sync.Mutex
	abort *AbortTracker
}

// newExecutionContext applies the collector precedence and assembles the
// per-call state.
func (h *Handler) newExecutionContext(cfg RequestConfig) *ExecutionContext {
	p := h.params
	collector := metrics.Select(cfg.MetricCollector, p.collector, p.defaultCollector)

	var rec *metrics.Recorder
	if collector.Enabled() {
		rec = metrics.New(metrics.WithLogger(p.logger), metrics.WithClock(h.now))
	} else {
		rec = metrics.Disabled(metrics.WithClock(h.now))
	}

	creds := p.credentials
	if cfg.Credentials != nil {
		creds = cfg.Credentials
	}

	hooks := p.hooks
	if len(cfg.Hooks) > 0 {
		hooks = make([]Hook, 0, len(p.hooks)+len(cfg.Hooks))
		hooks = append(hooks, p.hooks...)
		hooks = append(hooks, cfg.Hooks...)
	}

	return &ExecutionContext{
		Recorder:    rec,
		Collector:   collector,
		Credentials: auth.NewTimedProvider(creds, rec),
		Signer:      p.signer,
		Policy:      p.policy,
		Hooks:       hooks,
	}
}

// SetAbortTracker attaches the call's tracker. It can be set once.
func (ec *ExecutionContext) SetAbortTracker(t *AbortTracker) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.abort != nil {
		return ErrAbortTrackerInUse
	}
	ec.abort = t
	return nil
}

// AbortTracker returns the call's tracker, or nil before it is set.
func (ec *ExecutionContext) AbortTracker() *AbortTracker {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.abort
}
