package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/retry"
	"github.com/kroma-labs/cloudsdk-go/transport"
	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Headers added to every attempt.
const (
	// HeaderRetryInfo carries "<retries>/<lastBackoffMs>/<availableCapacity>".
	HeaderRetryInfo = "X-Sdk-Retry"

	// HeaderInvocationID is the same for every attempt of a call.
	HeaderInvocationID = "X-Sdk-Invocation-Id"
)

// maxRedirects bounds the temporary redirects one call follows.
const maxRedirects = 10

// Handler executes calls against one service endpoint. It is safe for
// concurrent use; all per-call state lives in the call.
type Handler struct {
	params *HandlerParams
	logger zerolog.Logger
	now    func() time.Time

	// clockOffset is local time minus service time, in nanoseconds, as last
	// measured from a clock skew error.
	clockOffset atomic.Int64

	// finalized observes every finished call.
	finalized func(ec *ExecutionContext)
}

// NewHandler creates a handler from validated parameters.
func NewHandler(p *HandlerParams) *Handler {
	return &Handler{
		params: p,
		logger: p.logger,
		now:    time.Now,
	}
}

// Params returns the handler's parameters.
func (h *Handler) Params() *HandlerParams { return h.params }

// ClockOffset returns the measured skew applied when signing.
func (h *Handler) ClockOffset() time.Duration {
	return time.Duration(h.clockOffset.Load())
}

// adjustClock measures the skew from the response Date header.
func (h *Handler) adjustClock(resp *wire.Response) {
	date := resp.Header("Date")
	if date == "" {
		return
	}
	serverTime, err := http.ParseTime(date)
	if err != nil {
		return
	}
	offset := h.now().Sub(serverTime)
	h.clockOffset.Store(int64(offset))
	h.logger.Debug().
		Dur("offset", offset).
		Msg("adjusted signing clock")
}

// ExecutionParams describes one call.
type ExecutionParams[In, Out any] struct {
	Input      In
	Marshaller Marshaller[In]

	// ResponseHandler decodes a 2xx response. Nil returns the zero Out.
	ResponseHandler ResponseHandler[Out]

	// ErrorResponseHandler decodes other responses. Nil uses
	// DefaultErrorResponseHandler.
	ErrorResponseHandler ErrorResponseHandler

	// RequestConfig overrides client settings. When nil, an Input
	// implementing OverrideConfigProvider supplies it.
	RequestConfig *RequestConfig
}

// Execute runs one call on the caller's goroutine: marshal the input, then
// sign, send and classify attempts until one succeeds, fails terminally or
// the retry policy gives up. Every failure is an *Error.
func Execute[In, Out any](ctx context.Context, h *Handler, p ExecutionParams[In, Out]) (Out, error) {
	c, err := newCall(ctx, h, p)
	if err != nil {
		var zero Out
		return zero, err
	}
	if o, ok := c.marshal(); !ok {
		return c.finish(o)
	}

	for {
		o := c.attempt()
		switch o.kind {
		case outcomeRetry:
			if !c.sleep(o.delay) {
				return c.finish(c.abortOutcome())
			}
		case outcomeRedirect:
			c.redirect(o.location)
		default:
			return c.finish(o)
		}
	}
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetry
	outcomeTerminal
	outcomeRedirect
)

// attemptOutcome is the classified result of one attempt.
type attemptOutcome[Out any] struct {
	kind     outcomeKind
	value    Out
	err      *Error
	delay    time.Duration
	location *url.URL
}

// call is the state of one Execute or ExecuteAsync. Attempts are sequential,
// so its fields are never accessed concurrently.
type call[In, Out any] struct {
	h       *Handler
	p       ExecutionParams[In, Out]
	cfg     RequestConfig
	ec      *ExecutionContext
	parent  context.Context
	ctx     context.Context
	tracker *AbortTracker

	original     *wire.Request
	target       *url.URL
	lastReq      *wire.Request
	lastResp     *wire.Response
	state        retry.State
	requests     int
	redirects    int
	invocationID string

	once sync.Once
}

func newCall[In, Out any](ctx context.Context, h *Handler, p ExecutionParams[In, Out]) (*call[In, Out], error) {
	cfg := resolveRequestConfig(p.RequestConfig, p.Input)
	ec := h.newExecutionContext(cfg)

	tracker := cfg.AbortTracker
	if tracker == nil {
		tracker = NewAbortTracker()
	}
	if err := ec.SetAbortTracker(tracker); err != nil {
		return nil, err
	}
	callCtx, err := tracker.bind(ctx)
	if err != nil {
		return nil, err
	}
	tracker.armCall(firstPositive(cfg.ClientExecutionTimeout, h.params.config.ClientExecutionTimeout))

	ec.Recorder.StartEvent(metrics.ClientExecuteTime)
	return &call[In, Out]{
		h:            h,
		p:            p,
		cfg:          cfg,
		ec:           ec,
		parent:       ctx,
		ctx:          callCtx,
		tracker:      tracker,
		invocationID: uuid.NewString(),
	}, nil
}

// marshal runs the before-marshalling hooks and the marshaller.
func (c *call[In, Out]) marshal() (attemptOutcome[Out], bool) {
	input := c.p.Input
	for _, hook := range c.ec.Hooks {
		v, err := hook.BeforeMarshalling(input)
		if err != nil {
			return c.terminal(KindHook, fmt.Errorf("before marshalling: %w", err)), false
		}
		in, ok := v.(In)
		if !ok {
			return c.terminal(KindHook, fmt.Errorf("before marshalling: hook returned %T, want %T", v, input)), false
		}
		input = in
	}

	if c.p.Marshaller == nil {
		return c.terminal(KindMarshalling, errors.New("no marshaller")), false
	}

	rec := c.ec.Recorder
	rec.StartEvent(metrics.RequestMarshallTime)
	req, err := c.p.Marshaller(input)
	rec.EndEvent(metrics.RequestMarshallTime)
	if err != nil {
		return c.terminal(KindMarshalling, err), false
	}
	if req == nil {
		return c.terminal(KindMarshalling, errors.New("marshaller returned no request")), false
	}

	c.adopt(req, input)
	return attemptOutcome[Out]{}, true
}

// adopt fills client defaults into the marshalled request.
func (c *call[In, Out]) adopt(req *wire.Request, input In) {
	p := c.h.params
	if req.Endpoint == nil {
		req.Endpoint = p.Endpoint()
	}
	if req.ServiceName == "" {
		req.ServiceName = p.serviceName
	}
	if p.config.UserAgent != "" && req.Headers.Get("User-Agent") == "" {
		req.SetHeader("User-Agent", p.config.UserAgent)
	}
	for k, vs := range c.cfg.Headers {
		for _, v := range vs {
			if req.Headers == nil {
				req.Headers = make(http.Header)
			}
			req.Headers.Add(k, v)
		}
	}
	c.original = req

	rec := c.ec.Recorder
	rec.AddProperty(metrics.ServiceName, req.ServiceName)
	rec.AddProperty(metrics.ServiceEndpoint, req.Endpoint.String())
	rec.AddProperty(metrics.OperationName, req.OperationName)
	rec.AddProperty(metrics.RequestType, fmt.Sprintf("%T", input))
	rec.AddProperty(metrics.InvocationID, c.invocationID)
}

// attempt runs one synchronous sign-send-classify cycle.
func (c *call[In, Out]) attempt() attemptOutcome[Out] {
	req, o, ok := c.prepare()
	if !ok {
		return o
	}

	rec := c.ec.Recorder
	c.tracker.armAttempt(c.requestTimeout())
	rec.StartEvent(metrics.HttpRequestTime)
	resp, err := c.h.params.transport.Do(c.ctx, req)
	rec.EndEvent(metrics.HttpRequestTime)
	c.recordPoolStats(c.h.params.transport)

	return c.classify(req, resp, err)
}

// prepare builds and signs the request for the next attempt.
func (c *call[In, Out]) prepare() (*wire.Request, attemptOutcome[Out], bool) {
	if c.ctx.Err() != nil {
		return nil, c.abortOutcome(), false
	}
	if c.requests > 0 && c.original.Body != nil {
		if err := c.original.Body.Rewind(); err != nil {
			return nil, c.terminal(KindTransport, fmt.Errorf("%w: %w", ErrNonRewindableBody, err)), false
		}
	}

	rec := c.ec.Recorder
	c.lastResp = nil
	c.requests++
	rec.SetCounter(metrics.RequestCount, int64(c.requests))

	req := c.original.Clone()
	if c.target != nil {
		u := *c.target
		req.Endpoint = &u
		req.ResourcePath = ""
		req.Query = nil
	}
	req.TimeOffset = c.h.ClockOffset()
	req.SetHeader(HeaderInvocationID, c.invocationID)
	req.SetHeader(HeaderRetryInfo, c.retryInfo())
	c.lastReq = req

	creds, err := c.ec.Credentials.Retrieve(c.ctx)
	if err != nil {
		if c.ctx.Err() != nil {
			return nil, c.abortOutcome(), false
		}
		return nil, c.classifyFailure(KindSigning, err, nil), false
	}

	signer := c.ec.Signer.Signer(req, c.requests > 1)
	rec.StartEvent(metrics.RequestSigningTime)
	err = signer.Sign(c.ctx, req, creds)
	rec.EndEvent(metrics.RequestSigningTime)
	if err != nil {
		rec.IncrementCounter(metrics.Exception)
		return nil, c.terminal(KindSigning, fmt.Errorf("sign request: %w", err)), false
	}
	return req, attemptOutcome[Out]{}, true
}

// classify turns the transport result into an outcome. It consumes and
// closes resp.
func (c *call[In, Out]) classify(req *wire.Request, resp *wire.Response, err error) attemptOutcome[Out] {
	defer c.tracker.disarmAttempt()

	if err != nil {
		if c.ctx.Err() != nil {
			return c.abortOutcome()
		}
		return c.classifyFailure(KindTransport, err, nil)
	}

	rec := c.ec.Recorder
	c.lastResp = resp
	rec.SetCounter(metrics.StatusCode, int64(resp.StatusCode))
	if id := resp.RequestID(); id != "" {
		rec.AddProperty(metrics.RequestID, id)
	}

	if loc, ok := c.redirectTarget(req, resp); ok {
		_ = resp.Close()
		return attemptOutcome[Out]{kind: outcomeRedirect, location: loc}
	}

	if !resp.IsSuccess() {
		svcErr := c.decodeError(resp)
		_ = resp.Close()
		if c.ctx.Err() != nil {
			return c.abortOutcome()
		}
		return c.classifyFailure(KindService, svcErr, resp)
	}

	rec.StartEvent(metrics.ResponseProcessingTime)
	out, herr := c.handleResponse(resp)
	rec.EndEvent(metrics.ResponseProcessingTime)
	_ = resp.Close()
	if herr != nil {
		if c.ctx.Err() != nil {
			return c.abortOutcome()
		}
		var re retry.RetryableError
		if errors.As(herr, &re) && re.RetryableError() {
			return c.classifyFailure(KindHandler, herr, resp)
		}
		rec.IncrementCounter(metrics.Exception)
		return c.terminal(KindHandler, herr)
	}

	for _, hook := range c.ec.Hooks {
		if err := hook.AfterResponse(req, resp); err != nil {
			return c.terminal(KindHook, fmt.Errorf("after response: %w", err))
		}
	}

	c.releaseCapacity()
	return attemptOutcome[Out]{kind: outcomeSuccess, value: out}
}

// classifyFailure records a failed attempt and asks the retry policy for
// the next step.
func (c *call[In, Out]) classifyFailure(kind Kind, cause error, resp *wire.Response) attemptOutcome[Out] {
	rec := c.ec.Recorder
	rec.IncrementCounter(metrics.Exception)
	throttled := retry.IsThrottling(cause)
	if throttled {
		rec.IncrementCounter(metrics.ThrottleException)
	}

	c.state.Fail(cause)
	rc := c.state.Context(retry.Context{
		Request: c.original,
		Err:     cause,
		Aborted: c.ctx.Err() != nil,
	})
	policy := c.ec.Policy
	if !policy.ShouldRetry(rc) {
		return c.terminal(kind, cause)
	}
	delay := policy.Delay(rc)
	if delay == retry.Stop {
		return c.terminal(kind, cause)
	}

	capacity := c.h.params.capacity
	if !throttled {
		if !capacity.Acquire(retry.ThrottledRetryCost) {
			rec.IncrementCounter(metrics.ThrottledRetryCount)
			return c.terminal(kind, errors.Join(cause, ErrRetryCapacityExhausted))
		}
		if capacity.Enabled() {
			c.state.CapacityAcquired += retry.ThrottledRetryCost
			rec.SetCounter(metrics.RetryCapacityConsumed, int64(capacity.Consumed()))
		}
	}

	if policy.NeedsCredentialRefresh(rc) {
		if retry.IsClockSkew(cause) && resp != nil {
			c.h.adjustClock(resp)
		}
		c.ec.Credentials.Invalidate()
	}

	c.h.logger.Debug().
		Err(cause).
		Str("operation", c.original.OperationName).
		Int("retry", c.state.Attempt+1).
		Dur("delay", delay).
		Bool("throttled", throttled).
		Msg("retrying request")
	return attemptOutcome[Out]{kind: outcomeRetry, delay: delay}
}

func (c *call[In, Out]) handleResponse(resp *wire.Response) (Out, error) {
	if c.p.ResponseHandler == nil {
		var zero Out
		return zero, nil
	}
	return c.p.ResponseHandler(resp)
}

func (c *call[In, Out]) decodeError(resp *wire.Response) error {
	var err error
	if c.p.ErrorResponseHandler != nil {
		err = c.p.ErrorResponseHandler(resp)
	}
	if err == nil {
		err = DefaultErrorResponseHandler(c.original.ServiceName)(resp)
	}
	return err
}

// redirectTarget returns the Location of a temporary redirect the call can
// follow.
func (c *call[In, Out]) redirectTarget(req *wire.Request, resp *wire.Response) (*url.URL, bool) {
	if resp.StatusCode != http.StatusTemporaryRedirect || c.redirects >= maxRedirects {
		return nil, false
	}
	if !c.original.Rewindable() {
		return nil, false
	}
	loc := resp.Header("Location")
	if loc == "" {
		return nil, false
	}
	u, err := req.URL().Parse(loc)
	if err != nil {
		return nil, false
	}
	return u, true
}

// redirect re-targets the following attempts. Redirects do not count as
// retries.
func (c *call[In, Out]) redirect(loc *url.URL) {
	c.redirects++
	c.target = loc
	rec := c.ec.Recorder
	rec.IncrementCounter(metrics.RedirectCount)
	rec.AddProperty(metrics.RedirectLocation, loc.String())
}

// sleep waits out a backoff. It returns false when the call was aborted.
func (c *call[In, Out]) sleep(d time.Duration) bool {
	rec := c.ec.Recorder
	rec.StartEvent(metrics.RetryPauseTime)
	defer rec.EndEvent(metrics.RetryPauseTime)

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-c.ctx.Done():
			return false
		case <-timer.C:
		}
	}
	c.state.Advance(d)
	return c.ctx.Err() == nil
}

func (c *call[In, Out]) retryInfo() string {
	return fmt.Sprintf("%d/%d/%d",
		c.state.Attempt,
		c.state.LastDelay.Milliseconds(),
		c.h.params.capacity.Available(),
	)
}

// releaseCapacity returns one retry's worth of capacity after a call that
// consumed some, or a small increment after one that did not.
func (c *call[In, Out]) releaseCapacity() {
	capacity := c.h.params.capacity
	if c.state.CapacityAcquired > 0 {
		capacity.Release(retry.ThrottledRetryCost)
		c.state.CapacityAcquired = 0
		return
	}
	capacity.Release(retry.NoRetryIncrement)
}

func (c *call[In, Out]) recordPoolStats(t any) {
	stats, ok := transport.StatsOf(t)
	if !ok {
		return
	}
	rec := c.ec.Recorder
	rec.SetCounter(metrics.HttpClientPoolAvailableCount, stats.Available)
	rec.SetCounter(metrics.HttpClientPoolLeasedCount, stats.Leased)
	rec.SetCounter(metrics.HttpClientPoolPendingCount, stats.Pending)
}

func (c *call[In, Out]) requestTimeout() time.Duration {
	return firstPositive(c.cfg.RequestTimeout, c.h.params.config.RequestTimeout)
}

func (c *call[In, Out]) terminal(kind Kind, err error) attemptOutcome[Out] {
	op := ""
	if c.original != nil {
		op = c.original.OperationName
	}
	return attemptOutcome[Out]{
		kind: outcomeTerminal,
		err: &Error{
			Kind:     kind,
			Op:       op,
			Attempts: c.requests,
			Err:      err,
		},
	}
}

func (c *call[In, Out]) abortOutcome() attemptOutcome[Out] {
	cause := context.Cause(c.ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return c.terminal(KindAborted, fmt.Errorf("%w: %w", ErrAborted, cause))
}

// finish runs the after-error hooks of a failed call and finalises it.
func (c *call[In, Out]) finish(o attemptOutcome[Out]) (Out, error) {
	if o.kind == outcomeSuccess {
		c.finalize(nil)
		return o.value, nil
	}
	defer c.finalize(o.err)

	if c.original != nil {
		req := c.lastReq
		if req == nil {
			req = c.original
		}
		for _, hook := range c.ec.Hooks {
			hook.AfterError(req, c.lastResp, o.err)
		}
	}
	var zero Out
	return zero, o.err
}

// finalize ends the call's timing and reports its metrics with the call's
// result, once. Calls that never produced a request are not reported.
func (c *call[In, Out]) finalize(err error) {
	c.once.Do(func() {
		rec := c.ec.Recorder
		rec.EndEvent(metrics.ClientExecuteTime)
		rec.TimingInfo().EndTiming()

		if c.original != nil {
			req := c.lastReq
			if req == nil {
				req = c.original
			}
			if c.ec.Collector.Enabled() {
				c.ec.Collector.Collect(context.WithoutCancel(c.parent), req, c.lastResp, rec, err)
			}
			rec.Log()
		}

		c.tracker.release()
		if c.h.finalized != nil {
			c.h.finalized(c.ec)
		}
	})
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
