package client

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/cloudsdk-go/auth"
	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/retry"
	"github.com/kroma-labs/cloudsdk-go/transport"
	"github.com/kroma-labs/cloudsdk-go/wire"
)

const (
	testEndpoint = "https://orders.example.com"
	okBody       = `{"id":"o-1","status":"SHIPPED"}`
	throttleBody = `{"__type":"ThrottlingException","message":"slow down"}`
)

type getOrderInput struct {
	ID string `json:"id"`
}

type order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// fastPolicy retries with no backoff.
func fastPolicy(maxErrorRetry int) retry.Policy {
	p := retry.DefaultPolicy()
	p.Backoff = retry.None
	p.MaxErrorRetry = maxErrorRetry
	return p
}

func newTestParams(t *testing.T, tr transport.Transport, opts ...Option) *HandlerParams {
	t.Helper()
	base := []Option{
		WithEndpoint(testEndpoint),
		WithServiceName("orders"),
		WithAnonymous(),
		WithTransport(tr),
		WithRetryPolicy(fastPolicy(3)),
	}
	p, err := NewHandlerParams(append(base, opts...)...)
	require.NoError(t, err)
	return p
}

// newTestHandler returns a handler whose finished calls are captured.
func newTestHandler(t *testing.T, tr transport.Transport, opts ...Option) (*Handler, *finalizations) {
	t.Helper()
	h := NewHandler(newTestParams(t, tr, opts...))
	f := &finalizations{}
	h.finalized = f.record
	return h, f
}

func orderParams(id string) ExecutionParams[getOrderInput, order] {
	return ExecutionParams[getOrderInput, order]{
		Input:                getOrderInput{ID: id},
		Marshaller:           JSONMarshaller[getOrderInput](http.MethodPost, "/orders", "GetOrder"),
		ResponseHandler:      JSONResponseHandler[order](),
		ErrorResponseHandler: JSONErrorResponseHandler("orders"),
	}
}

func okReply() transport.Reply {
	return transport.Reply{Status: http.StatusOK, Body: okBody}
}

func throttleReply() transport.Reply {
	return transport.Reply{Status: http.StatusBadRequest, Body: throttleBody}
}

// finalizations counts finished calls per handler.
type finalizations struct {
	mu  sync.Mutex
	ecs []*ExecutionContext
}

func (f *finalizations) record(ec *ExecutionContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ecs = append(f.ecs, ec)
}

func (f *finalizations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ecs)
}

func (f *finalizations) last() *ExecutionContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ecs) == 0 {
		return nil
	}
	return f.ecs[len(f.ecs)-1]
}

// recordingCollector keeps every reported recorder.
type recordingCollector struct {
	mu    sync.Mutex
	recs  []*metrics.Recorder
	resps []*wire.Response
	errs  []error
}

func (c *recordingCollector) Enabled() bool { return true }

func (c *recordingCollector) Collect(_ context.Context, _ *wire.Request, resp *wire.Response, rec *metrics.Recorder, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	c.resps = append(c.resps, resp)
	c.errs = append(c.errs, err)
}

func (c *recordingCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func (c *recordingCollector) lastResp() *wire.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.resps) == 0 {
		return nil
	}
	return c.resps[len(c.resps)-1]
}

func (c *recordingCollector) lastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs[len(c.errs)-1]
}

func (c *recordingCollector) last() *metrics.Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.recs) == 0 {
		return nil
	}
	return c.recs[len(c.recs)-1]
}

// countingProvider counts resolutions and invalidations.
type countingProvider struct {
	retrievals    atomic.Int32
	invalidations atomic.Int32
	err           error
}

func (p *countingProvider) Retrieve(context.Context) (auth.Credentials, error) {
	p.retrievals.Add(1)
	if p.err != nil {
		return auth.Credentials{}, p.err
	}
	return auth.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}, nil
}

func (p *countingProvider) Invalidate() { p.invalidations.Add(1) }

// retryableErr is a handler error that asks to be retried.
type retryableErr struct{}

func (retryableErr) Error() string        { return "partial response" }
func (retryableErr) RetryableError() bool { return true }
