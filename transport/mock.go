package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Compile-time interface check.
var _ Transport = (*MockTransport)(nil)

// Reply is one stubbed outcome of MockTransport.
type Reply struct {
	Status int
	Body   string
	Header http.Header

	// Err is returned instead of a response when set.
	Err error

	// Delay holds the reply back. The request context still cancels it.
	Delay time.Duration
}

func (r Reply) response(req *wire.Request) (*wire.Response, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &wire.Response{
		StatusCode: r.Status,
		StatusText: http.StatusText(r.Status),
		Headers:    header,
		Body:       io.NopCloser(bytes.NewBufferString(r.Body)),
		Request:    req,
	}, nil
}

type stub struct {
	matcher func(*wire.Request) bool
	reply   Reply
}

// MockTransport is a Transport for tests. Queued replies are consumed first,
// in order; then the first matching stub answers; then the default reply.
// Request bodies are read to EOF like a real transport would.
type MockTransport struct {
	mu          sync.RWMutex
	queue       []Reply
	stubs       []stub
	defaultResp *Reply
	requests    []*wire.Request
	bodies      [][]byte
	requestHook func(*wire.Request)
}

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Enqueue queues replies answered once each, in order.
func (m *MockTransport) Enqueue(replies ...Reply) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, replies...)
	return m
}

// StubResponse answers every otherwise unmatched request.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	return m.StubReply(Reply{Status: statusCode, Body: body})
}

// StubError fails every otherwise unmatched request.
func (m *MockTransport) StubError(err error) *MockTransport {
	return m.StubReply(Reply{Err: err})
}

// StubReply sets the default reply.
func (m *MockTransport) StubReply(r Reply) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &r
	return m
}

// StubOperation answers requests for the named operation.
func (m *MockTransport) StubOperation(operation string, r Reply) *MockTransport {
	return m.StubFunc(func(req *wire.Request) bool {
		return req.OperationName == operation
	}, r)
}

// StubPath answers requests whose resource path equals path.
func (m *MockTransport) StubPath(path string, r Reply) *MockTransport {
	return m.StubFunc(func(req *wire.Request) bool {
		return req.URL().Path == path
	}, r)
}

// StubFunc answers requests matching the predicate.
func (m *MockTransport) StubFunc(matcher func(*wire.Request) bool, r Reply) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, reply: r})
	return m
}

// OnRequest sets a hook called with each request before it is answered.
func (m *MockTransport) OnRequest(fn func(*wire.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// Do implements Transport.
func (m *MockTransport) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)
	hook := m.requestHook
	reply, ok := m.next(req)
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if !ok {
		return nil, errors.New("transport: no stub for " + methodOf(req) + " " + req.URL().String())
	}

	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	return reply.response(req)
}

// next pops the queue or finds a stub. Callers hold m.mu.
func (m *MockTransport) next(req *wire.Request) (Reply, bool) {
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		return r, true
	}
	for _, s := range m.stubs {
		if s.matcher(req) {
			return s.reply, true
		}
	}
	if m.defaultResp != nil {
		return *m.defaultResp, true
	}
	return Reply{}, false
}

// Requests returns every request received, in order.
func (m *MockTransport) Requests() []*wire.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*wire.Request{}, m.requests...)
}

// Bodies returns the body bytes read from each request, in order.
func (m *MockTransport) Bodies() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]byte{}, m.bodies...)
}

// RequestCount returns the number of requests received.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockTransport) LastRequest() *wire.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears stubs, queued replies and recorded requests.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.stubs = nil
	m.defaultResp = nil
	m.requests = nil
	m.bodies = nil
	m.requestHook = nil
}
