package transport

import (
	"crypto/tls"
	"io"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// pool counts connections in use across all requests of a transport.
type pool struct {
	leased  atomic.Int64
	pending atomic.Int64
}

// lease tracks one request's share of the pool counters. net/http may dial
// more than once for a request, so the share is undone as a whole on release.
type lease struct {
	pool *pool

	mu      sync.Mutex
	pending int64
	leased  int64
	once    sync.Once
}

func (p *pool) lease() *lease { return &lease{pool: p} }

func (l *lease) waiting() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending++
	l.pool.pending.Add(1)
}

func (l *lease) acquired() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending > 0 {
		l.pending--
		l.pool.pending.Add(-1)
	}
	l.leased++
	l.pool.leased.Add(1)
}

func (l *lease) release() {
	l.once.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.pool.pending.Add(-l.pending)
		l.pool.leased.Add(-l.leased)
		l.pending, l.leased = 0, 0
	})
}

// leaseBody returns the connection to the pool counters when closed.
type leaseBody struct {
	io.ReadCloser
	lease *lease
}

func (b *leaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.lease.release()
	return err
}

// networkTrace holds timing data collected from httptrace.ClientTrace.
type networkTrace struct {
	mu sync.Mutex

	dnsStart, dnsDone         time.Time
	connectStart, connectDone time.Time
	tlsStart, tlsDone         time.Time
	gotConn, firstByte        time.Time
	wroteRequest              time.Time

	connReused  bool
	connRemote  string
	protocolVer string
}

// clientTrace feeds the lease and, when nt is not nil, the network trace.
func clientTrace(l *lease, nt *networkTrace) *httptrace.ClientTrace {
	stamp := func(field *time.Time) {
		if nt == nil {
			return
		}
		nt.mu.Lock()
		*field = time.Now()
		nt.mu.Unlock()
	}

	ct := &httptrace.ClientTrace{
		GetConn: func(string) { l.waiting() },
		GotConn: func(info httptrace.GotConnInfo) {
			l.acquired()
			if nt == nil {
				return
			}
			nt.mu.Lock()
			defer nt.mu.Unlock()
			nt.gotConn = time.Now()
			nt.connReused = info.Reused
			if info.Conn != nil && info.Conn.RemoteAddr() != nil {
				nt.connRemote = info.Conn.RemoteAddr().String()
			}
		},
	}
	if nt == nil {
		return ct
	}

	ct.DNSStart = func(httptrace.DNSStartInfo) { stamp(&nt.dnsStart) }
	ct.DNSDone = func(httptrace.DNSDoneInfo) { stamp(&nt.dnsDone) }
	ct.ConnectStart = func(_, _ string) { stamp(&nt.connectStart) }
	ct.ConnectDone = func(_, _ string, _ error) { stamp(&nt.connectDone) }
	ct.TLSHandshakeStart = func() { stamp(&nt.tlsStart) }
	ct.TLSHandshakeDone = func(state tls.ConnectionState, _ error) {
		nt.mu.Lock()
		defer nt.mu.Unlock()
		nt.tlsDone = time.Now()
		nt.protocolVer = state.NegotiatedProtocol
	}
	ct.WroteRequest = func(httptrace.WroteRequestInfo) { stamp(&nt.wroteRequest) }
	ct.GotFirstResponseByte = func() { stamp(&nt.firstByte) }
	return ct
}

// addEvents adds span events for the collected network timings.
func (nt *networkTrace) addEvents(span trace.Span) {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	phase := func(name string, start, done time.Time, extra ...attribute.KeyValue) {
		if start.IsZero() || done.IsZero() {
			return
		}
		attrs := append([]attribute.KeyValue{
			attribute.Float64(name+".duration_ms", float64(done.Sub(start).Milliseconds())),
		}, extra...)
		span.AddEvent(name+".start", trace.WithTimestamp(start))
		span.AddEvent(name+".done", trace.WithTimestamp(done), trace.WithAttributes(attrs...))
	}

	phase("dns", nt.dnsStart, nt.dnsDone)
	phase("connect", nt.connectStart, nt.connectDone)
	phase("tls", nt.tlsStart, nt.tlsDone, attribute.String("tls.protocol", nt.protocolVer))

	if !nt.gotConn.IsZero() {
		span.AddEvent("got_conn", trace.WithTimestamp(nt.gotConn),
			trace.WithAttributes(
				attribute.Bool("connection.reused", nt.connReused),
				attribute.String("network.peer.address", nt.connRemote),
			))
	}
	if !nt.wroteRequest.IsZero() {
		span.AddEvent("wrote_request", trace.WithTimestamp(nt.wroteRequest))
	}
	if !nt.firstByte.IsZero() {
		var ttfb float64
		if !nt.wroteRequest.IsZero() {
			ttfb = float64(nt.firstByte.Sub(nt.wroteRequest).Milliseconds())
		}
		span.AddEvent("got_first_response_byte", trace.WithTimestamp(nt.firstByte),
			trace.WithAttributes(attribute.Float64("ttfb_ms", ttfb)))
	}
}
