package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Compile-time interface checks.
var (
	_ Transport         = (*HTTPTransport)(nil)
	_ PoolStatsReporter = (*HTTPTransport)(nil)
)

// HTTPTransport sends wire requests with net/http and traces every attempt
// with OpenTelemetry. Redirects are returned to the caller, never followed.
type HTTPTransport struct {
	cfg          Config
	client       *http.Client
	base         *http.Transport
	tracer       trace.Tracer
	propagators  propagation.TextMapPropagator
	serviceName  string
	networkTrace bool
	logger       zerolog.Logger
	pool         pool
}

// New creates an HTTPTransport.
func New(opts ...Option) *HTTPTransport {
	o := newOptions(opts...)

	t := &HTTPTransport{
		cfg:          o.cfg,
		tracer:       o.tracerProvider.Tracer(scope),
		propagators:  o.propagators,
		serviceName:  o.serviceName,
		networkTrace: o.networkTrace,
		logger:       o.logger,
	}

	rt := o.roundTripper
	if rt == nil {
		t.base = o.cfg.buildTransport()
		rt = t.base
	}

	t.client = &http.Client{
		Transport: rt,
		Timeout:   o.cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return t
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if req == nil {
		return nil, errors.New("transport: nil request")
	}
	start := time.Now()

	ctx, span := t.tracer.Start(ctx, "HTTP "+methodOf(req),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.requestAttributes(req)...),
	)
	defer span.End()

	l := t.pool.lease()
	var nt *networkTrace
	if t.networkTrace {
		nt = &networkTrace{}
	}
	ctx = httptrace.WithClientTrace(ctx, clientTrace(l, nt))

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		l.release()
		setSpanError(span, err, ErrorTypeUnknown)
		return nil, err
	}
	t.propagators.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	httpResp, err := t.client.Do(httpReq)
	if nt != nil {
		nt.addEvents(span)
	}
	if err != nil {
		l.release()
		errorType := ClassifyError(err)
		setSpanError(span, err, errorType)
		t.logger.Debug().
			Str("method", httpReq.Method).
			Str("url", httpReq.URL.Redacted()).
			Str("error_type", errorType).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("http attempt failed")
		return nil, fmt.Errorf("transport: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))
	if httpResp.StatusCode >= 400 {
		span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(httpResp.StatusCode))
		span.SetAttributes(attribute.String("error.type", errorTypeFromStatusCode(httpResp.StatusCode)))
	}

	t.logger.Debug().
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.Redacted()).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("http attempt")

	if httpResp.Body == nil {
		l.release()
	} else {
		httpResp.Body = &leaseBody{ReadCloser: httpResp.Body, lease: l}
	}
	return wire.FromHTTP(httpResp, req), nil
}

// PoolStats implements PoolStatsReporter.
func (t *HTTPTransport) PoolStats() PoolStats {
	leased := t.pool.leased.Load()
	stats := PoolStats{
		Available:           -1,
		Leased:              leased,
		Pending:             t.pool.pending.Load(),
		MaxIdleConns:        t.cfg.MaxIdleConns,
		MaxIdleConnsPerHost: t.cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     t.cfg.MaxConnsPerHost,
		IdleConnTimeout:     t.cfg.IdleConnTimeout,
	}
	if t.cfg.MaxConnsPerHost > 0 {
		stats.Available = max(int64(t.cfg.MaxConnsPerHost)-leased, 0)
	}
	return stats
}

// CloseIdleConnections closes pooled connections that are not in use.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// requestAttributes returns span attributes for the request.
func (t *HTTPTransport) requestAttributes(req *wire.Request) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 8)
	if t.serviceName != "" {
		attrs = append(attrs, attribute.String("sdk.client.name", t.serviceName))
	}
	attrs = append(attrs, attribute.String("http.request.method", methodOf(req)))
	if req.ServiceName != "" {
		attrs = append(attrs, attribute.String("sdk.service", req.ServiceName))
	}
	if req.OperationName != "" {
		attrs = append(attrs, attribute.String("sdk.operation", req.OperationName))
	}

	if req.Endpoint != nil {
		u := req.URL()
		attrs = append(attrs,
			attribute.String("url.full", u.Redacted()),
			attribute.String("url.scheme", u.Scheme),
		)
		if host := u.Hostname(); host != "" {
			attrs = append(attrs, attribute.String("server.address", host))
		}
		if port := serverPort(u.Scheme, u.Port()); port > 0 {
			attrs = append(attrs, attribute.Int("server.port", port))
		}
	}

	if req.Body != nil && req.Body.Len() > 0 {
		attrs = append(attrs, attribute.Int64("http.request.body.size", req.Body.Len()))
	}
	return attrs
}

func serverPort(scheme, port string) int {
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return 0
		}
		return p
	}
	switch scheme {
	case "http":
		return 80
	case "https":
		return 443
	}
	return 0
}

func methodOf(req *wire.Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}
