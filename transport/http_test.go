package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

func newTracedTransport(t *testing.T, opts ...Option) (*HTTPTransport, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return New(append([]Option{WithTracerProvider(tp)}, opts...)...), exporter
}

func spanAttr(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestHTTPTransport_Do(t *testing.T) {
	type args struct {
		method string
		path   string
		body   wire.Body
	}

	tests := []struct {
		name         string
		args         args
		serverStatus int
		wantSpanName string
		wantStatus   codes.Code
	}{
		{
			name:         "given successful GET request, then returns response and creates span",
			args:         args{method: http.MethodGet, path: "/orders/1"},
			serverStatus: http.StatusOK,
			wantSpanName: "HTTP GET",
			wantStatus:   codes.Unset,
		},
		{
			name:         "given POST with body, then sends body",
			args:         args{method: http.MethodPost, path: "/orders", body: wire.StringBody(`{"id":1}`)},
			serverStatus: http.StatusCreated,
			wantSpanName: "HTTP POST",
			wantStatus:   codes.Unset,
		},
		{
			name:         "given server error, then returns response and marks span",
			args:         args{method: http.MethodGet, path: "/orders/2"},
			serverStatus: http.StatusServiceUnavailable,
			wantSpanName: "HTTP GET",
			wantStatus:   codes.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody []byte
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotBody, _ = io.ReadAll(r.Body)
				w.Header().Set("X-Sdk-Request-Id", "req-1")
				w.WriteHeader(tt.serverStatus)
				_, _ = w.Write([]byte("done"))
			}))
			defer server.Close()

			tr, exporter := newTracedTransport(t, WithServiceName("orders-client"))

			req := newRequest(t, tt.args.method, server.URL, tt.args.body)
			req.ResourcePath = tt.args.path

			resp, err := tr.Do(context.Background(), req)
			require.NoError(t, err)
			defer resp.Close()

			assert.Equal(t, tt.serverStatus, resp.StatusCode)
			assert.Equal(t, "req-1", resp.RequestID())
			assert.Same(t, req, resp.Request)
			assert.Equal(t, tt.args.path, gotPath)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, "done", string(body))

			if tt.args.body != nil {
				assert.Equal(t, `{"id":1}`, string(gotBody))
			}

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantSpanName, spans[0].Name)
			assert.Equal(t, tt.wantStatus, spans[0].Status.Code)

			v, ok := spanAttr(spans[0], "sdk.operation")
			require.True(t, ok)
			assert.Equal(t, "GetOrder", v.AsString())
			v, ok = spanAttr(spans[0], "sdk.client.name")
			require.True(t, ok)
			assert.Equal(t, "orders-client", v.AsString())
			v, ok = spanAttr(spans[0], "http.response.status_code")
			require.True(t, ok)
			assert.Equal(t, int64(tt.serverStatus), v.AsInt64())
		})
	}
}

func TestHTTPTransport_Do_TracePropagation(t *testing.T) {
	t.Run("given parent span, then propagates trace context", func(t *testing.T) {
		var received http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		exporter := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer func() { _ = tp.Shutdown(context.Background()) }()

		tr := New(WithTracerProvider(tp), WithNetworkTrace(false))

		ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
		defer parent.End()

		resp, err := tr.Do(ctx, newRequest(t, http.MethodGet, server.URL, nil))
		require.NoError(t, err)
		require.NoError(t, resp.Close())

		assert.NotEmpty(t, received.Get("Traceparent"))
	})
}

func TestHTTPTransport_Do_Redirect(t *testing.T) {
	t.Run("given temporary redirect, then returns it without following", func(t *testing.T) {
		var hits int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			http.Redirect(w, r, "/elsewhere", http.StatusTemporaryRedirect)
		}))
		defer server.Close()

		tr, _ := newTracedTransport(t)
		resp, err := tr.Do(context.Background(), newRequest(t, http.MethodGet, server.URL, nil))
		require.NoError(t, err)
		defer resp.Close()

		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Equal(t, "/elsewhere", resp.Header("Location"))
		assert.Equal(t, 1, hits)
	})
}

func TestHTTPTransport_Do_Errors(t *testing.T) {
	t.Run("given closed server, then returns error and records it on the span", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		addr := server.URL
		server.Close()

		tr, exporter := newTracedTransport(t)
		resp, err := tr.Do(context.Background(), newRequest(t, http.MethodGet, addr, nil))
		require.Error(t, err)
		assert.Nil(t, resp)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		_, ok := spanAttr(spans[0], "error.type")
		assert.True(t, ok)

		stats := tr.PoolStats()
		assert.Zero(t, stats.Leased)
		assert.Zero(t, stats.Pending)
	})

	t.Run("given canceled context, then error wraps context.Canceled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		tr, _ := newTracedTransport(t)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := tr.Do(ctx, newRequest(t, http.MethodGet, server.URL, nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("given request without endpoint, then returns error", func(t *testing.T) {
		tr, _ := newTracedTransport(t)
		_, err := tr.Do(context.Background(), &wire.Request{Method: http.MethodGet})
		require.Error(t, err)
	})

	t.Run("given nil request, then returns error", func(t *testing.T) {
		tr, _ := newTracedTransport(t)
		_, err := tr.Do(context.Background(), nil)
		require.Error(t, err)
	})
}

func TestHTTPTransport_PoolStats(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := DefaultConfig()
	cfg.MaxConnsPerHost = 4
	tr, _ := newTracedTransport(t, WithConfig(cfg))

	resp, err := tr.Do(context.Background(), newRequest(t, http.MethodGet, server.URL, nil))
	require.NoError(t, err)

	stats := tr.PoolStats()
	assert.Equal(t, int64(1), stats.Leased)
	assert.Equal(t, int64(3), stats.Available)
	assert.Equal(t, 4, stats.MaxConnsPerHost)

	require.NoError(t, resp.Body.Close())

	stats = tr.PoolStats()
	assert.Zero(t, stats.Leased)
	assert.Equal(t, int64(4), stats.Available)
}

func TestStatsOf(t *testing.T) {
	tr := New()

	t.Run("given decorated transport, then finds pool stats", func(t *testing.T) {
		wrapped := Chain(tr, WithRateLimit(DefaultRateLimitConfig()), WithCircuitBreaker("orders", DefaultBreakerConfig()))
		stats, ok := StatsOf(wrapped)
		require.True(t, ok)
		assert.Equal(t, DefaultConfig().MaxConnsPerHost, stats.MaxConnsPerHost)
	})

	t.Run("given async adapter, then finds pool stats", func(t *testing.T) {
		_, ok := StatsOf(NewAsync(tr, nil))
		assert.True(t, ok)
	})

	t.Run("given transport without stats, then not found", func(t *testing.T) {
		_, ok := StatsOf(NewMockTransport())
		assert.False(t, ok)
	})
}
