package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

func TestChaosConfig_Delay(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChaosConfig
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "given zero config, then returns zero delay",
			cfg:     ChaosConfig{},
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "given fixed latency, then returns exact delay",
			cfg:     ChaosConfig{Latency: 100 * time.Millisecond},
			wantMin: 100 * time.Millisecond,
			wantMax: 100 * time.Millisecond,
		},
		{
			name:    "given latency with jitter, then returns delay in range",
			cfg:     ChaosConfig{Latency: 100 * time.Millisecond, LatencyJitter: 50 * time.Millisecond},
			wantMin: 100 * time.Millisecond,
			wantMax: 150 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Delay()

			assert.GreaterOrEqual(t, got, tt.wantMin)
			if tt.wantMax > tt.wantMin {
				assert.Less(t, got, tt.wantMax)
			} else {
				assert.Equal(t, tt.wantMin, got)
			}
		})
	}
}

func TestWithChaos(t *testing.T) {
	req := &wire.Request{Method: http.MethodGet, OperationName: "GetOrder"}

	t.Run("given no faults, then next transport is returned unchanged", func(t *testing.T) {
		mt := NewMockTransport()

		assert.Same(t, mt, WithChaos(ChaosConfig{})(mt))
	})

	t.Run("given error rate 1, then simulated dial error", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "ok")
		tr := Chain(mt, WithChaos(ChaosConfig{ErrorRate: 1}))

		resp, err := tr.Do(context.Background(), req)

		assert.Nil(t, resp)
		require.ErrorIs(t, err, ErrChaosInjected)
		var opErr *net.OpError
		assert.True(t, errors.As(err, &opErr))
		assert.Zero(t, mt.RequestCount())
	})

	t.Run("given throttle rate 1, then throttling response without sending", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "ok")
		tr := Chain(mt, WithChaos(ChaosConfig{ThrottleRate: 1}))

		resp, err := tr.Do(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Same(t, req, resp.Request)
		assert.Zero(t, mt.RequestCount())
	})

	t.Run("given timeout rate 1, then request waits for the context", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "ok")
		tr := Chain(mt, WithChaos(ChaosConfig{TimeoutRate: 1}))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := tr.Do(ctx, req)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("given latency, then request is delayed and forwarded", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "ok")
		tr := Chain(mt, WithChaos(ChaosConfig{Latency: 30 * time.Millisecond}))

		start := time.Now()
		resp, err := tr.Do(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
		assert.Equal(t, 1, mt.RequestCount())
	})

	t.Run("given latency and cancelled context, then context error", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "ok")
		tr := Chain(mt, WithChaos(ChaosConfig{Latency: time.Minute}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := tr.Do(ctx, req)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, mt.RequestCount())
	})

	t.Run("given chaos over an HTTP transport, then pool stats are still found", func(t *testing.T) {
		tr := Chain(New(), WithChaos(ChaosConfig{Latency: time.Millisecond}))

		_, ok := StatsOf(tr)

		assert.True(t, ok)
	})
}
