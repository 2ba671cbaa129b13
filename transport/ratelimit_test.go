package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.InEpsilon(t, 100.0, cfg.RequestsPerSecond, 0.001)
	assert.Equal(t, 10, cfg.Burst)
	assert.True(t, cfg.WaitOnLimit)
}

func TestWithRateLimit(t *testing.T) {
	tests := []struct {
		name         string
		cfg          RateLimitConfig
		requests     int
		wantAllowed  int
		wantRejected int
	}{
		{
			name:         "given fail fast limiter, then rejects beyond burst",
			cfg:          RateLimitConfig{RequestsPerSecond: 1, Burst: 2},
			requests:     4,
			wantAllowed:  2,
			wantRejected: 2,
		},
		{
			name:         "given zero rate, then no limiting",
			cfg:          RateLimitConfig{},
			requests:     4,
			wantAllowed:  4,
			wantRejected: 0,
		},
		{
			name:         "given burst below one, then one request allowed",
			cfg:          RateLimitConfig{RequestsPerSecond: 0.001},
			requests:     3,
			wantAllowed:  1,
			wantRejected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := NewMockTransport().StubResponse(http.StatusOK, "")
			tr := Chain(mt, WithRateLimit(tt.cfg))

			var allowed, rejected int
			for i := 0; i < tt.requests; i++ {
				_, err := tr.Do(context.Background(), &wire.Request{})
				if err != nil {
					assert.ErrorIs(t, err, ErrRateLimited)
					rejected++
					continue
				}
				allowed++
			}

			assert.Equal(t, tt.wantAllowed, allowed)
			assert.Equal(t, tt.wantRejected, rejected)
			assert.Equal(t, tt.wantAllowed, mt.RequestCount())
		})
	}
}

func TestWithRateLimit_Wait(t *testing.T) {
	t.Run("given waiting limiter and short deadline, then rate limited", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "")
		tr := Chain(mt, WithRateLimit(RateLimitConfig{RequestsPerSecond: 0.1, Burst: 1, WaitOnLimit: true}))

		_, err := tr.Do(context.Background(), &wire.Request{})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = tr.Do(ctx, &wire.Request{})
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("given canceled context, then returns context error", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "")
		tr := Chain(mt, WithRateLimit(RateLimitConfig{RequestsPerSecond: 0.1, Burst: 1, WaitOnLimit: true}))
		_, _ = tr.Do(context.Background(), &wire.Request{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := tr.Do(ctx, &wire.Request{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("given tokens available, then waits briefly and succeeds", func(t *testing.T) {
		mt := NewMockTransport().StubResponse(http.StatusOK, "")
		tr := Chain(mt, WithRateLimit(RateLimitConfig{RequestsPerSecond: 100, Burst: 1, WaitOnLimit: true}))

		for i := 0; i < 3; i++ {
			_, err := tr.Do(context.Background(), &wire.Request{})
			require.NoError(t, err)
		}
		assert.Equal(t, 3, mt.RequestCount())
	})
}

func TestWithKeyedRateLimit(t *testing.T) {
	mt := NewMockTransport().StubResponse(http.StatusOK, "")
	tr := Chain(mt, WithKeyedRateLimit(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, ByOperation))

	get := &wire.Request{ServiceName: "orders", OperationName: "GetOrder"}
	put := &wire.Request{ServiceName: "orders", OperationName: "PutOrder"}

	_, err := tr.Do(context.Background(), get)
	require.NoError(t, err)
	_, err = tr.Do(context.Background(), put)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), get)
	assert.ErrorIs(t, err, ErrRateLimited)

	rl, ok := tr.(*rateLimitTransport)
	require.True(t, ok)
	stats, ok := rl.Stats("orders/GetOrder")
	require.True(t, ok)
	assert.Equal(t, 1, stats.Burst)
	assert.Less(t, stats.TokensAvailable, 1.0)

	_, ok = rl.Stats("orders/DeleteOrder")
	assert.False(t, ok)
}
