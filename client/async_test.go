package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/retry"
	"github.com/kroma-labs/cloudsdk-go/transport"
	"github.com/kroma-labs/cloudsdk-go/wire"
)

func newTestAsyncHandler(t *testing.T, tr transport.Transport, opts ...Option) (*AsyncHandler, *finalizations) {
	t.Helper()
	h := NewAsyncHandler(newTestParams(t, tr, opts...))
	f := &finalizations{}
	h.finalized = f.record
	return h, f
}

func await[Out any](t *testing.T, f *Future[Out]) (Out, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := f.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future did not complete")
	return out, err
}

// countingExecutor runs tasks on new goroutines and counts them.
type countingExecutor struct {
	tasks atomic.Int32
}

func (e *countingExecutor) Submit(ctx context.Context, task func(ctx context.Context)) {
	e.tasks.Add(1)
	go task(ctx)
}

func TestExecuteAsync(t *testing.T) {
	t.Run("given success on first attempt, then future resolves with decoded output", func(t *testing.T) {
		mt := transport.NewMockTransport().Enqueue(okReply())
		col := &recordingCollector{}
		h, fin := newTestAsyncHandler(t, mt, WithMetricCollector(col))

		f := ExecuteAsync(context.Background(), h, orderParams("o-1"))
		out, err := await(t, f)

		require.NoError(t, err)
		assert.Equal(t, order{ID: "o-1", Status: "SHIPPED"}, out)
		assert.Equal(t, 1, fin.count())
		require.Equal(t, 1, col.count())
		assert.Len(t, col.last().Spans(metrics.ClientExecuteTime), 1)

		select {
		case <-f.Done():
		default:
			t.Fatal("Done not closed after Await returned")
		}
	})

	t.Run("given throttling twice then success, then same metrics as the sync path", func(t *testing.T) {
		mt := transport.NewMockTransport().Enqueue(throttleReply(), throttleReply(), okReply())
		col := &recordingCollector{}
		h, _ := newTestAsyncHandler(t, mt,
			WithMetricCollector(col),
			WithRetryPolicy(fastPolicy(2)),
		)

		out, err := await(t, ExecuteAsync(context.Background(), h, orderParams("o-1")))

		require.NoError(t, err)
		assert.Equal(t, "o-1", out.ID)

		rec := col.last()
		assert.Equal(t, int64(2), rec.Counter(metrics.ThrottleException))
		assert.Len(t, rec.Spans(metrics.HttpRequestTime), 3)
		assert.Len(t, rec.Spans(metrics.RetryPauseTime), 2)
		assert.Len(t, rec.Spans(metrics.ClientExecuteTime), 1)
	})

	t.Run("given backoff, then next attempt waits for the scheduled delay", func(t *testing.T) {
		policy := fastPolicy(1)
		policy.Backoff = retry.Fixed(30 * time.Millisecond)

		mt := transport.NewMockTransport().Enqueue(
			transport.Reply{Status: http.StatusServiceUnavailable},
			okReply(),
		)
		h, _ := newTestAsyncHandler(t, mt, WithRetryPolicy(policy))

		start := time.Now()
		_, err := await(t, ExecuteAsync(context.Background(), h, orderParams("o-1")))

		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
		assert.Equal(t, 2, mt.RequestCount())
	})

	t.Run("given terminal service error, then future fails with service kind", func(t *testing.T) {
		mt := transport.NewMockTransport().StubResponse(http.StatusNotFound, `{"__type":"OrderNotFound"}`)
		h, fin := newTestAsyncHandler(t, mt)

		_, err := await(t, ExecuteAsync(context.Background(), h, orderParams("o-1")))

		assert.Equal(t, KindService, KindOf(err))
		var se *ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "OrderNotFound", se.Code)
		assert.Equal(t, 1, fin.count())
	})

	t.Run("given marshalling failure, then future is already complete", func(t *testing.T) {
		mt := transport.NewMockTransport()
		h, fin := newTestAsyncHandler(t, mt)

		p := orderParams("o-1")
		p.Marshaller = func(getOrderInput) (*wire.Request, error) { return nil, errors.New("bad input") }

		f := ExecuteAsync(context.Background(), h, p)

		_, err := f.Result()
		assert.Equal(t, KindMarshalling, KindOf(err))
		assert.Equal(t, 1, fin.count())
		assert.Zero(t, mt.RequestCount())
	})

	t.Run("given custom executor, then continuations run on it", func(t *testing.T) {
		mt := transport.NewMockTransport().Enqueue(
			transport.Reply{Status: http.StatusServiceUnavailable},
			okReply(),
		)
		exec := &countingExecutor{}
		h, _ := newTestAsyncHandler(t, mt, WithExecutor(exec))

		_, err := await(t, ExecuteAsync(context.Background(), h, orderParams("o-1")))

		require.NoError(t, err)
		// Per attempt: transport task and classify task. Plus one retry task.
		assert.Equal(t, int32(5), exec.tasks.Load())
	})
}

// inlineExecutor runs every task on the submitting goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Submit(ctx context.Context, task func(ctx context.Context)) { task(ctx) }

func TestExecuteAsync_InlineExecutor(t *testing.T) {
	tests := []struct {
		name    string
		replies []transport.Reply
		wantErr bool
	}{
		{
			name:    "given success on first attempt, then future resolves",
			replies: []transport.Reply{okReply()},
		},
		{
			name:    "given one retry, then future resolves after the retry",
			replies: []transport.Reply{{Status: http.StatusServiceUnavailable}, okReply()},
		},
		{
			name:    "given terminal service error, then future fails",
			replies: []transport.Reply{{Status: http.StatusNotFound, Body: `{"__type":"OrderNotFound"}`}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := transport.NewMockTransport().Enqueue(tt.replies...)
			h, fin := newTestAsyncHandler(t, mt, WithExecutor(inlineExecutor{}))

			out, err := await(t, ExecuteAsync(context.Background(), h, orderParams("o-1")))

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindService, KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "o-1", out.ID)
			}
			assert.Equal(t, len(tt.replies), mt.RequestCount())
			assert.Equal(t, 1, fin.count())
		})
	}
}

func TestAttemptStop(t *testing.T) {
	tests := []struct {
		name          string
		classifyFirst bool
	}{
		{name: "given cancel func arrives first, then it runs on classification", classifyFirst: false},
		{name: "given classification comes first, then cancel func runs on arrival", classifyFirst: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			s := &attemptStop{}
			stop := transport.CancelFunc(func() { calls++ })

			if tt.classifyFirst {
				s.classified()
				assert.Zero(t, calls)
				s.set(stop)
			} else {
				s.set(stop)
				assert.Zero(t, calls)
				s.classified()
			}

			assert.Equal(t, 1, calls)
		})
	}
}

func TestExecuteAsync_Cancel(t *testing.T) {
	t.Run("given cancel during in-flight attempt, then transport is aborted and metrics finalized", func(t *testing.T) {
		sent := make(chan struct{}, 1)
		mt := transport.NewMockTransport().StubReply(transport.Reply{Status: http.StatusOK, Body: okBody, Delay: time.Minute})
		mt.OnRequest(func(*wire.Request) { sent <- struct{}{} })
		col := &recordingCollector{}
		h, fin := newTestAsyncHandler(t, mt, WithMetricCollector(col))

		f := ExecuteAsync(context.Background(), h, orderParams("o-1"))
		<-sent
		f.Cancel()

		_, err := await(t, f)

		assert.Equal(t, KindAborted, KindOf(err))
		assert.ErrorIs(t, err, ErrAborted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, mt.RequestCount())
		assert.Equal(t, 1, fin.count())
		assert.Equal(t, 1, col.count())
		assert.True(t, col.last().TimingInfo().Ended())
	})

	t.Run("given cancel during backoff, then no further attempt", func(t *testing.T) {
		policy := fastPolicy(3)
		policy.Backoff = retry.Fixed(time.Minute)

		sent := make(chan struct{}, 1)
		mt := transport.NewMockTransport().StubResponse(http.StatusInternalServerError, "")
		mt.OnRequest(func(*wire.Request) { sent <- struct{}{} })
		col := &recordingCollector{}
		h, _ := newTestAsyncHandler(t, mt, WithRetryPolicy(policy), WithMetricCollector(col))

		f := ExecuteAsync(context.Background(), h, orderParams("o-1"))
		<-sent
		time.Sleep(20 * time.Millisecond)
		f.Cancel()

		_, err := await(t, f)

		assert.Equal(t, KindAborted, KindOf(err))
		assert.Equal(t, 1, mt.RequestCount())
		assert.Len(t, col.last().Spans(metrics.RetryPauseTime), 1)
	})

	t.Run("given cancel after completion, then result is unchanged", func(t *testing.T) {
		mt := transport.NewMockTransport().Enqueue(okReply())
		h, _ := newTestAsyncHandler(t, mt)

		f := ExecuteAsync(context.Background(), h, orderParams("o-1"))
		_, err := await(t, f)
		require.NoError(t, err)

		f.Cancel()
		out, err := f.Result()
		require.NoError(t, err)
		assert.Equal(t, "o-1", out.ID)
	})

	t.Run("given await context ends first, then call keeps running", func(t *testing.T) {
		mt := transport.NewMockTransport().StubReply(transport.Reply{Status: http.StatusOK, Body: okBody, Delay: 50 * time.Millisecond})
		h, _ := newTestAsyncHandler(t, mt)

		f := ExecuteAsync(context.Background(), h, orderParams("o-1"))

		_, err := f.Result()
		assert.ErrorIs(t, err, ErrPending)

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		_, err = f.Await(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		out, err := await(t, f)
		require.NoError(t, err)
		assert.Equal(t, "o-1", out.ID)
	})
}

func TestExecuteAsync_Concurrent(t *testing.T) {
	t.Run("given many concurrent futures, then each resolves and is finalized once", func(t *testing.T) {
		mt := transport.NewMockTransport().StubResponse(http.StatusOK, okBody)
		h, fin := newTestAsyncHandler(t, mt)

		const calls = 30
		futures := make([]*Future[order], calls)
		for i := range futures {
			futures[i] = ExecuteAsync(context.Background(), h, orderParams("o-1"))
		}

		var wg sync.WaitGroup
		for _, f := range futures {
			wg.Add(1)
			go func(f *Future[order]) {
				defer wg.Done()
				_, err := f.Await(context.Background())
				assert.NoError(t, err)
			}(f)
		}
		wg.Wait()

		assert.Equal(t, calls, fin.count())
	})
}
