package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kroma-labs/cloudsdk-go/auth"
	"github.com/kroma-labs/cloudsdk-go/client"
	"github.com/kroma-labs/cloudsdk-go/config"
	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/transport"
)

const (
	metricsAddr = ":2112"
	serviceAddr = "127.0.0.1:8081"
	serviceName = "orders"

	operationInterval = 2 * time.Second
)

type getOrderInput struct {
	ID string `json:"id"`
}

type order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Process-wide metrics: every handler without its own collector
	// reports here.
	registry := prometheus.NewRegistry()
	collector := metrics.NewPrometheusCollector(registry, "orders_example")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", metricsAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	// 2. A flaky local service so retries and throttling show up in metrics.
	serviceServer := &http.Server{Addr: serviceAddr, Handler: flakyOrders(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := serviceServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("orders service failed")
		}
	}()

	// 3. Handler parameters from CLOUDSDK_* environment variables, with
	// local defaults.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	// Occasional connection errors and jitter on top of the service's own
	// throttling.
	tr := transport.Chain(
		transport.New(
			transport.WithConfig(cfg.Client.Config),
			transport.WithServiceName(serviceName),
			transport.WithLogger(logger),
		),
		transport.WithChaos(transport.ChaosConfig{
			LatencyJitter: 50 * time.Millisecond,
			ErrorRate:     0.05,
		}),
	)

	opts := append(cfg.Options(),
		client.WithServiceName(serviceName),
		client.WithTransport(tr),
		client.WithCredentials(auth.NewStaticProvider("example-key", "example-secret", "")),
		client.WithSigner(auth.NewHMACSigner("local", serviceName)),
		client.WithDefaultMetricCollector(collector),
		client.WithLogger(logger),
	)
	if cfg.Endpoint == "" {
		opts = append(opts, client.WithEndpoint("http://"+serviceAddr))
	}
	params, err := client.NewHandlerParams(opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid client configuration")
	}
	h := client.NewHandler(params)
	ah := client.NewAsyncHandler(params)

	call := client.ExecutionParams[getOrderInput, order]{
		Input:                getOrderInput{ID: "o-1"},
		Marshaller:           client.JSONMarshaller[getOrderInput](http.MethodPost, "/orders", "GetOrder"),
		ResponseHandler:      client.JSONResponseHandler[order](),
		ErrorResponseHandler: client.JSONErrorResponseHandler(serviceName),
	}

	ticker := time.NewTicker(operationInterval)
	defer ticker.Stop()

	logger.Info().Str("metrics", "http://localhost"+metricsAddr+"/metrics").Msg("example started, press Ctrl+C to stop")

	for {
		select {
		case <-ticker.C:
			out, err := client.Execute(ctx, h, call)
			logCall(logger, "sync", out, err)

			f := client.ExecuteAsync(ctx, ah, call)
			out, err = f.Await(ctx)
			logCall(logger, "async", out, err)

		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = serviceServer.Shutdown(shutdownCtx)
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown")
			}
			return
		}
	}
}

func logCall(logger zerolog.Logger, mode string, out order, err error) {
	if err != nil {
		logger.Warn().Err(err).Str("mode", mode).Str("kind", client.KindOf(err).String()).Msg("call failed")
		return
	}
	logger.Info().Str("mode", mode).Str("order", out.ID).Str("status", out.Status).Msg("call succeeded")
}

// flakyOrders throttles every third request.
func flakyOrders() http.Handler {
	var n atomic.Int64
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in getOrderInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, `{"__type":"ValidationException"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
		if n.Add(1)%3 == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"__type":"ThrottlingException","message":"slow down"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(order{ID: in.ID, Status: "SHIPPED"})
	})
}
