package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/cloudsdk-go/metrics"
)

// otelInstruments holds the metric instruments for finished calls.
type otelInstruments struct {
	// executeDuration measures the whole call including every retry.
	executeDuration metric.Float64Histogram

	// phaseDuration measures each timed pipeline phase, one record per span.
	phaseDuration metric.Float64Histogram

	// attempts records how many attempts a call needed.
	attempts metric.Int64Histogram

	// exceptions counts failed attempts.
	exceptions metric.Int64Counter

	// throttles counts failed attempts caused by throttling.
	throttles metric.Int64Counter

	// throttledRetries counts retries refused because retry capacity ran out.
	throttledRetries metric.Int64Counter

	// redirects counts followed redirects.
	redirects metric.Int64Counter
}

func newOTelInstruments(meter metric.Meter) (*otelInstruments, error) {
	m := &otelInstruments{}
	var err error

	m.executeDuration, err = meter.Float64Histogram(
		"sdk.client.execute.duration",
		metric.WithDescription("Duration of SDK client calls including retries in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10, 30,
		),
	)
	if err != nil {
		return nil, err
	}

	m.phaseDuration, err = meter.Float64Histogram(
		"sdk.client.phase.duration",
		metric.WithDescription("Duration of SDK client pipeline phases in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.attempts, err = meter.Int64Histogram(
		"sdk.client.attempts",
		metric.WithDescription("Number of attempts per SDK client call"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 8, 11),
	)
	if err != nil {
		return nil, err
	}

	m.exceptions, err = meter.Int64Counter(
		"sdk.client.exceptions",
		metric.WithDescription("Number of failed SDK client attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.throttles, err = meter.Int64Counter(
		"sdk.client.throttles",
		metric.WithDescription("Number of SDK client attempts rejected by throttling"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.throttledRetries, err = meter.Int64Counter(
		"sdk.client.retry.capacity_exhausted",
		metric.WithDescription("Number of retries refused because retry capacity was exhausted"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	m.redirects, err = meter.Int64Counter(
		"sdk.client.redirects",
		metric.WithDescription("Number of redirects followed by SDK client calls"),
		metric.WithUnit("{redirect}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *otelInstruments) recordExecuteDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.executeDuration == nil {
		return
	}
	m.executeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *otelInstruments) recordPhase(ctx context.Context, f Field, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.phaseDuration == nil {
		return
	}
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attrs...)
	allAttrs = append(allAttrs, attribute.String("sdk.phase", f.String()))
	m.phaseDuration.Record(ctx, d.Seconds(), metric.WithAttributes(allAttrs...))
}

func (m *otelInstruments) recordAttempts(ctx context.Context, n int64, attrs []attribute.KeyValue) {
	if m == nil || m.attempts == nil || n <= 0 {
		return
	}
	m.attempts.Record(ctx, n, metric.WithAttributes(attrs...))
}

func addCounter(ctx context.Context, c metric.Int64Counter, n int64, attrs []attribute.KeyValue) {
	if c == nil || n <= 0 {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// OTelCollector reports finished calls as OpenTelemetry metrics.
type OTelCollector struct {
	meterProvider metric.MeterProvider
	instruments   *otelInstruments
}

// OTelOption configures an OTelCollector.
type OTelOption func(*OTelCollector)

// WithMeterProvider sets the MeterProvider. If not set, the global provider
// from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *OTelCollector) {
		c.meterProvider = mp
	}
}

// NewOTelCollector creates the collector and registers its instruments.
func NewOTelCollector(opts ...OTelOption) (*OTelCollector, error) {
	c := &OTelCollector{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(c)
	}

	instruments, err := newOTelInstruments(c.meterProvider.Meter(scope))
	if err != nil {
		return nil, err
	}
	c.instruments = instruments
	return c, nil
}

// Enabled returns true.
func (c *OTelCollector) Enabled() bool { return c != nil }

// Collect records the call's durations and counters.
func (c *OTelCollector) Collect(ctx context.Context, req *wire.Request, resp *wire.Response, rec *Recorder, err error) {
	if c == nil || rec == nil {
		return
	}
	attrs := callAttributes(req, resp, err)
	m := c.instruments

	if total := rec.TimingInfo().Duration(); total > 0 {
		m.recordExecuteDuration(ctx, total, attrs)
	} else if spans := rec.Spans(ClientExecuteTime); len(spans) > 0 {
		m.recordExecuteDuration(ctx, spans[len(spans)-1], attrs)
	}

	for _, f := range TimerFields() {
		if f == ClientExecuteTime {
			continue
		}
		for _, d := range rec.Spans(f) {
			m.recordPhase(ctx, f, d, attrs)
		}
	}

	m.recordAttempts(ctx, rec.Counter(RequestCount), attrs)
	addCounter(ctx, m.exceptions, rec.Counter(Exception), attrs)
	addCounter(ctx, m.throttles, rec.Counter(ThrottleException), attrs)
	addCounter(ctx, m.throttledRetries, rec.Counter(ThrottledRetryCount), attrs)
	addCounter(ctx, m.redirects, rec.Counter(RedirectCount), attrs)
}

// callAttributes returns the attributes shared by every instrument.
func callAttributes(req *wire.Request, resp *wire.Response, err error) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	if req != nil {
		if req.ServiceName != "" {
			attrs = append(attrs, attribute.String("sdk.service", req.ServiceName))
		}
		if req.OperationName != "" {
			attrs = append(attrs, attribute.String("sdk.operation", req.OperationName))
		}
		attrs = append(attrs, attribute.String("http.request.method", req.Method))
	}
	if resp != nil {
		attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
	}
	attrs = append(attrs, attribute.String("sdk.outcome", outcome(err)))
	return attrs
}
