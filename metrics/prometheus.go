package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// PrometheusCollector reports finished calls as Prometheus metrics.
// It is safe for concurrent use.
type PrometheusCollector struct {
	callsTotal      *prometheus.CounterVec
	executeDuration *prometheus.HistogramVec
	phaseDuration   *prometheus.HistogramVec
	attemptsTotal   *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
}

// event counters exported through the events_total vector.
var prometheusEventFields = []Field{
	Exception,
	ThrottleException,
	ThrottledRetryCount,
	RetryCapacityConsumed,
	RedirectCount,
}

// NewPrometheusCollector registers the collector's vectors on registry.
// Metric names are prefixed with namespace when it is not empty.
// Registering twice on the same registry panics, as with promauto.
func NewPrometheusCollector(registry prometheus.Registerer, namespace string) *PrometheusCollector {
	factory := promauto.With(registry)
	return &PrometheusCollector{
		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sdk_calls_total",
				Help:      "Total number of SDK client calls",
			},
			[]string{"service", "operation", "status_code", "outcome"},
		),
		executeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sdk_call_duration_seconds",
				Help:      "Duration of SDK client calls including retries in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation", "outcome"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sdk_phase_duration_seconds",
				Help:      "Duration of SDK client pipeline phases in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"service", "operation", "phase"},
		),
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sdk_attempts_total",
				Help:      "Total number of HTTP attempts made by SDK client calls",
			},
			[]string{"service", "operation"},
		),
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sdk_events_total",
				Help:      "Total number of SDK client pipeline events by kind",
			},
			[]string{"service", "operation", "event"},
		),
	}
}

// Enabled returns true.
func (c *PrometheusCollector) Enabled() bool { return c != nil }

// Collect records the call.
func (c *PrometheusCollector) Collect(_ context.Context, req *wire.Request, resp *wire.Response, rec *Recorder, err error) {
	if c == nil || rec == nil {
		return
	}
	service, operation := "", ""
	if req != nil {
		service, operation = req.ServiceName, req.OperationName
	}
	result := outcome(err)

	c.callsTotal.WithLabelValues(service, operation, statusLabel(resp), result).Inc()
	c.executeDuration.WithLabelValues(service, operation, result).Observe(rec.TimingInfo().Duration().Seconds())

	for _, f := range TimerFields() {
		if f == ClientExecuteTime {
			continue
		}
		for _, d := range rec.Spans(f) {
			c.phaseDuration.WithLabelValues(service, operation, f.String()).Observe(d.Seconds())
		}
	}

	if n := rec.Counter(RequestCount); n > 0 {
		c.attemptsTotal.WithLabelValues(service, operation).Add(float64(n))
	}
	for _, f := range prometheusEventFields {
		if n := rec.Counter(f); n > 0 {
			c.eventsTotal.WithLabelValues(service, operation, f.String()).Add(float64(n))
		}
	}
}
