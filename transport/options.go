package transport

import (
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// scope is the instrumentation scope name for OpenTelemetry.
const scope = "github.com/kroma-labs/cloudsdk-go/transport"

type options struct {
	cfg            Config
	tracerProvider trace.TracerProvider
	propagators    propagation.TextMapPropagator
	serviceName    string
	networkTrace   bool
	logger         zerolog.Logger
	roundTripper   http.RoundTripper
}

func newOptions(opts ...Option) *options {
	o := &options{
		cfg:            DefaultConfig(),
		tracerProvider: otel.GetTracerProvider(),
		propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		networkTrace: true,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an HTTPTransport.
type Option func(*options)

// WithConfig sets the transport tuning. Use one of the presets as a base.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithPropagators sets the propagators injecting trace context into
// outgoing headers. Defaults to W3C TraceContext and Baggage.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(o *options) {
		if p != nil {
			o.propagators = p
		}
	}
}

// WithServiceName adds the "sdk.client.name" attribute to spans.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// WithNetworkTrace toggles DNS, connect and TLS span events.
// Default: enabled.
func WithNetworkTrace(enabled bool) Option {
	return func(o *options) {
		o.networkTrace = enabled
	}
}

// WithLogger sets the logger for per-attempt debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRoundTripper replaces the net/http transport built from Config.
// Pool limits in PoolStats then reflect Config only.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.roundTripper = rt
	}
}
