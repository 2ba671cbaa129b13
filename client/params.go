package client

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/cloudsdk-go/auth"
	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/retry"
	"github.com/kroma-labs/cloudsdk-go/transport"
)

// HandlerParams is the validated, read-only configuration shared by every
// call of a handler. Build it with NewHandlerParams.
type HandlerParams struct {
	endpoint         *url.URL
	serviceName      string
	credentials      auth.CredentialsProvider
	signer           auth.SignerProvider
	policy           retry.Policy
	capacity         *retry.Capacity
	hooks            []Hook
	collector        metrics.Collector
	defaultCollector metrics.Collector
	transport        transport.Transport
	asyncTransport   transport.AsyncTransport
	executor         transport.Executor
	config           ClientConfig
	logger           zerolog.Logger
}

// Endpoint returns a copy of the client endpoint.
func (p *HandlerParams) Endpoint() *url.URL {
	u := *p.endpoint
	return &u
}

// ServiceName returns the service name used in metrics and errors.
func (p *HandlerParams) ServiceName() string { return p.serviceName }

// RetryPolicy returns the resolved retry policy.
func (p *HandlerParams) RetryPolicy() retry.Policy { return p.policy }

// RetryCapacity returns the client's retry token bucket.
func (p *HandlerParams) RetryCapacity() *retry.Capacity { return p.capacity }

// ClientConfig returns the client settings.
func (p *HandlerParams) ClientConfig() ClientConfig { return p.config }

// Transport returns the sync transport.
func (p *HandlerParams) Transport() transport.Transport { return p.transport }

// AsyncTransport returns the async transport.
func (p *HandlerParams) AsyncTransport() transport.AsyncTransport { return p.asyncTransport }

type paramsOptions struct {
	endpoint         string
	serviceName      string
	credentials      auth.CredentialsProvider
	anonymous        bool
	signer           auth.SignerProvider
	policy           *retry.Policy
	table            *retry.Table
	retryCapacity    *int
	hooks            []Hook
	collector        metrics.Collector
	defaultCollector metrics.Collector
	transport        transport.Transport
	asyncTransport   transport.AsyncTransport
	executor         transport.Executor
	config           ClientConfig
	logger           zerolog.Logger
}

// Option configures HandlerParams.
type Option func(*paramsOptions)

// WithEndpoint sets the absolute service endpoint. Required.
func WithEndpoint(endpoint string) Option {
	return func(o *paramsOptions) {
		o.endpoint = endpoint
	}
}

// WithServiceName names the service in metrics, errors and retry table
// lookups.
func WithServiceName(name string) Option {
	return func(o *paramsOptions) {
		o.serviceName = name
	}
}

// WithCredentials sets the credentials provider.
func WithCredentials(p auth.CredentialsProvider) Option {
	return func(o *paramsOptions) {
		o.credentials = p
	}
}

// WithAnonymous allows calls without credentials when no provider is set.
func WithAnonymous() Option {
	return func(o *paramsOptions) {
		o.anonymous = true
	}
}

// WithSigner signs every attempt with s.
func WithSigner(s auth.Signer) Option {
	return func(o *paramsOptions) {
		o.signer = auth.NewStaticSignerProvider(s)
	}
}

// WithSignerProvider chooses the signer per attempt.
func WithSignerProvider(p auth.SignerProvider) Option {
	return func(o *paramsOptions) {
		o.signer = p
	}
}

// WithRetryPolicy sets the retry policy. Default: retry.DefaultPolicy().
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *paramsOptions) {
		o.policy = &p
	}
}

// WithRetryTable looks the policy up by service name. A table entry wins
// over WithRetryPolicy.
func WithRetryTable(t *retry.Table) Option {
	return func(o *paramsOptions) {
		o.table = t
	}
}

// WithRetryCapacity sets the retry token bucket size. Negative disables it.
func WithRetryCapacity(n int) Option {
	return func(o *paramsOptions) {
		o.retryCapacity = &n
	}
}

// WithHooks appends client-level hooks.
func WithHooks(hooks ...Hook) Option {
	return func(o *paramsOptions) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithMetricCollector sets the client-level collector.
func WithMetricCollector(c metrics.Collector) Option {
	return func(o *paramsOptions) {
		o.collector = c
	}
}

// WithDefaultMetricCollector sets the process default collector, used when
// neither the request nor the client sets one. Applications pass the same
// collector to every client they build.
func WithDefaultMetricCollector(c metrics.Collector) Option {
	return func(o *paramsOptions) {
		o.defaultCollector = c
	}
}

// WithTransport sets the sync transport. Default: transport.New configured
// from the client config.
func WithTransport(t transport.Transport) Option {
	return func(o *paramsOptions) {
		o.transport = t
	}
}

// WithAsyncTransport sets the async transport. Default: the sync transport
// run on the executor.
func WithAsyncTransport(t transport.AsyncTransport) Option {
	return func(o *paramsOptions) {
		o.asyncTransport = t
	}
}

// WithExecutor sets the executor running async continuations.
// Default: a transport.BoundedExecutor.
func WithExecutor(e transport.Executor) Option {
	return func(o *paramsOptions) {
		o.executor = e
	}
}

// WithClientConfig sets the client settings.
func WithClientConfig(cfg ClientConfig) Option {
	return func(o *paramsOptions) {
		o.config = cfg
	}
}

// WithLogger sets the logger for retry decisions and call summaries.
// Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(o *paramsOptions) {
		o.logger = l
	}
}

// NewHandlerParams validates the options and builds the shared parameters.
// It performs no network I/O.
func NewHandlerParams(opts ...Option) (*HandlerParams, error) {
	o := &paramsOptions{
		config: DefaultClientConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var errs []error

	endpoint, err := parseEndpoint(o.endpoint)
	if err != nil {
		errs = append(errs, err)
	}

	creds := o.credentials
	if creds == nil {
		if o.anonymous {
			creds = auth.AnonymousProvider{}
		} else {
			errs = append(errs, errors.New("client: no credentials provider; use WithCredentials or WithAnonymous"))
		}
	}

	policy := retry.DefaultPolicy()
	if o.policy != nil {
		policy = *o.policy
	}
	if o.table != nil {
		policy = o.table.PolicyFor(o.serviceName, policy)
	}
	policy = policy.Resolve(o.config.MaxErrorRetry)
	if err := policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("client: invalid retry policy: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	capacity := o.config.RetryCapacity
	if o.retryCapacity != nil {
		capacity = *o.retryCapacity
	}

	signer := o.signer
	if signer == nil {
		signer = auth.NewStaticSignerProvider(nil)
	}

	t := o.transport
	if t == nil {
		t = transport.New(
			transport.WithConfig(o.config.Config),
			transport.WithServiceName(o.serviceName),
			transport.WithLogger(o.logger),
		)
	}
	if o.config.Debug {
		t = transport.Chain(t, transport.WithDebug(o.logger))
	}
	exec := o.executor
	if exec == nil {
		exec = transport.NewBoundedExecutor(transport.DefaultMaxConcurrency)
	}
	async := o.asyncTransport
	if async == nil {
		async = transport.NewAsync(t, exec)
	}

	return &HandlerParams{
		endpoint:         endpoint,
		serviceName:      o.serviceName,
		credentials:      creds,
		signer:           signer,
		policy:           policy,
		capacity:         retry.NewCapacity(capacity),
		hooks:            append([]Hook(nil), o.hooks...),
		collector:        o.collector,
		defaultCollector: o.defaultCollector,
		transport:        t,
		asyncTransport:   async,
		executor:         exec,
		config:           o.config,
		logger:           o.logger,
	}, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("client: endpoint is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("client: invalid endpoint %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("client: endpoint %q is not absolute", raw)
	}
	return u, nil
}
