// Package config loads client settings from a configuration file and the
// environment.
//
// A YAML file looks like:
//
//	endpoint: https://orders.example.com
//	service_name: orders
//	request_timeout: 2s
//	max_error_retry: 5
//	transport:
//	  preset: high_throughput
//	  max_conns_per_host: 200
//	retry:
//	  default:
//	    strategy: full_jitter
//	    base_delay: 50ms
//	  dynamodb:
//	    max_error_retry: 10
//	    base_delay: 25ms
//
// Scalar keys can be overridden by environment variables named after the key
// with the prefix, dots replaced by underscores:
// CLOUDSDK_REQUEST_TIMEOUT, CLOUDSDK_TRANSPORT_MAX_CONNS_PER_HOST.
package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kroma-labs/cloudsdk-go/client"
	"github.com/kroma-labs/cloudsdk-go/retry"
	"github.com/kroma-labs/cloudsdk-go/transport"
)

// DefaultEnvPrefix prefixes environment overrides.
const DefaultEnvPrefix = "CLOUDSDK"

// DefaultPolicyKey names the retry entry used when no service entry matches.
const DefaultPolicyKey = "default"

// Transport presets accepted by transport.preset.
const (
	PresetDefault        = "default"
	PresetHighThroughput = "high_throughput"
	PresetLowLatency     = "low_latency"
	PresetConservative   = "conservative"
)

// envKeys are the keys bound to environment variables.
var envKeys = []string{
	"endpoint",
	"service_name",
	"user_agent",
	"debug",
	"max_error_retry",
	"request_timeout",
	"client_execution_timeout",
	"retry_capacity",
	"transport.preset",
	"transport.timeout",
	"transport.max_idle_conns",
	"transport.max_idle_conns_per_host",
	"transport.max_conns_per_host",
	"transport.idle_conn_timeout",
	"transport.tls_handshake_timeout",
	"transport.response_header_timeout",
	"transport.dial_timeout",
	"transport.keep_alive",
	"transport.disable_keep_alives",
	"transport.disable_compression",
	"transport.force_http2",
	"transport.proxy_url",
}

// Settings is the decoded file and environment content.
type Settings struct {
	Endpoint               string                      `mapstructure:"endpoint"`
	ServiceName            string                      `mapstructure:"service_name"`
	UserAgent              string                      `mapstructure:"user_agent"`
	Debug                  bool                        `mapstructure:"debug"`
	MaxErrorRetry          *int                        `mapstructure:"max_error_retry"`
	RequestTimeout         time.Duration               `mapstructure:"request_timeout"`
	ClientExecutionTimeout time.Duration               `mapstructure:"client_execution_timeout"`
	RetryCapacity          *int                        `mapstructure:"retry_capacity"`
	Transport              TransportSettings           `mapstructure:"transport"`
	Retry                  map[string]retry.PolicySpec `mapstructure:"retry"`
}

// TransportSettings overlays a transport preset. Unset fields keep the
// preset's value.
type TransportSettings struct {
	Preset                string        `mapstructure:"preset"`
	Timeout               time.Duration `mapstructure:"timeout"`
	MaxIdleConns          int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost   int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost       int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout       time.Duration `mapstructure:"idle_conn_timeout"`
	TLSHandshakeTimeout   time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`
	KeepAlive             time.Duration `mapstructure:"keep_alive"`
	DisableKeepAlives     *bool         `mapstructure:"disable_keep_alives"`
	DisableCompression    *bool         `mapstructure:"disable_compression"`
	ForceHTTP2            *bool         `mapstructure:"force_http2"`
	ProxyURL              string        `mapstructure:"proxy_url"`
}

// Config is the loaded configuration, ready to build handler parameters.
type Config struct {
	Endpoint    string
	ServiceName string
	Client      client.ClientConfig

	// Retry holds the per-service policies.
	Retry *retry.Table

	// DefaultRetry is the policy for services without an entry, or nil to
	// keep retry.DefaultPolicy.
	DefaultRetry *retry.Policy
}

// Options converts the configuration into handler options. Options passed
// after these override them.
func (c *Config) Options() []client.Option {
	opts := []client.Option{
		client.WithClientConfig(c.Client),
		client.WithRetryTable(c.Retry),
	}
	if c.Endpoint != "" {
		opts = append(opts, client.WithEndpoint(c.Endpoint))
	}
	if c.ServiceName != "" {
		opts = append(opts, client.WithServiceName(c.ServiceName))
	}
	if c.DefaultRetry != nil {
		opts = append(opts, client.WithRetryPolicy(*c.DefaultRetry))
	}
	return opts
}

type loader struct {
	file      string
	reader    io.Reader
	format    string
	envPrefix string
}

// Option configures Load.
type Option func(*loader)

// WithFile reads the configuration from path. The format follows the file
// extension.
func WithFile(path string) Option {
	return func(l *loader) {
		l.file = path
	}
}

// WithReader reads the configuration from r in the given format
// ("yaml", "json", "toml").
func WithReader(r io.Reader, format string) Option {
	return func(l *loader) {
		l.reader = r
		l.format = format
	}
}

// WithEnvPrefix changes the environment variable prefix.
//
// Default: DefaultEnvPrefix
func WithEnvPrefix(prefix string) Option {
	return func(l *loader) {
		l.envPrefix = prefix
	}
}

// Load reads the configuration source, if any, applies environment
// overrides and builds a Config. With no source, only the environment is
// read.
func Load(opts ...Option) (*Config, error) {
	l := &loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}

	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	switch {
	case l.reader != nil:
		v.SetConfigType(l.format)
		if err := v.ReadConfig(l.reader); err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	case l.file != "":
		v.SetConfigFile(l.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.file, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return s.Build()
}

// Build validates the settings and converts them into a Config.
func (s Settings) Build() (*Config, error) {
	var errs []error

	tc, err := s.Transport.Build()
	if err != nil {
		errs = append(errs, err)
	}

	cfg := client.DefaultClientConfig()
	cfg.Config = tc
	cfg.UserAgent = s.UserAgent
	cfg.Debug = s.Debug
	cfg.RequestTimeout = s.RequestTimeout
	cfg.ClientExecutionTimeout = s.ClientExecutionTimeout
	if s.MaxErrorRetry != nil {
		cfg.MaxErrorRetry = *s.MaxErrorRetry
	}
	if s.RetryCapacity != nil {
		cfg.RetryCapacity = *s.RetryCapacity
	}

	table := retry.NewTable()
	var def *retry.Policy
	for _, name := range slices.Sorted(maps.Keys(s.Retry)) {
		p, err := s.Retry[name].Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("config: retry.%s: %w", name, err))
			continue
		}
		if name == DefaultPolicyKey {
			def = &p
			continue
		}
		table.Set(name, p)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Config{
		Endpoint:     s.Endpoint,
		ServiceName:  s.ServiceName,
		Client:       cfg,
		Retry:        table,
		DefaultRetry: def,
	}, nil
}

// Build applies the settings on top of the named preset.
func (s TransportSettings) Build() (transport.Config, error) {
	var cfg transport.Config
	switch strings.ToLower(s.Preset) {
	case "", PresetDefault:
		cfg = transport.DefaultConfig()
	case PresetHighThroughput:
		cfg = transport.HighThroughputConfig()
	case PresetLowLatency:
		cfg = transport.LowLatencyConfig()
	case PresetConservative:
		cfg = transport.ConservativeConfig()
	default:
		return transport.Config{}, fmt.Errorf("config: unknown transport preset %q", s.Preset)
	}

	setPositive(&cfg.Timeout, s.Timeout)
	setPositive(&cfg.MaxIdleConns, s.MaxIdleConns)
	setPositive(&cfg.MaxIdleConnsPerHost, s.MaxIdleConnsPerHost)
	setPositive(&cfg.MaxConnsPerHost, s.MaxConnsPerHost)
	setPositive(&cfg.IdleConnTimeout, s.IdleConnTimeout)
	setPositive(&cfg.TLSHandshakeTimeout, s.TLSHandshakeTimeout)
	setPositive(&cfg.ResponseHeaderTimeout, s.ResponseHeaderTimeout)
	setPositive(&cfg.DialTimeout, s.DialTimeout)
	setPositive(&cfg.KeepAlive, s.KeepAlive)
	setIfPresent(&cfg.DisableKeepAlives, s.DisableKeepAlives)
	setIfPresent(&cfg.DisableCompression, s.DisableCompression)
	setIfPresent(&cfg.ForceHTTP2, s.ForceHTTP2)

	if s.ProxyURL != "" {
		u, err := url.Parse(s.ProxyURL)
		if err != nil {
			return transport.Config{}, fmt.Errorf("config: transport.proxy_url: %w", err)
		}
		cfg.ProxyURL = u
	}
	return cfg, nil
}

func setPositive[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

func setIfPresent[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
