package client

import (
	"net/http"
	"time"

	"github.com/kroma-labs/cloudsdk-go/auth"
	"github.com/kroma-labs/cloudsdk-go/metrics"
	"github.com/kroma-labs/cloudsdk-go/retry"
	"github.com/kroma-labs/cloudsdk-go/transport"
)

// ClientConfig holds the client-wide settings of a handler. The embedded
// transport.Config tunes the HTTP transport built when no transport is
// supplied.
//
// Example:
//
//	cfg := client.DefaultClientConfig()
//	cfg.Config = transport.HighThroughputConfig()
//	cfg.MaxErrorRetry = 5
type ClientConfig struct {
	transport.Config

	// MaxErrorRetry overrides the retry policy's retry count when the policy
	// honours client configuration. Negative means unset.
	//
	// Default: -1
	MaxErrorRetry int

	// RequestTimeout bounds each attempt. Zero means no limit.
	//
	// Default: 0
	RequestTimeout time.Duration

	// ClientExecutionTimeout bounds the whole call, retries and backoff
	// included. Zero means no limit.
	//
	// Default: 0
	ClientExecutionTimeout time.Duration

	// RetryCapacity is the size of the client's retry token bucket.
	// Negative disables the bucket.
	//
	// Default: retry.DefaultRetryCapacity
	RetryCapacity int

	// UserAgent is sent on every request when set.
	UserAgent string

	// Debug logs each request as a cURL command, and each response, through
	// the handler's logger at debug level.
	Debug bool
}

// DefaultClientConfig returns the standard client settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Config:        transport.DefaultConfig(),
		MaxErrorRetry: -1,
		RetryCapacity: retry.DefaultRetryCapacity,
	}
}

// RequestConfig overrides client settings for one call. The zero value
// changes nothing.
type RequestConfig struct {
	// MetricCollector takes precedence over the client-level and default
	// collectors.
	MetricCollector metrics.Collector

	// Credentials replaces the client's credentials provider.
	Credentials auth.CredentialsProvider

	// RequestTimeout and ClientExecutionTimeout replace the client values
	// when positive.
	RequestTimeout         time.Duration
	ClientExecutionTimeout time.Duration

	// Hooks run after the client-level hooks.
	Hooks []Hook

	// Headers are added to every attempt.
	Headers http.Header

	// AbortTracker lets the caller abort the call. It must not be shared
	// between calls.
	AbortTracker *AbortTracker
}

// OverrideConfigProvider is implemented by inputs that carry their own
// RequestConfig. It is used when ExecutionParams.RequestConfig is nil.
type OverrideConfigProvider interface {
	RequestConfig() RequestConfig
}

func resolveRequestConfig(explicit *RequestConfig, input any) RequestConfig {
	if explicit != nil {
		return *explicit
	}
	if p, ok := input.(OverrideConfigProvider); ok {
		return p.RequestConfig()
	}
	return RequestConfig{}
}
