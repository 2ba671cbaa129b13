package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Config tunes the net/http transport used by HTTPTransport.
// Start from one of the presets and adjust fields as needed:
//
//	cfg := transport.DefaultConfig()
//	cfg.MaxConnsPerHost = 200
//	t := transport.New(transport.WithConfig(cfg))
type Config struct {
	// Timeout bounds a single attempt, from dial to the last body byte.
	// Zero means no limit; the client handler applies its own per-attempt
	// and per-call timeouts on top.
	//
	// Default: 0
	Timeout time.Duration

	// MaxIdleConns is the idle pool size across all hosts.
	//
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost is the idle pool size for each host. An SDK client
	// usually talks to a single endpoint, so keep it close to MaxConnsPerHost.
	//
	// Default: 50
	MaxIdleConnsPerHost int

	// MaxConnsPerHost caps idle plus active connections per host. Requests
	// beyond the cap wait for a connection and show up as pending in PoolStats.
	// Zero means unlimited.
	//
	// Default: 50
	MaxConnsPerHost int

	// IdleConnTimeout closes pooled connections idle for longer than this.
	//
	// Default: 60s
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ExpectContinueTimeout is the wait for "100 Continue" on large uploads.
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers once the
	// request is written. Zero disables it.
	//
	// Default: 0
	ResponseHeaderTimeout time.Duration

	// DialTimeout bounds TCP connection establishment.
	//
	// Default: 5s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration

	// FallbackDelay is the RFC 6555 dual-stack fallback delay. Negative
	// disables it.
	//
	// Default: 300ms
	FallbackDelay time.Duration

	// WriteBufferSize and ReadBufferSize size the per-connection buffers.
	//
	// Default: 64KB
	WriteBufferSize int
	ReadBufferSize  int

	// MaxResponseHeaderBytes limits response header size.
	//
	// Default: 0 (net/http default)
	MaxResponseHeaderBytes int64

	// DisableKeepAlives forces a new connection per request.
	DisableKeepAlives bool

	// DisableCompression stops net/http from requesting gzip. Signed
	// requests must not gain headers after signing, so this stays on.
	//
	// Default: true
	DisableCompression bool

	// ForceHTTP2 attempts HTTP/2 even with a custom dialer or TLS config.
	ForceHTTP2 bool

	// TLSConfig overrides the TLS client configuration.
	TLSConfig *tls.Config

	// ProxyURL routes every request through the proxy. When nil the
	// HTTP_PROXY, HTTPS_PROXY and NO_PROXY variables are honoured.
	ProxyURL *url.URL
}

// DefaultConfig returns balanced settings for a typical SDK client.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   50,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DialTimeout:           5 * time.Second,
		KeepAlive:             30 * time.Second,
		FallbackDelay:         300 * time.Millisecond,
		WriteBufferSize:       64 * 1024,
		ReadBufferSize:        64 * 1024,
		DisableCompression:    true,
	}
}

// HighThroughputConfig suits batch workers issuing many concurrent calls
// against one service endpoint.
//
// Key differences from DefaultConfig:
//   - Larger pool and unlimited connections per host
//   - Larger buffers
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConns = 500
	cfg.MaxIdleConnsPerHost = 200
	cfg.MaxConnsPerHost = 0
	cfg.IdleConnTimeout = 120 * time.Second
	cfg.WriteBufferSize = 128 * 1024
	cfg.ReadBufferSize = 128 * 1024
	return cfg
}

// LowLatencyConfig fails fast so the retry policy can take over sooner.
//
// Key differences from DefaultConfig:
//   - 5s attempt timeout and 3s header timeout
//   - 2s dial timeout and HTTP/2
func LowLatencyConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.TLSHandshakeTimeout = 5 * time.Second
	cfg.ExpectContinueTimeout = 500 * time.Millisecond
	cfg.ResponseHeaderTimeout = 3 * time.Second
	cfg.DialTimeout = 2 * time.Second
	cfg.KeepAlive = 15 * time.Second
	cfg.FallbackDelay = 150 * time.Millisecond
	cfg.WriteBufferSize = 32 * 1024
	cfg.ReadBufferSize = 32 * 1024
	cfg.ForceHTTP2 = true
	return cfg
}

// ConservativeConfig keeps the footprint small for short-lived processes
// or hosts running many SDK clients.
//
// Key differences from DefaultConfig:
//   - Small pool with a 30s idle timeout
//   - 4KB buffers
func ConservativeConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Second
	cfg.MaxIdleConns = 20
	cfg.MaxIdleConnsPerHost = 5
	cfg.MaxConnsPerHost = 20
	cfg.IdleConnTimeout = 30 * time.Second
	cfg.WriteBufferSize = 4 * 1024
	cfg.ReadBufferSize = 4 * 1024
	return cfg
}

// buildTransport creates the net/http transport for cfg.
func (cfg Config) buildTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:       cfg.DialTimeout,
		KeepAlive:     cfg.KeepAlive,
		FallbackDelay: cfg.FallbackDelay,
	}

	t := &http.Transport{
		DialContext:            dialer.DialContext,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:        cfg.MaxConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout:  cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		DisableKeepAlives:      cfg.DisableKeepAlives,
		DisableCompression:     cfg.DisableCompression,
		WriteBufferSize:        cfg.WriteBufferSize,
		ReadBufferSize:         cfg.ReadBufferSize,
		MaxResponseHeaderBytes: cfg.MaxResponseHeaderBytes,
		TLSClientConfig:        cfg.TLSConfig,
		ForceAttemptHTTP2:      cfg.ForceHTTP2,
	}

	if cfg.ProxyURL != nil {
		t.Proxy = http.ProxyURL(cfg.ProxyURL)
	} else {
		t.Proxy = http.ProxyFromEnvironment
	}

	return t
}
