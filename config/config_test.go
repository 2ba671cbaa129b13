package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/cloudsdk-go/client"
	"github.com/kroma-labs/cloudsdk-go/retry"
	"github.com/kroma-labs/cloudsdk-go/transport"
)

const sampleYAML = `
endpoint: https://orders.example.com
service_name: orders
user_agent: orders-app/1.0
request_timeout: 2s
client_execution_timeout: 10s
max_error_retry: 5
retry_capacity: 100
transport:
  preset: high_throughput
  max_conns_per_host: 200
  disable_compression: false
retry:
  default:
    strategy: fixed
    base_delay: 50ms
  DynamoDB:
    max_error_retry: 10
    base_delay: 25ms
`

func TestLoad(t *testing.T) {
	t.Run("given YAML source, then settings are applied", func(t *testing.T) {
		cfg, err := Load(WithReader(strings.NewReader(sampleYAML), "yaml"))
		require.NoError(t, err)

		assert.Equal(t, "https://orders.example.com", cfg.Endpoint)
		assert.Equal(t, "orders", cfg.ServiceName)
		assert.Equal(t, "orders-app/1.0", cfg.Client.UserAgent)
		assert.Equal(t, 2*time.Second, cfg.Client.RequestTimeout)
		assert.Equal(t, 10*time.Second, cfg.Client.ClientExecutionTimeout)
		assert.Equal(t, 5, cfg.Client.MaxErrorRetry)
		assert.Equal(t, 100, cfg.Client.RetryCapacity)

		assert.Equal(t, 500, cfg.Client.MaxIdleConns)
		assert.Equal(t, 200, cfg.Client.MaxConnsPerHost)
		assert.False(t, cfg.Client.DisableCompression)

		require.NotNil(t, cfg.DefaultRetry)
		assert.Equal(t, retry.Fixed(50*time.Millisecond), cfg.DefaultRetry.Backoff)

		p, ok := cfg.Retry.Lookup("dynamodb")
		require.True(t, ok)
		assert.Equal(t, 10, p.MaxErrorRetry)
		assert.Equal(t, []string{"dynamodb"}, cfg.Retry.Services())
	})

	t.Run("given no source, then defaults are returned", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, client.DefaultClientConfig(), cfg.Client)
		assert.Nil(t, cfg.DefaultRetry)
		assert.Empty(t, cfg.Retry.Services())
	})

	t.Run("given environment overrides, then they win over the file", func(t *testing.T) {
		t.Setenv("CLOUDSDK_MAX_ERROR_RETRY", "1")
		t.Setenv("CLOUDSDK_REQUEST_TIMEOUT", "750ms")
		t.Setenv("CLOUDSDK_TRANSPORT_MAX_CONNS_PER_HOST", "42")

		cfg, err := Load(WithReader(strings.NewReader(sampleYAML), "yaml"))
		require.NoError(t, err)

		assert.Equal(t, 1, cfg.Client.MaxErrorRetry)
		assert.Equal(t, 750*time.Millisecond, cfg.Client.RequestTimeout)
		assert.Equal(t, 42, cfg.Client.MaxConnsPerHost)
	})

	t.Run("given custom prefix and no file, then environment alone is read", func(t *testing.T) {
		t.Setenv("ORDERS_ENDPOINT", "https://env.example.com")
		t.Setenv("ORDERS_TRANSPORT_PRESET", "conservative")

		cfg, err := Load(WithEnvPrefix("ORDERS"))
		require.NoError(t, err)

		assert.Equal(t, "https://env.example.com", cfg.Endpoint)
		assert.Equal(t, transport.ConservativeConfig(), cfg.Client.Config)
	})

	t.Run("given config file, then it is read by extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cloudsdk.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

		cfg, err := Load(WithFile(path))
		require.NoError(t, err)

		assert.Equal(t, "orders", cfg.ServiceName)
	})

	t.Run("given missing file, then read error", func(t *testing.T) {
		_, err := Load(WithFile(filepath.Join(t.TempDir(), "missing.yaml")))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "config: read")
	})
}

func TestSettings_Build(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "given unknown preset, then error names it",
			yaml:    "transport:\n  preset: turbo\n",
			wantErr: `unknown transport preset "turbo"`,
		},
		{
			name:    "given unknown strategy, then error names the service",
			yaml:    "retry:\n  s3:\n    strategy: quadratic\n",
			wantErr: "config: retry.s3",
		},
		{
			name:    "given bad proxy url, then proxy error",
			yaml:    "transport:\n  proxy_url: \"http://bad host\"\n",
			wantErr: "transport.proxy_url",
		},
		{
			name:    "given several problems, then all are reported",
			yaml:    "transport:\n  preset: turbo\nretry:\n  s3:\n    strategy: quadratic\n",
			wantErr: "config: retry.s3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithReader(strings.NewReader(tt.yaml), "yaml"))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Options(t *testing.T) {
	t.Run("given loaded config, then handler params use it", func(t *testing.T) {
		cfg, err := Load(WithReader(strings.NewReader(sampleYAML), "yaml"))
		require.NoError(t, err)

		opts := append(cfg.Options(), client.WithAnonymous(), client.WithServiceName("dynamodb"))
		p, err := client.NewHandlerParams(opts...)
		require.NoError(t, err)

		assert.Equal(t, "orders.example.com", p.Endpoint().Host)
		assert.Equal(t, "dynamodb", p.ServiceName())
		// max_error_retry in the client config overrides the table entry.
		assert.Equal(t, 5, p.RetryPolicy().MaxErrorRetry)
		assert.Equal(t, 100, p.RetryCapacity().Available())
	})

	t.Run("given no endpoint, then caller supplies it", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		_, err = client.NewHandlerParams(cfg.Options()...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint is required")
	})
}
