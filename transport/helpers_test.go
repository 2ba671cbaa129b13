package transport

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

func newRequest(t *testing.T, method, rawURL string, body wire.Body) *wire.Request {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &wire.Request{
		Method:        method,
		Endpoint:      u,
		Body:          body,
		ServiceName:   "orders",
		OperationName: "GetOrder",
	}
}

// netError is a net.Error that is not a timeout.
type netError struct{ msg string }

func (e *netError) Error() string   { return e.msg }
func (e *netError) Timeout() bool   { return false }
func (e *netError) Temporary() bool { return false }
