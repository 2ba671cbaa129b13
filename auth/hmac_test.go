package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

func signingRequest(t *testing.T, body wire.Body) *wire.Request {
	t.Helper()
	u, err := url.Parse("https://orders.us-east-1.example.com")
	require.NoError(t, err)
	return &wire.Request{
		Method:       http.MethodPost,
		Endpoint:     u,
		ResourcePath: "/orders",
		Headers:      http.Header{"Content-Type": {"application/json"}},
		Query:        url.Values{"b": {"2"}, "a": {"1 2"}},
		Body:         body,
		ServiceName:  "orders",
	}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }
}

func TestHMACSigner_Sign(t *testing.T) {
	creds := Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET", SessionToken: "TOKEN"}

	t.Run("given credentials, then adds signature headers", func(t *testing.T) {
		s := NewHMACSigner("us-east-1", "", WithSigningClock(fixedClock()))
		req := signingRequest(t, wire.StringBody(`{"id":1}`))

		require.NoError(t, s.Sign(context.Background(), req, creds))

		assert.Equal(t, "20240315T103000Z", req.Headers.Get(HeaderDate))
		assert.Equal(t, "TOKEN", req.Headers.Get(HeaderSecurityToken))
		assert.Len(t, req.Headers.Get(HeaderContentSHA256), 64)

		authz := req.Headers.Get(HeaderAuthorization)
		assert.True(t, strings.HasPrefix(authz, "SDK1-HMAC-SHA256 Credential=AKID/20240315/us-east-1/orders/sdk1_request"))
		assert.Contains(t, authz, "SignedHeaders=content-type;host;x-sdk-content-sha256;x-sdk-date;x-sdk-security-token")
		assert.Contains(t, authz, "Signature=")
	})

	t.Run("given same input twice, then signature is deterministic", func(t *testing.T) {
		s := NewHMACSigner("us-east-1", "orders", WithSigningClock(fixedClock()))
		a := signingRequest(t, wire.StringBody("x"))
		b := signingRequest(t, wire.StringBody("x"))

		require.NoError(t, s.Sign(context.Background(), a, creds))
		require.NoError(t, s.Sign(context.Background(), b, creds))
		assert.Equal(t, a.Headers.Get(HeaderAuthorization), b.Headers.Get(HeaderAuthorization))

		// Re-signing a clone replaces, not appends, the signature.
		c := a.Clone()
		require.NoError(t, s.Sign(context.Background(), c, creds))
		assert.Len(t, c.Headers.Values(HeaderAuthorization), 1)
	})

	t.Run("given time offset, then signing time is corrected", func(t *testing.T) {
		s := NewHMACSigner("us-east-1", "orders", WithSigningClock(fixedClock()))
		req := signingRequest(t, nil)
		req.TimeOffset = 90 * time.Minute

		require.NoError(t, s.Sign(context.Background(), req, creds))
		assert.Equal(t, "20240315T090000Z", req.Headers.Get(HeaderDate))
	})

	t.Run("given stream body, then payload is unsigned", func(t *testing.T) {
		s := NewHMACSigner("us-east-1", "orders", WithSigningClock(fixedClock()))
		req := signingRequest(t, wire.StreamBody(strings.NewReader("data"), 4))

		require.NoError(t, s.Sign(context.Background(), req, creds))
		assert.Equal(t, UnsignedPayload, req.Headers.Get(HeaderContentSHA256))
	})

	t.Run("given rewindable body, then body is still readable after signing", func(t *testing.T) {
		s := NewHMACSigner("us-east-1", "orders", WithSigningClock(fixedClock()))
		body := wire.StringBody("payload")
		req := signingRequest(t, body)

		require.NoError(t, s.Sign(context.Background(), req, creds))
		data, err := wire.ReadAllAndRewind(body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("given anonymous credentials, then request is untouched", func(t *testing.T) {
		s := NewHMACSigner("us-east-1", "orders")
		req := signingRequest(t, nil)

		require.NoError(t, s.Sign(context.Background(), req, Anonymous()))
		assert.Empty(t, req.Headers.Get(HeaderAuthorization))
		assert.Empty(t, req.Headers.Get(HeaderDate))
	})

	t.Run("given no endpoint, then fails", func(t *testing.T) {
		s := NewHMACSigner("us-east-1", "orders")
		err := s.Sign(context.Background(), &wire.Request{}, creds)
		assert.Error(t, err)
	})
}

func TestCanonicalQuery(t *testing.T) {
	got := canonicalQuery(url.Values{"b": {"2", "1"}, "a": {"x y"}})
	assert.Equal(t, "a=x%20y&b=1&b=2", got)
	assert.Empty(t, canonicalQuery(nil))
}

func TestStaticSignerProvider(t *testing.T) {
	assert.IsType(t, NoopSigner{}, NewStaticSignerProvider(nil).Signer(nil, false))
	assert.IsType(t, NoopSigner{}, StaticSignerProvider{}.Signer(nil, true))

	s := NewHMACSigner("r", "s")
	assert.Same(t, s, NewStaticSignerProvider(s).Signer(nil, true))
}
