package transport

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// redactedHeaders never appear in debug output.
var redactedHeaders = []string{
	"Authorization",
	"X-Amz-Security-Token",
	"X-Sdk-Security-Token",
}

type debugTransport struct {
	next   Transport
	logger zerolog.Logger
}

// WithDebug logs every request as an equivalent cURL command and every
// response with its status and duration, at debug level. Credentials in
// headers are redacted.
func WithDebug(logger zerolog.Logger) Middleware {
	return func(next Transport) Transport {
		return &debugTransport{next: next, logger: logger}
	}
}

// Do implements Transport.
func (t *debugTransport) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if t.logger.GetLevel() > zerolog.DebugLevel {
		return t.next.Do(ctx, req)
	}

	t.logger.Debug().
		Str("operation", req.OperationName).
		Str("method", methodOf(req)).
		Str("url", req.URL().String()).
		Str("curl", curlCommand(req)).
		Msg("sending request")

	start := time.Now()
	resp, err := t.next.Do(ctx, req)
	if err != nil {
		t.logger.Debug().
			Err(err).
			Str("operation", req.OperationName).
			Dur("duration", time.Since(start)).
			Msg("request failed")
		return resp, err
	}

	t.logger.Debug().
		Str("operation", req.OperationName).
		Int("status", resp.StatusCode).
		Str("request_id", resp.RequestID()).
		Dur("duration", time.Since(start)).
		Msg("received response")
	return resp, nil
}

// Unwrap returns the decorated Transport.
func (t *debugTransport) Unwrap() Transport { return t.next }

// curlCommand renders req as a cURL command line. A body is included only
// when it can be read without consuming it.
//
// Example output:
//
//	curl -X POST 'https://orders.example.com/orders' -H 'Content-Type: application/json' -d '{"id":"o-1"}'
func curlCommand(req *wire.Request) string {
	parts := []string{"curl"}

	if m := methodOf(req); m != http.MethodGet {
		parts = append(parts, "-X", m)
	}
	parts = append(parts, quote(req.URL().String()))

	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range req.Headers[k] {
			if isRedacted(k) {
				v = "***"
			}
			parts = append(parts, "-H", quote(fmt.Sprintf("%s: %s", k, v)))
		}
	}

	if req.Body != nil && req.Body.Rewindable() {
		if body, err := wire.ReadAllAndRewind(req.Body); err == nil && len(body) > 0 {
			parts = append(parts, "-d", quote(string(body)))
		}
	}

	return strings.Join(parts, " ")
}

func isRedacted(header string) bool {
	return slices.ContainsFunc(redactedHeaders, func(h string) bool {
		return strings.EqualFold(h, header)
	})
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
