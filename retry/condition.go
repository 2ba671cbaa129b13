package retry

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Context is the input to a retry decision.
type Context struct {
	// Request is the original, unsigned request of the call.
	Request *wire.Request

	// Err is the failure of the last attempt.
	Err error

	// Attempt is the number of retries already made (0 after the first attempt).
	Attempt int

	// Aborted is set when the call was cancelled or timed out.
	Aborted bool

	// State is the call's retry state. It may be nil.
	State *State
}

// Condition decides whether a failure is worth another attempt.
type Condition interface {
	ShouldRetry(c Context) bool
}

// ConditionFunc adapts a function to a Condition.
type ConditionFunc func(c Context) bool

// ShouldRetry calls f.
func (f ConditionFunc) ShouldRetry(c Context) bool { return f(c) }

// DefaultCondition applies the standard retry rules.
//
// Retries on:
//   - Throttling service errors (throttling codes or 429)
//   - Clock skew service errors (the next attempt is signed with a corrected clock)
//   - 5xx service errors
//   - Transient transport errors (timeouts, connection refused/reset, EOF)
//
// Does NOT retry on:
//   - Other 4xx service errors
//   - Context cancellation or deadline expiry
//   - Permanent transport errors (TLS certificate errors, NXDOMAIN)
var DefaultCondition Condition = ConditionFunc(defaultShouldRetry)

func defaultShouldRetry(c Context) bool {
	err := c.Err
	if err == nil {
		return false
	}

	var re RetryableError
	if errors.As(err, &re) {
		return re.RetryableError()
	}

	var ec ErrorCoder
	if errors.As(err, &ec) {
		if IsThrottling(err) || IsClockSkew(err) {
			return true
		}
		return ec.StatusCode() >= http.StatusInternalServerError
	}

	return IsRetryableTransportError(err)
}

// NeverRetry never retries.
var NeverRetry Condition = ConditionFunc(func(Context) bool { return false })

// OrConditions retries when any of conds does.
func OrConditions(conds ...Condition) Condition {
	return ConditionFunc(func(c Context) bool {
		for _, cond := range conds {
			if cond != nil && cond.ShouldRetry(c) {
				return true
			}
		}
		return false
	})
}

// MaxRetriesCondition wraps cond and stops once max retries were made.
func MaxRetriesCondition(cond Condition, maxRetries int) Condition {
	return ConditionFunc(func(c Context) bool {
		return c.Attempt < maxRetries && cond.ShouldRetry(c)
	})
}

// StatusCodeCondition retries service errors with one of the given statuses.
// Transient transport errors are always retried.
func StatusCodeCondition(codes ...int) Condition {
	codeSet := make(map[int]bool, len(codes))
	for _, code := range codes {
		codeSet[code] = true
	}
	return ConditionFunc(func(c Context) bool {
		if c.Err == nil {
			return false
		}
		if status := StatusCode(c.Err); status != 0 {
			return codeSet[status]
		}
		return IsRetryableTransportError(c.Err)
	})
}

// IsRetryableTransportError classifies an error that did not come from a
// service response.
func IsRetryableTransportError(err error) bool {
	if err == nil {
		return false
	}

	// Never retry intentional cancellation
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if isPermanentError(err) {
		return false
	}

	if isRetryableNetworkError(err) {
		return true
	}

	// Unknown transport failure, default to retry
	return true
}

// isRetryableNetworkError returns true for network errors that are
// typically transient and may succeed on retry.
func isRetryableNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return containsPattern(err, transientPatterns)
}

// isPermanentError returns true for errors that will not succeed on retry.
func isPermanentError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}

	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EHOSTDOWN) {
		return true
	}

	return containsPattern(err, permanentPatterns)
}

// Fallback patterns for wrapped errors where type checks fail.
var (
	transientPatterns = []string{
		"connection refused",
		"connection reset",
		"network is down",
		"network unreachable",
		"i/o timeout",
		"temporary failure",
		"server closed",
		"broken pipe",
		"eof",
	}
	permanentPatterns = []string{
		"x509:",
		"certificate",
		"tls:",
		"no route to host",
		"permission denied",
	}
)

func containsPattern(err error, patterns []string) bool {
	errStr := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
