package retry

import (
	"errors"
	"net/http"
)

// ErrorCoder is implemented by service errors decoded from a response.
type ErrorCoder interface {
	ErrorCode() string
	StatusCode() int
}

// RetryableError lets an error state its own retry disposition. It takes
// precedence over the default classification.
type RetryableError interface {
	RetryableError() bool
}

// Error codes that mean the service is throttling the caller.
var throttlingCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ThrottledException":                     {},
	"RequestThrottledException":              {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"TransactionInProgressException":         {},
	"RequestLimitExceeded":                   {},
	"BandwidthLimitExceeded":                 {},
	"LimitExceededException":                 {},
	"RequestThrottled":                       {},
	"SlowDown":                               {},
	"PriorRequestNotComplete":                {},
	"EC2ThrottledException":                  {},
}

// Error codes that mean the local clock disagrees with the service.
var clockSkewCodes = map[string]struct{}{
	"RequestTimeTooSkewed":      {},
	"RequestExpired":            {},
	"InvalidSignatureException": {},
	"SignatureDoesNotMatch":     {},
	"AuthFailure":               {},
	"RequestInTheFuture":        {},
}

// Error codes that mean the credentials used for signing are no longer valid.
var expiredTokenCodes = map[string]struct{}{
	"ExpiredToken":          {},
	"ExpiredTokenException": {},
	"InvalidToken":          {},
	"TokenRefreshRequired":  {},
}

// ErrorCode returns the service error code carried by err, if any.
func ErrorCode(err error) string {
	var ec ErrorCoder
	if errors.As(err, &ec) {
		return ec.ErrorCode()
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ec ErrorCoder
	if errors.As(err, &ec) {
		return ec.StatusCode()
	}
	return 0
}

// IsThrottling reports whether err is a throttling service error.
func IsThrottling(err error) bool {
	var ec ErrorCoder
	if !errors.As(err, &ec) {
		return false
	}
	if _, ok := throttlingCodes[ec.ErrorCode()]; ok {
		return true
	}
	return ec.StatusCode() == http.StatusTooManyRequests
}

// IsClockSkew reports whether err was caused by a skewed local clock.
func IsClockSkew(err error) bool {
	_, ok := clockSkewCodes[ErrorCode(err)]
	return ok
}

// IsExpiredToken reports whether err was caused by expired credentials.
func IsExpiredToken(err error) bool {
	_, ok := expiredTokenCodes[ErrorCode(err)]
	return ok
}
