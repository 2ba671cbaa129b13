package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCondition(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "given no error, then no retry", err: nil, want: false},
		{name: "given throttling code on 400, then retry", err: serviceErr{"ThrottlingException", 400}, want: true},
		{name: "given 429 without code, then retry", err: serviceErr{"", 429}, want: true},
		{name: "given clock skew code, then retry", err: serviceErr{"RequestTimeTooSkewed", 403}, want: true},
		{name: "given 500, then retry", err: serviceErr{"InternalError", 500}, want: true},
		{name: "given 503, then retry", err: serviceErr{"ServiceUnavailable", 503}, want: true},
		{name: "given 400 validation error, then no retry", err: serviceErr{"ValidationException", 400}, want: false},
		{name: "given 404, then no retry", err: serviceErr{"NotFound", 404}, want: false},
		{name: "given wrapped service error, then classified by code", err: fmt.Errorf("call: %w", serviceErr{"SlowDown", 503}), want: true},
		{name: "given timeout, then retry", err: timeoutErr{}, want: true},
		{name: "given connection refused, then retry", err: syscall.ECONNREFUSED, want: true},
		{name: "given EOF, then retry", err: io.EOF, want: true},
		{name: "given context cancelled, then no retry", err: context.Canceled, want: false},
		{name: "given deadline exceeded, then no retry", err: fmt.Errorf("x: %w", context.DeadlineExceeded), want: false},
		{name: "given NXDOMAIN, then no retry", err: &net.DNSError{Err: "no such host", IsNotFound: true}, want: false},
		{name: "given certificate error, then no retry", err: &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}, want: false},
		{name: "given unknown transport error, then retry", err: errors.New("weird failure"), want: true},
		{name: "given error declaring itself terminal, then no retry", err: verdictErr(false), want: false},
		{name: "given error declaring itself retryable, then retry", err: verdictErr(true), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultCondition.ShouldRetry(Context{Err: tt.err}))
		})
	}
}

func TestConditions(t *testing.T) {
	always := ConditionFunc(func(Context) bool { return true })

	assert.False(t, NeverRetry.ShouldRetry(Context{Err: io.EOF}))
	assert.True(t, OrConditions(NeverRetry, nil, always).ShouldRetry(Context{}))
	assert.False(t, OrConditions(NeverRetry).ShouldRetry(Context{}))

	limited := MaxRetriesCondition(always, 2)
	assert.True(t, limited.ShouldRetry(Context{Attempt: 1}))
	assert.False(t, limited.ShouldRetry(Context{Attempt: 2}))

	byStatus := StatusCodeCondition(400)
	assert.True(t, byStatus.ShouldRetry(Context{Err: serviceErr{"Bad", 400}}))
	assert.False(t, byStatus.ShouldRetry(Context{Err: serviceErr{"Busy", 503}}))
	assert.True(t, byStatus.ShouldRetry(Context{Err: io.EOF}))
	assert.False(t, byStatus.ShouldRetry(Context{}))
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", serviceErr{"ExpiredToken", 400})

	assert.Equal(t, "ExpiredToken", ErrorCode(err))
	assert.Equal(t, 400, StatusCode(err))
	assert.True(t, IsExpiredToken(err))
	assert.False(t, IsThrottling(err))
	assert.False(t, IsClockSkew(err))

	assert.Empty(t, ErrorCode(io.EOF))
	assert.Zero(t, StatusCode(io.EOF))
	assert.False(t, IsThrottling(io.EOF))
}
