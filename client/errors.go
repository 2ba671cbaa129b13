package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kroma-labs/cloudsdk-go/retry"
)

// Sentinel errors.
var (
	// ErrAborted is wrapped by every KindAborted error.
	ErrAborted = errors.New("client: call aborted")

	// ErrRetryCapacityExhausted is joined to the last failure when the
	// client's retry capacity refused another attempt.
	ErrRetryCapacityExhausted = errors.New("client: retry capacity exhausted")

	// ErrNonRewindableBody is returned when a request body could not be
	// replayed for a follow-up attempt.
	ErrNonRewindableBody = errors.New("client: request body cannot be rewound")

	// ErrClientExecutionTimeout is the abort cause when the whole call ran
	// past RequestConfig.ClientExecutionTimeout.
	ErrClientExecutionTimeout = errors.New("client: client execution timeout")

	// ErrRequestTimeout is the abort cause when one attempt ran past
	// RequestConfig.RequestTimeout.
	ErrRequestTimeout = errors.New("client: request timeout")

	// ErrAbortTrackerInUse is returned when an AbortTracker is reused.
	ErrAbortTrackerInUse = errors.New("client: abort tracker already bound to a call")
)

// Kind classifies where a call failed.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindMarshalling
	KindSigning
	KindTransport
	KindService
	KindAborted
	KindHandler
	KindHook
)

func (k Kind) String() string {
	switch k {
	case KindMarshalling:
		return "marshalling"
	case KindSigning:
		return "signing"
	case KindTransport:
		return "transport"
	case KindService:
		return "service"
	case KindAborted:
		return "aborted"
	case KindHandler:
		return "handler"
	case KindHook:
		return "hook"
	default:
		return "unknown"
	}
}

// Error is the single error a failed call returns.
type Error struct {
	Kind Kind

	// Op is the operation name of the call.
	Op string

	// Attempts is the number of requests sent, including redirects.
	Attempts int

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("client: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt", e.Attempts)
		if e.Attempts > 1 {
			b.WriteByte('s')
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ServiceError returns the wrapped service error, or nil.
func (e *Error) ServiceError() *ServiceError {
	var se *ServiceError
	if errors.As(e.Err, &se) {
		return se
	}
	return nil
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsAborted reports whether err ended a call by cancellation or timeout.
func IsAborted(err error) bool {
	return KindOf(err) == KindAborted || errors.Is(err, ErrAborted)
}

// Compile-time interface check.
var _ retry.ErrorCoder = (*ServiceError)(nil)

// ServiceError is a well-formed error response decoded by an
// ErrorResponseHandler.
type ServiceError struct {
	Status      int
	Code        string
	Message     string
	RequestID   string
	ServiceName string
}

// NewServiceError builds a ServiceError from a response, with code and
// message left for the caller to fill in.
func NewServiceError(status int, requestID, serviceName string) *ServiceError {
	return &ServiceError{
		Status:      status,
		RequestID:   requestID,
		ServiceName: serviceName,
	}
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	if e.ServiceName != "" {
		b.WriteString(e.ServiceName)
		b.WriteString(": ")
	}
	code := e.Code
	if code == "" {
		code = http.StatusText(e.Status)
	}
	fmt.Fprintf(&b, "%s (status %d", code, e.Status)
	if e.RequestID != "" {
		b.WriteString(", request id ")
		b.WriteString(e.RequestID)
	}
	b.WriteByte(')')
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// ErrorCode implements retry.ErrorCoder.
func (e *ServiceError) ErrorCode() string { return e.Code }

// StatusCode implements retry.ErrorCoder.
func (e *ServiceError) StatusCode() int { return e.Status }
