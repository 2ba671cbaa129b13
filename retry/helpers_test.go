package retry

import "fmt"

// serviceErr is a minimal ErrorCoder for tests.
type serviceErr struct {
	code   string
	status int
}

func (e serviceErr) Error() string     { return fmt.Sprintf("%d %s", e.status, e.code) }
func (e serviceErr) ErrorCode() string { return e.code }
func (e serviceErr) StatusCode() int   { return e.status }

// timeoutErr is a net.Error reporting a timeout.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// verdictErr states its own retry disposition.
type verdictErr bool

func (e verdictErr) Error() string        { return "verdict" }
func (e verdictErr) RetryableError() bool { return bool(e) }
