package wire

import (
	"io"
	"net/http"
)

// Request id headers, in lookup order.
var requestIDHeaders = []string{
	"X-Sdk-Request-Id",
	"X-Amzn-Requestid",
	"X-Amz-Request-Id",
}

// Response is the wire-level result of one attempt.
type Response struct {
	StatusCode int
	StatusText string
	Headers    http.Header
	Body       io.ReadCloser

	// Request is the attempt request that produced this response.
	Request *Request
}

// FromHTTP converts a net/http response. The body is handed over as-is.
func FromHTTP(resp *http.Response, req *Request) *Response {
	if resp == nil {
		return nil
	}
	text := http.StatusText(resp.StatusCode)
	return &Response{
		StatusCode: resp.StatusCode,
		StatusText: text,
		Headers:    resp.Header,
		Body:       resp.Body,
		Request:    req,
	}
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Header returns the first value of the named header.
func (r *Response) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// RequestID returns the service-assigned request id, if any.
func (r *Response) RequestID() string {
	for _, h := range requestIDHeaders {
		if v := r.Header(h); v != "" {
			return v
		}
	}
	return ""
}

// Close drains and closes the body so the connection can be reused.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return r.Body.Close()
}
