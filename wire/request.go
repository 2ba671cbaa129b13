package wire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is the wire-level form of one logical service call.
//
// Headers and Query are canonicalised multimaps. The Request produced by a
// marshaller is never handed to a transport directly; each attempt sends a
// Clone so per-attempt headers (signature, retry info) start from a clean copy.
type Request struct {
	Method       string
	Endpoint     *url.URL
	ResourcePath string
	Headers      http.Header
	Query        url.Values
	Body         Body

	// ServiceName and OperationName identify the call in metrics and logs.
	ServiceName   string
	OperationName string

	// TimeOffset is the measured difference between local time and the
	// service's clock. Signers subtract it from the signing timestamp.
	TimeOffset time.Duration
}

// SetHeader sets a header, allocating the header map if needed.
func (r *Request) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	r.Headers.Set(key, value)
}

// AddQuery appends a query parameter, allocating the map if needed.
func (r *Request) AddQuery(key, value string) {
	if r.Query == nil {
		r.Query = make(url.Values)
	}
	r.Query.Add(key, value)
}

// Rewindable reports whether the request can be sent more than once.
func (r *Request) Rewindable() bool {
	return r.Body == nil || r.Body.Rewindable()
}

// Clone returns a copy with independent headers, query and endpoint.
// The body is shared; callers rewind it before each attempt.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = r.Headers.Clone()
	if c.Headers == nil {
		c.Headers = make(http.Header)
	}
	c.Query = make(url.Values, len(r.Query))
	for k, v := range r.Query {
		c.Query[k] = append([]string(nil), v...)
	}
	if r.Endpoint != nil {
		u := *r.Endpoint
		c.Endpoint = &u
	}
	return &c
}

// URL resolves the endpoint, resource path and query into one URL.
func (r *Request) URL() *url.URL {
	var u url.URL
	if r.Endpoint != nil {
		u = *r.Endpoint
	}
	if r.ResourcePath != "" {
		base := strings.TrimSuffix(u.Path, "/")
		u.Path = base + "/" + strings.TrimPrefix(r.ResourcePath, "/")
		u.RawPath = ""
	}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}
	return &u
}

// HTTPRequest builds the net/http request for this wire request.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	if r.Endpoint == nil {
		return nil, fmt.Errorf("wire: request %s has no endpoint", r.OperationName)
	}

	var body io.Reader = http.NoBody
	contentLength := int64(0)
	if r.Body != nil && r.Body.Len() != 0 {
		body = io.NopCloser(r.Body)
		contentLength = r.Body.Len()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL().String(), body)
	if err != nil {
		return nil, fmt.Errorf("wire: build http request: %w", err)
	}
	if contentLength > 0 {
		req.ContentLength = contentLength
	} else if contentLength < 0 {
		req.ContentLength = -1
	}

	for k, v := range r.Headers {
		if strings.EqualFold(k, "Host") && len(v) > 0 {
			req.Host = v[0]
			continue
		}
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}
