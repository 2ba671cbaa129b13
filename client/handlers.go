package client

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// maxErrorBody caps how much of an error response body is decoded.
const maxErrorBody = 1 << 20

// Marshaller turns a typed input into a wire request. It must not send
// anything; a failure ends the call before any attempt.
type Marshaller[In any] func(in In) (*wire.Request, error)

// ResponseHandler decodes a successful response. An error it returns ends
// the call unless the error implements retry.RetryableError and reports true.
type ResponseHandler[Out any] func(resp *wire.Response) (Out, error)

// ErrorResponseHandler decodes a non-2xx response into the error the call
// reports, typically a *ServiceError. Returning nil falls back to
// DefaultErrorResponseHandler.
type ErrorResponseHandler func(resp *wire.Response) error

// JSONMarshaller encodes the input as the JSON body of a request for the
// named operation.
func JSONMarshaller[In any](method, path, operation string) Marshaller[In] {
	return func(in In) (*wire.Request, error) {
		body, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s input: %w", operation, err)
		}
		req := &wire.Request{
			Method:        method,
			ResourcePath:  path,
			Body:          wire.BytesBody(body),
			OperationName: operation,
		}
		req.SetHeader("Content-Type", "application/json")
		return req, nil
	}
}

// JSONResponseHandler decodes a JSON response body into Out. An empty body
// yields the zero value.
func JSONResponseHandler[Out any]() ResponseHandler[Out] {
	return func(resp *wire.Response) (Out, error) {
		var out Out
		if resp.Body == nil {
			return out, nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return out, fmt.Errorf("read response body: %w", err)
		}
		if len(data) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("decode response body: %w", err)
		}
		return out, nil
	}
}

// jsonError covers the common shapes of JSON error documents.
type jsonError struct {
	Type         string `json:"__type"`
	Code         string `json:"code"`
	CodeUpper    string `json:"Code"`
	Message      string `json:"message"`
	MessageUpper string `json:"Message"`
}

// JSONErrorResponseHandler decodes JSON error documents. The error code comes
// from the X-Amzn-ErrorType header when present, else from the "__type" or
// "code" member; a "prefix#Code" form is reduced to Code.
func JSONErrorResponseHandler(serviceName string) ErrorResponseHandler {
	return func(resp *wire.Response) error {
		se := NewServiceError(resp.StatusCode, resp.RequestID(), serviceName)

		var doc jsonError
		if data := readErrorBody(resp); len(data) > 0 {
			_ = json.Unmarshal(data, &doc)
		}
		se.Code = errorCode(firstNonEmpty(resp.Header("X-Amzn-ErrorType"), doc.Type, doc.Code, doc.CodeUpper))
		se.Message = firstNonEmpty(doc.Message, doc.MessageUpper)
		return se
	}
}

type xmlError struct {
	Code      string `xml:"Code"`
	Message   string `xml:"Message"`
	RequestID string `xml:"RequestId"`
	Nested    *struct {
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	} `xml:"Error"`
}

// XMLErrorResponseHandler decodes <Error><Code/><Message/></Error> documents,
// bare or nested in an outer element.
func XMLErrorResponseHandler(serviceName string) ErrorResponseHandler {
	return func(resp *wire.Response) error {
		se := NewServiceError(resp.StatusCode, resp.RequestID(), serviceName)

		var doc xmlError
		if data := readErrorBody(resp); len(data) > 0 {
			_ = xml.Unmarshal(data, &doc)
		}
		se.Code, se.Message = doc.Code, doc.Message
		if doc.Nested != nil {
			se.Code = firstNonEmpty(se.Code, doc.Nested.Code)
			se.Message = firstNonEmpty(se.Message, doc.Nested.Message)
		}
		if se.RequestID == "" {
			se.RequestID = doc.RequestID
		}
		return se
	}
}

// DefaultErrorResponseHandler reports the status alone.
func DefaultErrorResponseHandler(serviceName string) ErrorResponseHandler {
	return func(resp *wire.Response) error {
		se := NewServiceError(resp.StatusCode, resp.RequestID(), serviceName)
		if resp.StatusCode == http.StatusTooManyRequests {
			se.Code = "TooManyRequestsException"
		}
		return se
	}
}

func readErrorBody(resp *wire.Response) []byte {
	if resp.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil
	}
	return data
}

func errorCode(raw string) string {
	if i := strings.LastIndexByte(raw, '#'); i >= 0 {
		raw = raw[i+1:]
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
