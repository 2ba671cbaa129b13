package client

import (
	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Hook observes a call at fixed pipeline stages. Hooks run synchronously on
// the call's goroutine, client-level hooks first, in registration order.
//
// BeforeMarshalling may replace the input; the returned value must have the
// input's type. An error from BeforeMarshalling or AfterResponse ends the call
// with a KindHook error. AfterError runs once for a failed call that produced
// a request.
type Hook interface {
	BeforeMarshalling(input any) (any, error)
	AfterResponse(req *wire.Request, resp *wire.Response) error
	AfterError(req *wire.Request, resp *wire.Response, err error)
}

// Compile-time interface check.
var _ Hook = HookFuncs{}

// HookFuncs adapts functions to a Hook. Nil functions are skipped.
type HookFuncs struct {
	BeforeMarshallingFunc func(input any) (any, error)
	AfterResponseFunc     func(req *wire.Request, resp *wire.Response) error
	AfterErrorFunc        func(req *wire.Request, resp *wire.Response, err error)
}

// BeforeMarshalling implements Hook.
func (h HookFuncs) BeforeMarshalling(input any) (any, error) {
	if h.BeforeMarshallingFunc == nil {
		return input, nil
	}
	return h.BeforeMarshallingFunc(input)
}

// AfterResponse implements Hook.
func (h HookFuncs) AfterResponse(req *wire.Request, resp *wire.Response) error {
	if h.AfterResponseFunc == nil {
		return nil
	}
	return h.AfterResponseFunc(req, resp)
}

// AfterError implements Hook.
func (h HookFuncs) AfterError(req *wire.Request, resp *wire.Response, err error) {
	if h.AfterErrorFunc != nil {
		h.AfterErrorFunc(req, resp, err)
	}
}
