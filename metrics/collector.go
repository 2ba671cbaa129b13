package metrics

import (
	"context"
	"strconv"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Collector receives the finished Recorder of a call.
//
// Collect runs once per call that produced a wire request. resp is the
// response of the last attempt and is nil when that attempt got none. err is
// the error the call returned, nil on success.
// Implementations must be safe for concurrent use.
type Collector interface {
	Enabled() bool
	Collect(ctx context.Context, req *wire.Request, resp *wire.Response, rec *Recorder, err error)
}

// Compile-time interface checks.
var (
	_ Collector = NoopCollector{}
	_ Collector = CollectorFunc(nil)
	_ Collector = (*OTelCollector)(nil)
	_ Collector = (*PrometheusCollector)(nil)
)

// NoopCollector disables metrics. It is the default when no collector is
// configured anywhere.
type NoopCollector struct{}

// Enabled always returns false.
func (NoopCollector) Enabled() bool { return false }

// Collect does nothing.
func (NoopCollector) Collect(context.Context, *wire.Request, *wire.Response, *Recorder, error) {}

// CollectorFunc adapts a function to an enabled Collector.
type CollectorFunc func(ctx context.Context, req *wire.Request, resp *wire.Response, rec *Recorder, err error)

// Enabled returns true for a non-nil function.
func (f CollectorFunc) Enabled() bool { return f != nil }

// Collect calls f.
func (f CollectorFunc) Collect(ctx context.Context, req *wire.Request, resp *wire.Response, rec *Recorder, err error) {
	if f != nil {
		f(ctx, req, resp, rec, err)
	}
}

// Select returns the first non-nil collector, or NoopCollector when all are nil.
func Select(collectors ...Collector) Collector {
	for _, c := range collectors {
		if c != nil {
			return c
		}
	}
	return NoopCollector{}
}

// outcome labels a finished call for collectors.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}

// statusLabel returns the final status code as a label value.
func statusLabel(resp *wire.Response) string {
	if resp == nil {
		return "none"
	}
	return strconv.Itoa(resp.StatusCode)
}
