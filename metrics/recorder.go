package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Recorder is a per-call table of timers, counters and properties keyed by
// Field. All methods are safe for concurrent use and are no-ops on a disabled
// or nil Recorder.
type Recorder struct {
	enabled bool
	logger  zerolog.Logger
	now     func() time.Time
	timing  *TimingInfo

	mu       sync.Mutex
	starts   map[Field]time.Time
	spans    map[Field][]time.Duration
	counters map[Field]int64
	props    map[Field][]string
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used by Log. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns an enabled Recorder. Its TimingInfo starts immediately.
func New(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		enabled:  true,
		logger:   zerolog.Nop(),
		now:      time.Now,
		starts:   make(map[Field]time.Time),
		spans:    make(map[Field][]time.Duration),
		counters: make(map[Field]int64),
		props:    make(map[Field][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.timing = newTimingInfo(r.now)
	return r
}

// Disabled returns a Recorder whose event methods do nothing. Its TimingInfo
// still tracks the call boundary so finalisation behaves the same either way.
func Disabled(opts ...RecorderOption) *Recorder {
	r := &Recorder{logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.timing = newTimingInfo(r.now)
	return r
}

// Enabled reports whether events are being recorded.
func (r *Recorder) Enabled() bool {
	return r != nil && r.enabled
}

// TimingInfo returns the call-spanning timing pair.
func (r *Recorder) TimingInfo() *TimingInfo {
	if r == nil {
		return nil
	}
	return r.timing
}

// StartEvent marks the start of f, replacing any unclosed start.
func (r *Recorder) StartEvent(f Field) {
	if !r.Enabled() {
		return
	}
	now := r.now()
	r.mu.Lock()
	r.starts[f] = now
	r.mu.Unlock()
}

// EndEvent closes the open start of f and records the elapsed time as one
// span. Without an open start it does nothing.
func (r *Recorder) EndEvent(f Field) {
	if !r.Enabled() {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	start, ok := r.starts[f]
	if !ok {
		return
	}
	delete(r.starts, f)
	r.spans[f] = append(r.spans[f], now.Sub(start))
}

// IncrementCounter adds one to f.
func (r *Recorder) IncrementCounter(f Field) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	r.counters[f]++
	r.mu.Unlock()
}

// SetCounter sets f to n.
func (r *Recorder) SetCounter(f Field, n int64) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	r.counters[f] = n
	r.mu.Unlock()
}

// AddProperty appends v to f.
func (r *Recorder) AddProperty(f Field, v string) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	r.props[f] = append(r.props[f], v)
	r.mu.Unlock()
}

// Counter returns the value of f.
func (r *Recorder) Counter(f Field) int64 {
	if !r.Enabled() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[f]
}

// HasCounter reports whether f was ever set or incremented.
func (r *Recorder) HasCounter(f Field) bool {
	if !r.Enabled() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.counters[f]
	return ok
}

// Spans returns a copy of the recorded durations of f.
func (r *Recorder) Spans(f Field) []time.Duration {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.spans[f]...)
}

// Total returns the sum of the recorded durations of f.
func (r *Recorder) Total(f Field) time.Duration {
	var total time.Duration
	for _, d := range r.Spans(f) {
		total += d
	}
	return total
}

// Open reports whether f has a start without a matching end.
func (r *Recorder) Open(f Field) bool {
	if !r.Enabled() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.starts[f]
	return ok
}

// Properties returns a copy of the values added to f.
func (r *Recorder) Properties(f Field) []string {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.props[f]...)
}

// Property returns the last value added to f.
func (r *Recorder) Property(f Field) string {
	p := r.Properties(f)
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Log writes the recorder contents as one debug event. It has no effect on
// the recorded state and can be called any number of times.
func (r *Recorder) Log() {
	if !r.Enabled() {
		return
	}
	e := r.logger.Debug()
	if e == nil {
		return
	}

	r.mu.Lock()
	for _, f := range sortedKeys(r.spans) {
		e = e.Durs(f.String(), r.spans[f])
	}
	for _, f := range sortedKeys(r.counters) {
		e = e.Int64(f.String(), r.counters[f])
	}
	for _, f := range sortedKeys(r.props) {
		e = e.Strs(f.String(), r.props[f])
	}
	r.mu.Unlock()

	e.Dur("ClientExecuteTimeTotal", r.timing.Duration()).Msg("request metrics")
}

// String renders the contents as comma separated key=value pairs.
func (r *Recorder) String() string {
	if !r.Enabled() {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	parts := make([]string, 0, len(r.spans)+len(r.counters)+len(r.props))
	for _, f := range sortedKeys(r.spans) {
		ds := make([]string, len(r.spans[f]))
		for i, d := range r.spans[f] {
			ds[i] = d.String()
		}
		parts = append(parts, fmt.Sprintf("%s=[%s]", f, strings.Join(ds, ", ")))
	}
	for _, f := range sortedKeys(r.counters) {
		parts = append(parts, fmt.Sprintf("%s=%d", f, r.counters[f]))
	}
	for _, f := range sortedKeys(r.props) {
		parts = append(parts, fmt.Sprintf("%s=%s", f, strings.Join(r.props[f], ",")))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[Field]V) []Field {
	keys := make([]Field, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
