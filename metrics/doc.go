// Package metrics records per-call timing and usage events for the request
// pipeline and reports them to a Collector.
//
// A Recorder is allocated per logical call and covers every attempt of that
// call. Timers follow last-start-wins semantics: starting a field twice before
// ending it moves the start point. Each start/end pair becomes one span, so a
// call retried twice records three HttpRequestTime spans.
//
// When metrics are disabled the pipeline uses Disabled(), whose methods are
// no-ops; callers never branch on the enabled state.
//
// # Collectors
//
// A Collector receives the finished Recorder once per call. Three
// implementations are provided:
//
//   - NoopCollector: disabled, the default when nothing else is configured
//   - OTelCollector: OpenTelemetry histograms and counters
//   - PrometheusCollector: Prometheus histogram and counter vectors
package metrics
