// Package metrics defines the Prometheus counters, histograms, and gauges
// exposed by AdminServer's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/soulteary/metrics-kit"
)

// Metrics holds the Prometheus collectors for WPAD discovery, PAC
// evaluation, and connection handling.
type Metrics struct {
	WpadFetchAttempts   *prometheus.CounterVec
	WpadFetchDuration   *prometheus.HistogramVec
	WpadInstallCount    prometheus.Counter
	WpadRefreshCoalesced prometheus.Counter

	PacEvalDuration *prometheus.HistogramVec
	PacEvalErrors   prometheus.Counter

	ConnectionsTotal    *prometheus.CounterVec
	ActiveConnections   prometheus.Gauge
	DirectiveResolution *prometheus.CounterVec
	TunnelBytes         *prometheus.CounterVec
}

// DefaultMetrics is the process-wide metrics instance, nil until New is
// called (mirrors the teacher's pkg/httpcache.DefaultMetrics convention).
var DefaultMetrics *Metrics

// New creates and registers the metrics for this process under the given
// registry, following the builder shape demonstrated by the teacher's
// pkg/httpcache/metrics.go (Counter/Gauge/Histogram → Help → Labels →
// Build/BuildVec).
func New(registry *metrics.Registry) *Metrics {
	wpadRegistry := registry.WithSubsystem("wpad")
	pacRegistry := registry.WithSubsystem("pac")
	connRegistry := registry.WithSubsystem("connection")

	m := &Metrics{
		WpadFetchAttempts: wpadRegistry.Counter("fetch_attempts_total").
			Help("Total WPAD candidate fetch attempts").
			Labels("outcome").
			BuildVec(),

		WpadFetchDuration: wpadRegistry.Histogram("fetch_duration_seconds").
			Help("Duration of WPAD candidate fetches").
			Labels("outcome").
			Buckets(metrics.HTTPDurationBuckets()).
			BuildVec(),

		WpadInstallCount: wpadRegistry.Counter("install_total").
			Help("Total number of PAC script installs").
			Build(),

		WpadRefreshCoalesced: wpadRegistry.Counter("refresh_coalesced_total").
			Help("Total number of refresh triggers coalesced into an in-flight fetch").
			Build(),

		PacEvalDuration: pacRegistry.Histogram("eval_duration_seconds").
			Help("Duration of FindProxyForURL evaluations").
			Labels("result").
			Buckets([]float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}).
			BuildVec(),

		PacEvalErrors: pacRegistry.Counter("eval_errors_total").
			Help("Total number of PAC evaluation errors").
			Build(),

		ConnectionsTotal: connRegistry.Counter("accepted_total").
			Help("Total connections accepted by the listener").
			Labels("method").
			BuildVec(),

		ActiveConnections: connRegistry.Gauge("active").
			Help("Current number of connections being handled").
			Build(),

		DirectiveResolution: connRegistry.Counter("directive_total").
			Help("Total connections resolved to each directive kind").
			Labels("kind").
			BuildVec(),

		TunnelBytes: connRegistry.Counter("tunnel_bytes_total").
			Help("Total bytes relayed through CONNECT tunnels").
			Labels("direction").
			BuildVec(),
	}

	DefaultMetrics = m
	return m
}

// RecordWpadFetch records the outcome and duration of a single WPAD
// candidate fetch attempt.
func (m *Metrics) RecordWpadFetch(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	if m.WpadFetchAttempts != nil {
		m.WpadFetchAttempts.WithLabelValues(outcome).Inc()
	}
	if m.WpadFetchDuration != nil {
		m.WpadFetchDuration.WithLabelValues(outcome).Observe(durationSeconds)
	}
}

// RecordInstall records a successful PAC script install.
func (m *Metrics) RecordInstall() {
	if m != nil && m.WpadInstallCount != nil {
		m.WpadInstallCount.Inc()
	}
}

// RecordRefreshCoalesced records a refresh trigger that was folded into an
// already in-flight fetch instead of starting a new one.
func (m *Metrics) RecordRefreshCoalesced() {
	if m != nil && m.WpadRefreshCoalesced != nil {
		m.WpadRefreshCoalesced.Inc()
	}
}

// RecordPacEval records the duration and result of a FindProxyForURL call.
func (m *Metrics) RecordPacEval(result string, durationSeconds float64) {
	if m == nil || m.PacEvalDuration == nil {
		return
	}
	m.PacEvalDuration.WithLabelValues(result).Observe(durationSeconds)
	if result == "error" && m.PacEvalErrors != nil {
		m.PacEvalErrors.Inc()
	}
}

// RecordConnectionAccepted records an accepted connection by HTTP method.
func (m *Metrics) RecordConnectionAccepted(method string) {
	if m != nil && m.ConnectionsTotal != nil {
		m.ConnectionsTotal.WithLabelValues(method).Inc()
	}
}

// RecordDirective records which ProxyDirective kind a connection resolved to.
func (m *Metrics) RecordDirective(kind string) {
	if m != nil && m.DirectiveResolution != nil {
		m.DirectiveResolution.WithLabelValues(kind).Inc()
	}
}

// IncrementActiveConnections increments the in-flight connection gauge.
func (m *Metrics) IncrementActiveConnections() {
	if m != nil && m.ActiveConnections != nil {
		m.ActiveConnections.Inc()
	}
}

// DecrementActiveConnections decrements the in-flight connection gauge.
func (m *Metrics) DecrementActiveConnections() {
	if m != nil && m.ActiveConnections != nil {
		m.ActiveConnections.Dec()
	}
}

// RecordTunnelBytes accumulates bytes relayed through a CONNECT tunnel in
// the given direction ("client_to_upstream" or "upstream_to_client").
func (m *Metrics) RecordTunnelBytes(direction string, n int64) {
	if m != nil && m.TunnelBytes != nil {
		m.TunnelBytes.WithLabelValues(direction).Add(float64(n))
	}
}
