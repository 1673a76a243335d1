// Package metrics records bridge activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the bridge reports to. Nop discards everything.
type Recorder interface {
	// ObserveInvocation records a finished agent run. code is the classified
	// error code, empty on success.
	ObserveInvocation(code string, duration time.Duration)
	// IncRateLimited counts a submit rejected by the rate limiter.
	IncRateLimited()
	// ObserveDiff records one diff aggregation.
	ObserveDiff(marker string, files, failed int, duration time.Duration)
	// IncRevert counts a revert attempt.
	IncRevert(success bool)
	// ObserveHTTP records one handled request.
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

// PrometheusRecorder implements Recorder on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	rateLimitedTotal   prometheus.Counter
	diffRequestsTotal  *prometheus.CounterVec
	diffFilesTotal     *prometheus.CounterVec
	diffDuration       prometheus.Histogram
	revertsTotal       *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// agentBuckets spans quick failures up to the agent timeout.
var agentBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120}

// NewPrometheusRecorder creates a recorder with Go and process collectors
// registered alongside the bridge metrics.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		invocationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_invocations_total",
				Help: "Agent invocations by status and error code",
			},
			[]string{"status", "error_code"},
		),
		invocationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devbridge_invocation_duration_seconds",
				Help:    "Wall time of agent invocations",
				Buckets: agentBuckets,
			},
			[]string{"status"},
		),
		rateLimitedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "devbridge_rate_limited_total",
				Help: "Submissions rejected by the rate limiter",
			},
		),
		diffRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_diff_requests_total",
				Help: "Diff aggregations by result marker",
			},
			[]string{"marker"},
		),
		diffFilesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_diff_files_total",
				Help: "Files reported by diff aggregations",
			},
			[]string{"result"},
		),
		diffDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "devbridge_diff_duration_seconds",
				Help:    "Duration of diff aggregations that consulted the VCS",
				Buckets: prometheus.DefBuckets,
			},
		),
		revertsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_reverts_total",
				Help: "File revert attempts by status",
			},
			[]string{"status"},
		),
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devbridge_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// ObserveInvocation implements Recorder.
func (p *PrometheusRecorder) ObserveInvocation(code string, duration time.Duration) {
	status := statusLabel(code == "")
	p.invocationsTotal.WithLabelValues(status, code).Inc()
	p.invocationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncRateLimited implements Recorder.
func (p *PrometheusRecorder) IncRateLimited() {
	p.rateLimitedTotal.Inc()
}

// ObserveDiff implements Recorder.
func (p *PrometheusRecorder) ObserveDiff(marker string, files, failed int, duration time.Duration) {
	p.diffRequestsTotal.WithLabelValues(marker).Inc()
	if files > 0 {
		p.diffFilesTotal.WithLabelValues("ok").Add(float64(files - failed))
		p.diffFilesTotal.WithLabelValues("error").Add(float64(failed))
	}
	if duration > 0 {
		p.diffDuration.Observe(duration.Seconds())
	}
}

// IncRevert implements Recorder.
func (p *PrometheusRecorder) IncRevert(success bool) {
	p.revertsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// ObserveHTTP implements Recorder.
func (p *PrometheusRecorder) ObserveHTTP(route, method string, status int, duration time.Duration) {
	p.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Nop is a Recorder that records nothing.
type Nop struct{}

func (Nop) ObserveInvocation(string, time.Duration)       {}
func (Nop) IncRateLimited()                               {}
func (Nop) ObserveDiff(string, int, int, time.Duration)    {}
func (Nop) IncRevert(bool)                                {}
func (Nop) ObserveHTTP(string, string, int, time.Duration) {}

var (
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = Nop{}
)
