// Package metrics provides Prometheus metrics for the Moodle web-service client
// and its MCP server. It tracks remote function calls, uploads, token requests,
// tool executions and the underlying HTTP exchanges.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "moodle_ws"
)

var (
	// RequestsTotal counts total MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures request latency distribution
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "Request latency distribution by tool",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"tool"})

	// RequestInFlight tracks currently executing requests
	RequestInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being processed",
	}, []string{"tool"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})

	// RemoteCallLatency measures web-service function latency
	RemoteCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "remote_call_latency_seconds",
		Help:      "Web-service function call latency by function",
		Buckets:   prometheus.DefBuckets,
	}, []string{"function"})

	// RemoteCallsTotal counts web-service function calls
	RemoteCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "remote_calls_total",
		Help:      "Total web-service function calls by function and status",
	}, []string{"function", "status"})

	// RemoteErrors counts failed calls by error code
	RemoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "remote_errors_total",
		Help:      "Web-service errors by function and error code",
	}, []string{"function", "error_code"})

	// TokenRequestsTotal counts token.php requests
	TokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "token_requests_total",
		Help:      "Token requests by service and status",
	}, []string{"service", "status"})

	// AuthFailures counts calls rejected locally for missing credentials
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "auth_failures_total",
		Help:      "Authentication failure count by reason",
	}, []string{"reason"})

	// UploadsTotal counts draft area uploads
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "uploads_total",
		Help:      "Draft area uploads by status",
	}, []string{"status"})

	// UploadSize tracks uploaded file sizes
	UploadSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "upload_size_bytes",
		Help:      "Uploaded file size distribution in bytes",
		Buckets:   []float64{1000, 10000, 100000, 1000000, 10000000, 100000000},
	})

	// HTTPRequestsTotal counts HTTP transport requests
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	// HTTPRequestDuration measures HTTP request latency
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency distribution",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "operation"})
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRequest records a completed tool request with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	RequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordRemoteCall records a web-service function call
func RecordRemoteCall(function string, duration float64, success bool, errorCode string) {
	RemoteCallsTotal.WithLabelValues(function, statusLabel(success)).Inc()
	RemoteCallLatency.WithLabelValues(function).Observe(duration)
	if errorCode != "" {
		RemoteErrors.WithLabelValues(function, errorCode).Inc()
	}
}

// RecordTokenRequest records a token.php request
func RecordTokenRequest(service string, success bool) {
	TokenRequestsTotal.WithLabelValues(service, statusLabel(success)).Inc()
}

// RecordAuthFailure records a call rejected before reaching the network
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// RecordUpload records a draft area upload
func RecordUpload(size int64, success bool) {
	UploadsTotal.WithLabelValues(statusLabel(success)).Inc()
	if success {
		UploadSize.Observe(float64(size))
	}
}

// RecordHTTPRequest records one HTTP exchange. A status of 0 means no response.
func RecordHTTPRequest(method, operation string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, operation).Observe(duration)
}
