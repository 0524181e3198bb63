package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	sessionTotal    *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	sessionRounds   *prometheus.HistogramVec

	backendRequestTotal    *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			sessionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_total",
					Help: "Total sessions by backend and terminal reason.",
				},
				[]string{"backend", "reason"},
			),
			sessionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "session_duration_seconds",
					Help:    "Session wall-clock duration in seconds by backend.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"backend"},
			),
			sessionRounds: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "session_rounds",
					Help:    "Rounds consumed per session by backend.",
					Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
				},
				[]string{"backend"},
			),
			backendRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "backend_request_total",
					Help: "Total inference requests by backend and status.",
				},
				[]string{"backend", "status"},
			),
			backendRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "backend_request_duration_seconds",
					Help:    "Inference request duration in seconds by backend.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"backend"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
		}

		prometheus.MustRegister(
			m.sessionTotal,
			m.sessionDuration,
			m.sessionRounds,
			m.backendRequestTotal,
			m.backendRequestDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler exposes the registered metrics over HTTP.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordSessionRun records one finished session.
func RecordSessionRun(backend, reason string, duration time.Duration) {
	m := getMetrics()
	m.sessionTotal.WithLabelValues(backend, reason).Inc()
	m.sessionDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordSessionRounds records the rounds a session consumed.
func RecordSessionRounds(backend string, rounds int) {
	m := getMetrics()
	m.sessionRounds.WithLabelValues(backend).Observe(float64(rounds))
}

// RecordBackendRequest records one inference request attempt.
func RecordBackendRequest(backend string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.backendRequestTotal.WithLabelValues(backend, status).Inc()
	m.backendRequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordToolExecution records one tool call execution.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}
