package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "repair_dashboard"

var (
	// StatisticsRequestsTotal counts aggregation requests by cache outcome (hit, miss).
	StatisticsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statistics",
			Name:      "requests_total",
			Help:      "Statistics requests by cache outcome",
		},
		[]string{"cache"},
	)

	StatisticsComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "statistics",
			Name:      "compute_duration_seconds",
			Help:      "Time spent aggregating a record set",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	StatisticsRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "statistics",
			Name:      "records",
			Help:      "Number of records in the last computed summary",
		},
	)

	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "records",
			Help:      "Number of records in the dataset the dashboard is showing",
		},
	)

	// ChatRequestsTotal counts assistant calls by outcome (ok, error, unconfigured).
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Assistant requests by outcome",
		},
		[]string{"outcome"},
	)

	ChatRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "request_duration_seconds",
			Help:      "Completion API round trip time",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// ImportsTotal counts sheet imports by status (completed, failed).
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sheets",
			Name:      "imports_total",
			Help:      "Sheet imports by status",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal counts requests by method, route group (see
	// middleware.RouteGroup) and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route; SSE streams are excluded",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	SpanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trace",
			Name:      "span_duration_seconds",
			Help:      "Duration of finished spans by operation and status",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 60},
		},
		[]string{"operation", "status"},
	)
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
