// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "instadash"

var (
	// HTTPRequests counts API requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests handled",
	}, []string{"route", "method", "status"})

	// HTTPDuration measures request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// AnalysisDuration measures full analysis runs.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Time to analyse one dataset",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// AnalysisRows tracks the size of analysed datasets.
	AnalysisRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "rows",
		Help:      "Rows per analysed dataset",
		Buckets:   prometheus.ExponentialBuckets(10, 10, 7),
	})

	// Answers counts answers by kind (chat, pivot, explain_spike) and origin
	// (computed, generated, heuristic).
	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "answers_total",
		Help:      "Answers produced by kind and origin",
	}, []string{"kind", "origin"})
)

// ObserveRequest records one handled request.
func ObserveRequest(route, method string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(took.Seconds())
}

// ObserveAnalysis records one analysis run over rows rows.
func ObserveAnalysis(rows int, took time.Duration) {
	AnalysisDuration.Observe(took.Seconds())
	AnalysisRows.Observe(float64(rows))
}

// CountAnswer records an answer of the given kind and origin.
func CountAnswer(kind, origin string) {
	Answers.WithLabelValues(kind, origin).Inc()
}
