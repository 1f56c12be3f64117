package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal        *prometheus.CounterVec
	queryDuration       *prometheus.HistogramVec
	strategyFallbacks   *prometheus.CounterVec
	toolCallsTotal      *prometheus.CounterVec
	answerCitations     *prometheus.HistogramVec
	heuristicPlansTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "agent",
			Name:      "queries_total",
			Help:      "Total completed queries by strategy, route and final state.",
		},
		[]string{"service", "strategy", "route", "state"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faa",
			Subsystem: "agent",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "route"},
	)
	strategyFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "retrieval",
			Name:      "strategy_fallbacks_total",
			Help:      "Total queries where an advanced strategy degraded to standard retrieval.",
		},
		[]string{"service", "strategy"},
	)
	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations by tool and outcome.",
		},
		[]string{"service", "tool", "status"},
	)
	answerCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faa",
			Subsystem: "agent",
			Name:      "answer_citations",
			Help:      "Distribution of citations attached to answers.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	heuristicPlansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "agent",
			Name:      "heuristic_plans_total",
			Help:      "Total queries routed by the deterministic fallback planner.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		queryDuration,
		strategyFallbacks,
		toolCallsTotal,
		answerCitations,
		heuristicPlansTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		queriesTotal:        queriesTotal,
		queryDuration:       queryDuration,
		strategyFallbacks:   strategyFallbacks,
		toolCallsTotal:      toolCallsTotal,
		answerCitations:     answerCitations,
		heuristicPlansTotal: heuristicPlansTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordQuery(service, strategy, route, state string, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	if route == "" {
		route = "unknown"
	}
	m.queriesTotal.WithLabelValues(service, strategy, route, state).Inc()
	m.queryDuration.WithLabelValues(service, route).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordStrategyFallback(service, strategy string) {
	m.strategyFallbacks.WithLabelValues(service, strategy).Inc()
}

func (m *HTTPServerMetrics) RecordToolCall(service, tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	m.toolCallsTotal.WithLabelValues(service, tool, status).Inc()
}

func (m *HTTPServerMetrics) RecordCitations(service string, count int) {
	m.answerCitations.WithLabelValues(service).Observe(float64(count))
}

func (m *HTTPServerMetrics) RecordHeuristicPlan(service string) {
	m.heuristicPlansTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
