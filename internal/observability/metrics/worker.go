package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal     *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	batchInFlight  prometheus.Gauge
	chunksInserted *prometheus.CounterVec
	chunksSkipped  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "worker",
			Name:      "ingest_batches_total",
			Help:      "Total ingestion batches by source kind and status.",
		},
		[]string{"service", "source", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faa",
			Subsystem: "worker",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Ingestion batch duration in seconds by source kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "source"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faa",
			Subsystem: "worker",
			Name:      "ingest_batches_in_flight",
			Help:      "Number of ingestion batches currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksInserted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "worker",
			Name:      "chunks_inserted_total",
			Help:      "Total chunks newly stored by ingestion.",
		},
		[]string{"service", "source"},
	)
	chunksSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faa",
			Subsystem: "worker",
			Name:      "chunks_skipped_total",
			Help:      "Total chunks skipped because they were already stored.",
		},
		[]string{"service", "source"},
	)

	registry.MustRegister(batchTotal, batchDuration, batchInFlight, chunksInserted, chunksSkipped)

	return &WorkerMetrics{
		registry:       registry,
		batchTotal:     batchTotal,
		batchDuration:  batchDuration,
		batchInFlight:  batchInFlight,
		chunksInserted: chunksInserted,
		chunksSkipped:  chunksSkipped,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(service, source string, duration time.Duration, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(service, source, status).Inc()
	m.batchDuration.WithLabelValues(service, source).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveChunks(service, source string, inserted, skipped int) {
	if inserted > 0 {
		m.chunksInserted.WithLabelValues(service, source).Add(float64(inserted))
	}
	if skipped > 0 {
		m.chunksSkipped.WithLabelValues(service, source).Add(float64(skipped))
	}
}
