package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	analyzeTotal     *prometheus.CounterVec
	analyzeDuration  *prometheus.HistogramVec
	analyzeInFlight  prometheus.Gauge
	queueLag         *prometheus.HistogramVec
	probeFailures    *prometheus.CounterVec
	recordsReclaimed *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	analyzeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imageinsight",
			Subsystem: "worker",
			Name:      "image_analyze_total",
			Help:      "Total analyzed images by outcome.",
		},
		[]string{"service", "outcome"},
	)
	analyzeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imageinsight",
			Subsystem: "worker",
			Name:      "image_analyze_duration_seconds",
			Help:      "Image analysis duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	analyzeInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imageinsight",
			Subsystem: "worker",
			Name:      "image_analyze_in_flight",
			Help:      "Number of in-flight image analyses.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imageinsight",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between image upload and analysis start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	probeFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imageinsight",
			Subsystem: "worker",
			Name:      "probe_failures_total",
			Help:      "Total degraded detection probes by probe type.",
		},
		[]string{"service", "probe"},
	)
	recordsReclaimed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imageinsight",
			Subsystem: "worker",
			Name:      "records_reclaimed_total",
			Help:      "Total expired analysis records removed by the TTL sweep.",
		},
		[]string{"service"},
	)

	registry.MustRegister(analyzeTotal, analyzeDuration, analyzeInFlight, queueLag, probeFailures, recordsReclaimed)

	return &WorkerMetrics{
		registry:         registry,
		analyzeTotal:     analyzeTotal,
		analyzeDuration:  analyzeDuration,
		analyzeInFlight:  analyzeInFlight,
		queueLag:         queueLag,
		probeFailures:    probeFailures,
		recordsReclaimed: recordsReclaimed,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartAnalysis() {
	m.analyzeInFlight.Inc()
}

func (m *WorkerMetrics) FinishAnalysis(service, outcome string, duration time.Duration) {
	m.analyzeInFlight.Dec()
	m.analyzeTotal.WithLabelValues(service, outcome).Inc()
	m.analyzeDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordProbeFailure(service, probe string) {
	m.probeFailures.WithLabelValues(service, probe).Inc()
}

func (m *WorkerMetrics) RecordReclaimed(service string, count int64) {
	if count <= 0 {
		return
	}
	m.recordsReclaimed.WithLabelValues(service).Add(float64(count))
}

// ProbeFailures inspects a finished analysis for degraded probes.
type failedProbeLister interface {
	FailedProbes() []string
}

func (m *WorkerMetrics) RecordProbeFailures(service string, result failedProbeLister) {
	for _, probe := range result.FailedProbes() {
		m.RecordProbeFailure(service, probe)
	}
}
