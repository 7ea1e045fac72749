package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// File outcome labels reported by the orchestrator.
const (
	OutcomeParsed           = "parsed"
	OutcomeCacheHit         = "cache_hit"
	OutcomeParseFailed      = "parse_failed"
	OutcomeValidationFailed = "validation_failed"
)

type BatchMetrics struct {
	registry *prometheus.Registry

	filesTotal   *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	cacheHits    prometheus.Counter
}

func NewBatchMetrics(service string) *BatchMetrics {
	registry := prometheus.NewRegistry()

	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfebatch",
			Subsystem: "batch",
			Name:      "files_total",
			Help:      "Total processed files by outcome.",
		},
		[]string{"service", "outcome"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nfebatch",
			Subsystem: "batch",
			Name:      "file_duration_seconds",
			Help:      "Per-file processing duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nfebatch",
			Subsystem: "batch",
			Name:      "files_in_flight",
			Help:      "Number of files currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nfebatch",
			Subsystem: "batch",
			Name:      "cache_hits_total",
			Help:      "Files answered from the result cache.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(filesTotal, fileDuration, inFlight, cacheHits)

	return &BatchMetrics{
		registry:     registry,
		filesTotal:   filesTotal,
		fileDuration: fileDuration,
		inFlight:     inFlight,
		cacheHits:    cacheHits,
	}
}

func (m *BatchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *BatchMetrics) StartFile() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *BatchMetrics) FinishFile(service, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.filesTotal.WithLabelValues(service, outcome).Inc()
	m.fileDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())

	if outcome == OutcomeCacheHit {
		m.cacheHits.Inc()
	}
}
