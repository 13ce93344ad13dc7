package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records enrichment and publishing outcomes.
type PipelineMetrics struct {
	service string

	enrichTotal     *prometheus.CounterVec
	enrichDuration  *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	subtaskFailures *prometheus.CounterVec
	batchItems      *prometheus.CounterVec
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	enrichTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "runs_total",
			Help:      "Total enrichment runs by status.",
		},
		[]string{"service", "status"},
	)
	enrichDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "duration_seconds",
			Help:      "Enrichment run duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by the generative model for successful sub-tasks.",
		},
		[]string{"service"},
	)
	subtaskFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "subtask_failures_total",
			Help:      "Failed enrichment sub-tasks by field.",
		},
		[]string{"service", "field"},
	)
	batchItems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items processed by status.",
		},
		[]string{"service", "status"},
	)
	publishTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "attempts_total",
			Help:      "Publish attempts by status.",
		},
		[]string{"service", "status"},
	)
	publishDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "duration_seconds",
			Help:      "Remote page creation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)

	registerer.MustRegister(
		enrichTotal,
		enrichDuration,
		tokensTotal,
		subtaskFailures,
		batchItems,
		publishTotal,
		publishDuration,
	)

	return &PipelineMetrics{
		service:         service,
		enrichTotal:     enrichTotal,
		enrichDuration:  enrichDuration,
		tokensTotal:     tokensTotal,
		subtaskFailures: subtaskFailures,
		batchItems:      batchItems,
		publishTotal:    publishTotal,
		publishDuration: publishDuration,
	}
}

func (m *PipelineMetrics) ObserveEnrichment(status string, duration time.Duration, tokens int) {
	m.enrichTotal.WithLabelValues(m.service, status).Inc()
	m.enrichDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if tokens > 0 {
		m.tokensTotal.WithLabelValues(m.service).Add(float64(tokens))
	}
}

func (m *PipelineMetrics) ObserveSubtaskFailure(field string) {
	m.subtaskFailures.WithLabelValues(m.service, field).Inc()
}

func (m *PipelineMetrics) ObserveBatchItem(status string) {
	m.batchItems.WithLabelValues(m.service, status).Inc()
}

func (m *PipelineMetrics) ObservePublish(status string, duration time.Duration) {
	m.publishTotal.WithLabelValues(m.service, status).Inc()
	m.publishDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}
