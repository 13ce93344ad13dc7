package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

const defaultModelLabel = "default"

// WorkerMetrics tracks queued enrichments per model. Requests without a
// model id are reported under "default".
type WorkerMetrics struct {
	registry *prometheus.Registry

	enrichments *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	inFlight    *prometheus.GaugeVec
	queueLag    *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		registry: registry,
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "enrichments_total",
			Help:        "Queued enrichments handled by the worker, by model and outcome.",
			ConstLabels: constLabels,
		}, []string{"model", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "enrichment_duration_seconds",
			Help:        "Time spent enriching one queued document.",
			ConstLabels: constLabels,
			Buckets:     []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"model", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "enrichment_tokens_total",
			Help:        "Model tokens consumed by committed queued enrichments.",
			ConstLabels: constLabels,
		}, []string{"model"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "enrichments_in_flight",
			Help:        "Queued enrichments currently running.",
			ConstLabels: constLabels,
		}, []string{"model"}),
		queueLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "enrichment_queue_lag_seconds",
			Help:        "Delay between enqueueing an enrichment and the worker picking it up.",
			ConstLabels: constLabels,
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"model"}),
	}
	registry.MustRegister(m.enrichments, m.duration, m.tokens, m.inFlight, m.queueLag)
	return m
}

func (m *WorkerMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BeginEnrichment records the pickup of a queued request and returns the
// callback that closes it out once Enrich returns.
func (m *WorkerMetrics) BeginEnrichment(req domain.EnrichmentRequest) func(*domain.EnrichmentResult, error) {
	model := modelLabel(req.ModelID)
	if !req.EnqueuedAt.IsZero() {
		if lag := time.Since(req.EnqueuedAt); lag >= 0 {
			m.queueLag.WithLabelValues(model).Observe(lag.Seconds())
		}
	}

	gauge := m.inFlight.WithLabelValues(model)
	gauge.Inc()
	start := time.Now()

	return func(result *domain.EnrichmentResult, err error) {
		gauge.Dec()
		outcome := enrichmentOutcome(err)
		m.enrichments.WithLabelValues(model, outcome).Inc()
		m.duration.WithLabelValues(model, outcome).Observe(time.Since(start).Seconds())
		if err == nil && result != nil && result.TokensUsed > 0 {
			m.tokens.WithLabelValues(model).Add(float64(result.TokensUsed))
		}
	}
}

func modelLabel(modelID string) string {
	if modelID == "" {
		return defaultModelLabel
	}
	return modelID
}

func enrichmentOutcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case domain.IsKind(err, domain.ErrNotFound), domain.IsKind(err, domain.ErrInvalidInput):
		return "rejected"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "failed"
	}
}
