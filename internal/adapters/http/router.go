package httpadapter

import (
	"net/http"
	"time"

	"github.com/kirillkom/document-enricher/internal/config"
	"github.com/kirillkom/document-enricher/internal/core/ports"
	"github.com/kirillkom/document-enricher/internal/observability/metrics"
)

const serviceName = "enrich-api"

type Dependencies struct {
	Enricher  ports.DocumentEnricher
	Batch     ports.BatchEnricher
	Queue     ports.EnrichmentQueuer
	Versions  ports.VersionReader
	Publisher ports.PagePublisher
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	cfg  config.Config
	deps Dependencies
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	return &Router{cfg: cfg, deps: deps}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents/{document_id}/enrich", rt.enrichDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}/enrichments", rt.listVersions)
	mux.HandleFunc("GET /v1/documents/{document_id}/enrichments/active", rt.getActiveVersion)
	mux.HandleFunc("GET /v1/documents/{document_id}/enrichments/{version}", rt.getVersion)

	mux.HandleFunc("POST /v1/enrichments/batch", rt.runBatch)
	mux.HandleFunc("POST /v1/enrichments/queue", rt.enqueue)
	mux.HandleFunc("POST /v1/enrichments/{version_id}/publish", rt.publish)
	mux.HandleFunc("GET /v1/enrichments/{version_id}/publish-records", rt.listPublishRecords)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
