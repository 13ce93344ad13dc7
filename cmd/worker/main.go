package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/document-enricher/internal/bootstrap"
	"github.com/kirillkom/document-enricher/internal/config"
	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/observability/logging"
	"github.com/kirillkom/document-enricher/internal/observability/metrics"
)

const serviceName = "enrich-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, serviceName, workerMetrics.Registerer())
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	timeout := time.Duration(cfg.WorkerRequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeEnrichmentRequested(ctx, func(handlerCtx context.Context, req domain.EnrichmentRequest) error {
		finish := workerMetrics.BeginEnrichment(req)

		processCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()
		result, err := app.Enricher.Enrich(processCtx, req.DocumentID, req.ModelID, req.Options)

		finish(result, err)
		if err != nil {
			return err
		}
		slog.Info("enrichment_processed",
			"document_id", req.DocumentID,
			"enrichment_version_id", result.EnrichmentVersionID,
			"version", result.Version,
			"tokens_used", result.TokensUsed,
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
	}
}
