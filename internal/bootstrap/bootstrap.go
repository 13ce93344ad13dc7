package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-enricher/internal/config"
	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
	"github.com/kirillkom/document-enricher/internal/core/usecase"
	"github.com/kirillkom/document-enricher/internal/infrastructure/blocks"
	"github.com/kirillkom/document-enricher/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-enricher/internal/infrastructure/publishing/notion"
	"github.com/kirillkom/document-enricher/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-enricher/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-enricher/internal/infrastructure/resilience"
	"github.com/kirillkom/document-enricher/internal/infrastructure/secrets"
	"github.com/kirillkom/document-enricher/internal/observability/metrics"
)

const defaultPublishConfigID = "default"

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Enricher  ports.DocumentEnricher
	Batch     ports.BatchEnricher
	Enqueuer  ports.EnrichmentQueuer
	Versions  ports.VersionReader
	Publisher ports.PagePublisher

	closeFn func()
}

// New wires the application. Pipeline metrics are registered on registerer;
// a nil registerer disables them.
func New(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	docs := postgres.NewDocumentRepository(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	codec, err := secrets.NewCodec(cfg.SecretKey)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init secret codec: %w", err)
	}
	credentials := postgres.NewCredentialRepository(db, codec)
	if err := seedCredentials(ctx, cfg, credentials); err != nil {
		_ = db.Close()
		return nil, err
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName:         service,
		ResilienceExecutor: resilience.NewExecutor(breakerConfig(cfg)),
		DrainTimeout:       time.Duration(cfg.WorkerRequestTimeoutSeconds)*time.Second + 30*time.Second,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	modelPolicy := breakerConfig(cfg)
	modelPolicy.RateLimitRPS = cfg.ModelRateLimitRPS
	modelPolicy.RateLimitBurst = cfg.ModelRateLimitBurst
	generator := ollama.New(resilience.NewExecutor(modelPolicy))

	pages := notion.New(notion.Options{
		BaseURL:            cfg.NotionBaseURL,
		Version:            cfg.NotionVersion,
		Timeout:            time.Duration(cfg.PublishTimeoutSeconds) * time.Second,
		ResilienceExecutor: resilience.NewExecutor(breakerConfig(cfg)),
	})

	var pipeline ports.PipelineMetrics = ports.NopMetrics{}
	if registerer != nil {
		pipeline = metrics.NewPipelineMetrics(service, registerer)
	}

	versionStore := postgres.NewEnrichmentRepository(db)
	versions := usecase.NewVersionManager(versionStore)
	enricher := usecase.NewEnrichDocumentUseCase(
		docs,
		credentials,
		generator,
		versions,
		pipeline,
		usecase.EnrichPolicy{CommitEmptyResults: cfg.EnrichCommitEmptyResults},
	)
	batch := usecase.NewBatchEnrichUseCase(enricher, pipeline, cfg.BatchConcurrency)
	publisher := usecase.NewPublishPageUseCase(
		versionStore,
		docs,
		postgres.NewPublishRecordRepository(db),
		credentials,
		blocks.NewTranscoder(),
		pages,
		pipeline,
		usecase.PublishOptions{ReserveInsightsBudget: cfg.PublishReserveInsightsBudget},
	)
	enqueuer := usecase.NewEnqueueEnrichmentUseCase(queue)

	return &App{
		Config: cfg,
		Queue:  queue,

		Enricher:  enricher,
		Batch:     batch,
		Enqueuer:  enqueuer,
		Versions:  versions,
		Publisher: publisher,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// seedCredentials stores the bundles given through configuration so a fresh
// database can enrich and publish without manual setup.
func seedCredentials(ctx context.Context, cfg config.Config, credentials *postgres.CredentialRepository) error {
	if cfg.DefaultModelID != "" {
		err := credentials.UpsertModelConfig(ctx, domain.ModelCredentials{
			ID:       cfg.DefaultModelID,
			Endpoint: cfg.OllamaURL,
			Token:    cfg.DefaultModelToken,
			Name:     cfg.DefaultModelName,
			Timeout:  time.Duration(cfg.ModelTimeoutSeconds) * time.Second,
		}, true)
		if err != nil {
			return fmt.Errorf("seed default model: %w", err)
		}
		slog.Info("model_config_seeded", "model_id", cfg.DefaultModelID, "model_name", cfg.DefaultModelName)
	}

	if cfg.NotionToken != "" {
		err := credentials.UpsertPublishConfig(ctx, defaultPublishConfigID, domain.PublishCredentials{
			Token:       cfg.NotionToken,
			WorkspaceID: cfg.NotionWorkspaceID,
		})
		if err != nil {
			return fmt.Errorf("seed publish config: %w", err)
		}
		slog.Info("publish_config_seeded", "publish_config_id", defaultPublishConfigID)
	}
	return nil
}

func breakerConfig(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		policy.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	if cfg.BreakerFailureRatio > 0 {
		policy.BreakerFailureRatio = cfg.BreakerFailureRatio
	}
	if cfg.BreakerOpenTimeoutSeconds > 0 {
		policy.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second
	}
	if cfg.BreakerHalfOpenMaxCalls > 0 {
		policy.BreakerHalfOpenMaxCalls = uint32(cfg.BreakerHalfOpenMaxCalls)
	}
	return policy
}
