package ports

import (
	"context"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

// DocumentEnricher is the inbound contract for single-document enrichment.
type DocumentEnricher interface {
	Enrich(ctx context.Context, documentID, modelID string, opts domain.EnrichmentOptions) (*domain.EnrichmentResult, error)
}

// BatchEnricher fans enrichment out over many documents.
type BatchEnricher interface {
	Run(ctx context.Context, documentIDs []string, modelID string, opts domain.EnrichmentOptions) (*domain.BatchResult, error)
}

// EnrichmentQueuer schedules enrichment for asynchronous workers.
type EnrichmentQueuer interface {
	Enqueue(ctx context.Context, documentIDs []string, modelID string, opts domain.EnrichmentOptions) (int, error)
}

// VersionReader is the inbound read model for enrichment history.
type VersionReader interface {
	GetActive(ctx context.Context, documentID string) (*domain.EnrichmentVersion, error)
	GetVersion(ctx context.Context, documentID string, version int) (*domain.EnrichmentVersion, error)
	ListVersions(ctx context.Context, documentID string) ([]domain.EnrichmentVersion, error)
}

// PagePublisher republishes an enrichment version as a remote page.
type PagePublisher interface {
	Publish(ctx context.Context, versionID, collectionID string, extra domain.PageProperties) (*domain.PublishOutcome, error)
	ListRecords(ctx context.Context, versionID string) ([]domain.PublishRecord, error)
}
