package ports

import (
	"context"
	"time"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

// DocumentRepository reads parsed source documents.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// VersionStore persists enrichment versions. CommitVersion must deactivate the
// current active row and insert the new one as a single atomic unit.
type VersionStore interface {
	CommitVersion(ctx context.Context, draft domain.EnrichmentDraft) (*domain.EnrichmentVersion, error)
	GetByID(ctx context.Context, id string) (*domain.EnrichmentVersion, error)
	GetActive(ctx context.Context, documentID string) (*domain.EnrichmentVersion, error)
	GetVersion(ctx context.Context, documentID string, version int) (*domain.EnrichmentVersion, error)
	ListVersions(ctx context.Context, documentID string) ([]domain.EnrichmentVersion, error)
}

// PublishRecordStore persists publish attempts.
type PublishRecordStore interface {
	CreateRecord(ctx context.Context, record *domain.PublishRecord) error
	ListByVersion(ctx context.Context, versionID string) ([]domain.PublishRecord, error)
}

// ConfigurationResolver resolves decrypted credential bundles. An empty model
// id selects the default bundle. Both methods fail with ErrConfigurationMissing
// when nothing usable is configured.
type ConfigurationResolver interface {
	ResolveModel(ctx context.Context, modelID string) (*domain.ModelCredentials, error)
	ResolvePublishTarget(ctx context.Context) (*domain.PublishCredentials, error)
}

// SecretCodec encrypts and decrypts stored credentials.
type SecretCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// GenerationRequest is one prompt sent to a generative model.
type GenerationRequest struct {
	Prompt          string
	MaxOutputTokens int
	Temperature     float64
}

// GenerationResult is the generated text and its token usage.
type GenerationResult struct {
	Text       string
	TokensUsed int
}

// TextGenerator is the generative model client.
type TextGenerator interface {
	Generate(ctx context.Context, creds domain.ModelCredentials, req GenerationRequest) (GenerationResult, error)
}

// PageCreator is the publishing client.
type PageCreator interface {
	CreatePage(ctx context.Context, creds domain.PublishCredentials, payload domain.PagePayload) (*domain.RemotePage, error)
}

// BlockTranscoder turns free text into structured blocks.
type BlockTranscoder interface {
	Transcode(raw string) []domain.Block
}

// MessageQueue publishes/consumes enrichment requests.
type MessageQueue interface {
	PublishEnrichmentRequested(ctx context.Context, req domain.EnrichmentRequest) error
	SubscribeEnrichmentRequested(ctx context.Context, handler func(context.Context, domain.EnrichmentRequest) error) error
}

// PipelineMetrics observes enrichment and publishing outcomes.
type PipelineMetrics interface {
	ObserveEnrichment(status string, duration time.Duration, tokens int)
	ObserveSubtaskFailure(field string)
	ObserveBatchItem(status string)
	ObservePublish(status string, duration time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveEnrichment(string, time.Duration, int) {}
func (NopMetrics) ObserveSubtaskFailure(string)                 {}
func (NopMetrics) ObserveBatchItem(string)                      {}
func (NopMetrics) ObservePublish(string, time.Duration)         {}
