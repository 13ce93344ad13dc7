package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
)

const (
	maxPageBlocks = 100
	maxPageTags   = 10

	PropertyTitle        = "Name"
	PropertyURL          = "URL"
	PropertyQualityScore = "Quality Score"
	PropertyTags         = "Tags"

	summaryIcon     = "📝"
	summaryColor    = "blue_background"
	insightsIcon    = "💡"
	insightsColor   = "yellow_background"
	insightsHeading = "Key Insights"
)

// PublishOptions tunes page assembly.
type PublishOptions struct {
	// ReserveInsightsBudget trims the document body so the insights section
	// still fits under the block cap. When false the cap is applied to the
	// concatenated sequence and a long body pushes insights out.
	ReserveInsightsBudget bool
}

type PublishPageUseCase struct {
	versions   ports.VersionStore
	docs       ports.DocumentRepository
	records    ports.PublishRecordStore
	resolver   ports.ConfigurationResolver
	transcoder ports.BlockTranscoder
	pages      ports.PageCreator
	metrics    ports.PipelineMetrics
	opts       PublishOptions
}

func NewPublishPageUseCase(
	versions ports.VersionStore,
	docs ports.DocumentRepository,
	records ports.PublishRecordStore,
	resolver ports.ConfigurationResolver,
	transcoder ports.BlockTranscoder,
	pages ports.PageCreator,
	metrics ports.PipelineMetrics,
	opts PublishOptions,
) *PublishPageUseCase {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &PublishPageUseCase{
		versions:   versions,
		docs:       docs,
		records:    records,
		resolver:   resolver,
		transcoder: transcoder,
		pages:      pages,
		metrics:    metrics,
		opts:       opts,
	}
}

// Publish turns one enrichment version into a remote page and records the
// attempt. Nothing is recorded when a lookup fails before the remote call.
func (uc *PublishPageUseCase) Publish(
	ctx context.Context,
	versionID, collectionID string,
	extra domain.PageProperties,
) (*domain.PublishOutcome, error) {
	if strings.TrimSpace(collectionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "publish", errors.New("collection id is required"))
	}

	version, doc, creds, err := uc.preflight(ctx, versionID)
	if err != nil {
		return nil, err
	}

	payload := domain.PagePayload{
		CollectionID: collectionID,
		Properties:   BuildProperties(doc, version, extra),
		Blocks:       uc.BuildBlocks(doc, version),
	}

	start := time.Now()
	page, callErr := uc.pages.CreatePage(ctx, *creds, payload)
	if callErr == nil && page == nil {
		callErr = domain.WrapError(domain.ErrExternalService, "create page", errors.New("empty page response"))
	}

	record := &domain.PublishRecord{
		ID:                  uuid.NewString(),
		EnrichmentVersionID: version.ID,
		ImportedAt:          time.Now().UTC(),
	}
	if callErr != nil {
		record.Status = domain.PublishStatusFailed
		record.ErrorMessage = callErr.Error()
	} else {
		record.Status = domain.PublishStatusCompleted
		record.RemotePageID = page.ID
		record.RemoteURL = page.URL
	}
	uc.metrics.ObservePublish(string(record.Status), time.Since(start))

	outcome := &domain.PublishOutcome{
		Success:      callErr == nil,
		RemotePageID: record.RemotePageID,
		RemoteURL:    record.RemoteURL,
	}

	if err := uc.records.CreateRecord(ctx, record); err != nil {
		persistErr := domain.WrapError(domain.ErrPersistence, "save publish record", err)
		if callErr != nil {
			persistErr = errors.Join(callErr, persistErr)
		}
		outcome.Success = false
		outcome.Error = persistErr.Error()
		return outcome, persistErr
	}
	outcome.PublishRecordID = record.ID

	if callErr != nil {
		slog.Warn("publish_failed",
			"enrichment_version_id", version.ID,
			"collection_id", collectionID,
			"publish_record_id", record.ID,
			"error", callErr,
		)
		outcome.Error = callErr.Error()
		if !domain.IsKind(callErr, domain.ErrExternalService) {
			callErr = domain.WrapError(domain.ErrExternalService, "create page", callErr)
		}
		return outcome, callErr
	}
	return outcome, nil
}

func (uc *PublishPageUseCase) ListRecords(ctx context.Context, versionID string) ([]domain.PublishRecord, error) {
	if _, err := uc.versions.GetByID(ctx, versionID); err != nil {
		return nil, fmt.Errorf("fetch enrichment version: %w", err)
	}
	return uc.records.ListByVersion(ctx, versionID)
}

func (uc *PublishPageUseCase) preflight(
	ctx context.Context,
	versionID string,
) (*domain.EnrichmentVersion, *domain.Document, *domain.PublishCredentials, error) {
	version, err := uc.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch enrichment version: %w", err)
	}
	doc, err := uc.docs.GetByID(ctx, version.DocumentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch source document: %w", err)
	}
	creds, err := uc.resolver.ResolvePublishTarget(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve publish target: %w", err)
	}
	if creds == nil {
		return nil, nil, nil, domain.WrapError(domain.ErrConfigurationMissing, "resolve publish target", errors.New("no publish target configured"))
	}
	return version, doc, creds, nil
}

// BuildProperties assembles page properties. Extra properties are merged last
// and replace same-named keys.
func BuildProperties(doc *domain.Document, version *domain.EnrichmentVersion, extra domain.PageProperties) domain.PageProperties {
	props := domain.PageProperties{
		PropertyTitle: domain.TitleProperty{Text: doc.DisplayTitle()},
	}
	if doc.URL != "" {
		props[PropertyURL] = domain.URLProperty{URL: doc.URL}
	}
	if doc.QualityScore != nil {
		props[PropertyQualityScore] = domain.NumberProperty{Value: *doc.QualityScore}
	}
	if len(version.Keywords) > 0 {
		tags := version.Keywords
		if len(tags) > maxPageTags {
			tags = tags[:maxPageTags]
		}
		props[PropertyTags] = domain.TagsProperty{Tags: append([]string(nil), tags...)}
	}
	for name, value := range extra {
		props[name] = value
	}
	return props
}

// BuildBlocks lays out summary, body and insights, capped at maxPageBlocks.
func (uc *PublishPageUseCase) BuildBlocks(doc *domain.Document, version *domain.EnrichmentVersion) []domain.Block {
	var head []domain.Block
	if version.Summary != nil {
		head = append(head,
			domain.Callout(summaryIcon, *version.Summary, summaryColor),
			domain.Divider(),
		)
	}

	body := uc.transcoder.Transcode(doc.Content)

	var tail []domain.Block
	if version.Insights != nil {
		tail = append(tail,
			domain.Divider(),
			domain.Heading(2, insightsHeading),
			domain.Callout(insightsIcon, *version.Insights, insightsColor),
		)
	}

	if uc.opts.ReserveInsightsBudget {
		budget := maxPageBlocks - len(head) - len(tail)
		if budget < 0 {
			budget = 0
		}
		if len(body) > budget {
			body = body[:budget]
		}
	}

	blocks := make([]domain.Block, 0, len(head)+len(body)+len(tail))
	blocks = append(blocks, head...)
	blocks = append(blocks, body...)
	blocks = append(blocks, tail...)
	// The default transcoder stops at 50 lines, so even with summary and
	// insights this cut only applies to transcoders configured for more.
	if len(blocks) > maxPageBlocks {
		blocks = blocks[:maxPageBlocks]
	}
	return blocks
}
