package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
)

// EnrichPolicy controls what the orchestrator does with partial results.
type EnrichPolicy struct {
	// CommitEmptyResults commits a version even when every enabled sub-task
	// failed, leaving all payload fields null.
	CommitEmptyResults bool
}

func DefaultEnrichPolicy() EnrichPolicy {
	return EnrichPolicy{CommitEmptyResults: true}
}

type EnrichDocumentUseCase struct {
	docs      ports.DocumentRepository
	resolver  ports.ConfigurationResolver
	generator ports.TextGenerator
	versions  *VersionManager
	metrics   ports.PipelineMetrics
	policy    EnrichPolicy
}

func NewEnrichDocumentUseCase(
	docs ports.DocumentRepository,
	resolver ports.ConfigurationResolver,
	generator ports.TextGenerator,
	versions *VersionManager,
	metrics ports.PipelineMetrics,
	policy EnrichPolicy,
) *EnrichDocumentUseCase {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &EnrichDocumentUseCase{
		docs:      docs,
		resolver:  resolver,
		generator: generator,
		versions:  versions,
		metrics:   metrics,
		policy:    policy,
	}
}

// Enrich loads the document, resolves the credential bundle (default when
// modelID is empty) and runs the enabled generation sub-tasks.
func (uc *EnrichDocumentUseCase) Enrich(
	ctx context.Context,
	documentID, modelID string,
	opts domain.EnrichmentOptions,
) (*domain.EnrichmentResult, error) {
	start := time.Now()
	result, err := uc.enrich(ctx, documentID, modelID, opts)
	status := "success"
	tokens := 0
	if err != nil {
		status = "error"
	} else {
		tokens = result.TokensUsed
	}
	uc.metrics.ObserveEnrichment(status, time.Since(start), tokens)
	return result, err
}

func (uc *EnrichDocumentUseCase) enrich(
	ctx context.Context,
	documentID, modelID string,
	opts domain.EnrichmentOptions,
) (*domain.EnrichmentResult, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	creds, err := uc.resolveModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	return uc.EnrichWithModel(ctx, doc, *creds, opts)
}

// EnrichWithModel runs the sub-tasks with an already resolved bundle and
// commits a new version once all of them have finished.
func (uc *EnrichDocumentUseCase) EnrichWithModel(
	ctx context.Context,
	doc *domain.Document,
	creds domain.ModelCredentials,
	opts domain.EnrichmentOptions,
) (*domain.EnrichmentResult, error) {
	draft := uc.generate(ctx, doc, creds, opts)

	if draft.Empty() && !uc.policy.CommitEmptyResults {
		return nil, domain.WrapError(
			domain.ErrExternalService,
			"enrich document",
			fmt.Errorf("no enrichment produced for document %s", doc.ID),
		)
	}

	version, err := uc.versions.CommitNewVersion(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("commit enrichment version: %w", err)
	}

	return &domain.EnrichmentResult{
		Success:             true,
		Summary:             version.Summary,
		Keywords:            version.Keywords,
		Insights:            version.Insights,
		TokensUsed:          version.TokensUsed,
		Cost:                version.Cost,
		EnrichmentVersionID: version.ID,
		Version:             version.Version,
	}, nil
}

func (uc *EnrichDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load document", errors.New("document id is required"))
	}
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *EnrichDocumentUseCase) resolveModel(ctx context.Context, modelID string) (*domain.ModelCredentials, error) {
	creds, err := uc.resolver.ResolveModel(ctx, strings.TrimSpace(modelID))
	if err != nil {
		return nil, fmt.Errorf("resolve model: %w", err)
	}
	if creds == nil {
		return nil, domain.WrapError(domain.ErrConfigurationMissing, "resolve model", errors.New("no model configured"))
	}
	return creds, nil
}

// generate runs the enabled sub-tasks concurrently. A failed sub-task leaves
// its field nil and contributes no tokens.
func (uc *EnrichDocumentUseCase) generate(
	ctx context.Context,
	doc *domain.Document,
	creds domain.ModelCredentials,
	opts domain.EnrichmentOptions,
) domain.EnrichmentDraft {
	draft := domain.EnrichmentDraft{
		DocumentID: doc.ID,
		ModelID:    creds.ID,
		Options:    opts,
	}

	var (
		wg                                          sync.WaitGroup
		summaryTokens, keywordTokens, insightTokens int
	)

	if opts.GenerateSummary {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, tokens, ok := uc.runText(ctx, doc, creds, summaryTask)
			if ok {
				draft.Summary = &text
				summaryTokens = tokens
			}
		}()
	}
	if opts.GenerateKeywords {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keywords, tokens, ok := uc.runKeywords(ctx, doc, creds)
			if ok {
				draft.Keywords = keywords
				keywordTokens = tokens
			}
		}()
	}
	if opts.GenerateInsights {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, tokens, ok := uc.runText(ctx, doc, creds, insightsTask)
			if ok {
				draft.Insights = &text
				insightTokens = tokens
			}
		}()
	}
	wg.Wait()

	draft.TokensUsed = summaryTokens + keywordTokens + insightTokens
	return draft
}

func (uc *EnrichDocumentUseCase) runText(
	ctx context.Context,
	doc *domain.Document,
	creds domain.ModelCredentials,
	task subtaskTemplate,
) (string, int, bool) {
	res, err := uc.call(ctx, creds, task, doc.Content)
	if err != nil {
		uc.subtaskFailed(doc.ID, task.field, err)
		return "", 0, false
	}
	return res.Text, res.TokensUsed, true
}

func (uc *EnrichDocumentUseCase) runKeywords(
	ctx context.Context,
	doc *domain.Document,
	creds domain.ModelCredentials,
) ([]string, int, bool) {
	res, err := uc.call(ctx, creds, keywordsTask, doc.Content)
	if err != nil {
		uc.subtaskFailed(doc.ID, keywordsTask.field, err)
		return nil, 0, false
	}
	keywords := parseKeywords(res.Text)
	if len(keywords) == 0 {
		uc.subtaskFailed(doc.ID, keywordsTask.field, fmt.Errorf("no keywords in reply %q", res.Text))
		return nil, 0, false
	}
	return keywords, res.TokensUsed, true
}

func (uc *EnrichDocumentUseCase) call(
	ctx context.Context,
	creds domain.ModelCredentials,
	task subtaskTemplate,
	content string,
) (ports.GenerationResult, error) {
	res, err := uc.generator.Generate(ctx, creds, task.request(content))
	if err != nil {
		return ports.GenerationResult{}, err
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return ports.GenerationResult{}, domain.WrapError(domain.ErrExternalService, "generate "+task.field, errors.New("empty response"))
	}
	if res.TokensUsed < 0 {
		res.TokensUsed = 0
	}
	return res, nil
}

func (uc *EnrichDocumentUseCase) subtaskFailed(documentID, field string, err error) {
	uc.metrics.ObserveSubtaskFailure(field)
	slog.Warn("enrichment_subtask_failed",
		"document_id", documentID,
		"field", field,
		"error", err,
	)
}
