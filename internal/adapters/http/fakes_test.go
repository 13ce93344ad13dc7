package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kirillkom/document-enricher/internal/config"
	"github.com/kirillkom/document-enricher/internal/core/domain"
)

type enricherFake struct {
	err   error
	calls []enrichCall
}

type enrichCall struct {
	documentID string
	modelID    string
	opts       domain.EnrichmentOptions
}

func (f *enricherFake) Enrich(_ context.Context, documentID, modelID string, opts domain.EnrichmentOptions) (*domain.EnrichmentResult, error) {
	f.calls = append(f.calls, enrichCall{documentID: documentID, modelID: modelID, opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	summary := "summary"
	return &domain.EnrichmentResult{
		Success:             true,
		Summary:             &summary,
		TokensUsed:          120,
		EnrichmentVersionID: "ver-1",
		Version:             1,
	}, nil
}

type batchFake struct {
	ids []string
}

func (f *batchFake) Run(_ context.Context, ids []string, _ string, _ domain.EnrichmentOptions) (*domain.BatchResult, error) {
	f.ids = ids
	if len(ids) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run batch", errors.New("document_ids must be a non-empty list"))
	}
	out := &domain.BatchResult{Success: true, Total: len(ids)}
	for _, id := range ids {
		item := domain.BatchItemResult{DocumentID: id}
		if id == "missing" {
			item.Error = "document not found"
			out.Failed++
		} else {
			item.Success = true
			out.Completed++
		}
		out.Results = append(out.Results, item)
	}
	return out, nil
}

type queuerFake struct {
	err    error
	queued int
}

func (f *queuerFake) Enqueue(_ context.Context, ids []string, _ string, _ domain.EnrichmentOptions) (int, error) {
	if f.err != nil {
		return f.queued, f.err
	}
	return len(ids), nil
}

type versionsFake struct {
	versions []domain.EnrichmentVersion
}

func (f *versionsFake) GetActive(_ context.Context, documentID string) (*domain.EnrichmentVersion, error) {
	for _, v := range f.versions {
		if v.DocumentID == documentID && v.IsActive {
			out := v
			return &out, nil
		}
	}
	return nil, domain.NotFoundError("get active enrichment", "active enrichment for document", documentID)
}

func (f *versionsFake) GetVersion(_ context.Context, documentID string, version int) (*domain.EnrichmentVersion, error) {
	if version <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get enrichment version", errors.New("version must be positive"))
	}
	for _, v := range f.versions {
		if v.DocumentID == documentID && v.Version == version {
			out := v
			return &out, nil
		}
	}
	return nil, domain.NotFoundError("get enrichment version", "enrichment version", documentID)
}

func (f *versionsFake) ListVersions(_ context.Context, documentID string) ([]domain.EnrichmentVersion, error) {
	out := make([]domain.EnrichmentVersion, 0)
	for _, v := range f.versions {
		if v.DocumentID == documentID {
			out = append(out, v)
		}
	}
	return out, nil
}

type publisherFake struct {
	outcome *domain.PublishOutcome
	err     error

	collectionID string
	extra        domain.PageProperties
}

func (f *publisherFake) Publish(_ context.Context, _ string, collectionID string, extra domain.PageProperties) (*domain.PublishOutcome, error) {
	f.collectionID = collectionID
	f.extra = extra
	return f.outcome, f.err
}

func (f *publisherFake) ListRecords(_ context.Context, versionID string) ([]domain.PublishRecord, error) {
	if versionID == "missing" {
		return nil, domain.NotFoundError("get enrichment version", "enrichment version", versionID)
	}
	return []domain.PublishRecord{{ID: "rec-1", EnrichmentVersionID: versionID, Status: domain.PublishStatusCompleted, ImportedAt: time.Now().UTC()}}, nil
}

type testDeps struct {
	enricher  *enricherFake
	batch     *batchFake
	queue     *queuerFake
	versions  *versionsFake
	publisher *publisherFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		enricher: &enricherFake{},
		batch:    &batchFake{},
		queue:    &queuerFake{},
		versions: &versionsFake{versions: []domain.EnrichmentVersion{
			{ID: "ver-2", DocumentID: "doc-1", Version: 2, IsActive: true},
			{ID: "ver-1", DocumentID: "doc-1", Version: 1},
		}},
		publisher: &publisherFake{outcome: &domain.PublishOutcome{Success: true, RemotePageID: "page-1", PublishRecordID: "rec-1"}},
	}
}

func (d *testDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Dependencies{
		Enricher:  d.enricher,
		Batch:     d.batch,
		Queue:     d.queue,
		Versions:  d.versions,
		Publisher: d.publisher,
	}).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestDeps().handler(cfg)
}
