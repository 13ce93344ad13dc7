package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
)

type docsFake struct {
	docs map[string]*domain.Document
}

func newDocsFake(docs ...*domain.Document) *docsFake {
	f := &docsFake{docs: make(map[string]*domain.Document)}
	for _, doc := range docs {
		f.docs[doc.ID] = doc
	}
	return f
}

func (f *docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.NotFoundError("get document", "document", id)
	}
	copyDoc := *doc
	return &copyDoc, nil
}

type resolverFake struct {
	models  map[string]*domain.ModelCredentials
	def     string
	publish *domain.PublishCredentials

	mu           sync.Mutex
	modelCalls   []string
	publishCalls int
}

func newResolverFake() *resolverFake {
	return &resolverFake{
		models: map[string]*domain.ModelCredentials{
			"model-default": {ID: "model-default", Endpoint: "http://llm", Name: "llama", Timeout: time.Second},
			"model-alt":     {ID: "model-alt", Endpoint: "http://llm-alt", Name: "mistral", Timeout: time.Second},
		},
		def:     "model-default",
		publish: &domain.PublishCredentials{Token: "secret", WorkspaceID: "ws-1"},
	}
}

func (f *resolverFake) ResolveModel(_ context.Context, modelID string) (*domain.ModelCredentials, error) {
	f.mu.Lock()
	f.modelCalls = append(f.modelCalls, modelID)
	f.mu.Unlock()

	key := modelID
	if key == "" {
		key = f.def
	}
	creds, ok := f.models[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrConfigurationMissing, "resolve model", fmt.Errorf("model %q", modelID))
	}
	copyCreds := *creds
	return &copyCreds, nil
}

func (f *resolverFake) ResolvePublishTarget(context.Context) (*domain.PublishCredentials, error) {
	f.mu.Lock()
	f.publishCalls++
	f.mu.Unlock()
	if f.publish == nil {
		return nil, domain.WrapError(domain.ErrConfigurationMissing, "resolve publish target", errors.New("none"))
	}
	copyCreds := *f.publish
	return &copyCreds, nil
}

type generation struct {
	text   string
	tokens int
	err    error
}

// generatorFake answers by sub-task, recognized from the prompt's first line.
type generatorFake struct {
	responses map[string]generation

	mu    sync.Mutex
	calls []ports.GenerationRequest
	creds []domain.ModelCredentials
}

func newGeneratorFake() *generatorFake {
	return &generatorFake{
		responses: map[string]generation{
			"summary":  {text: "A short summary.", tokens: 120},
			"keywords": {text: "ai, machine learning, , nlp", tokens: 30},
			"insights": {text: "1. First insight.\n2. Second insight.", tokens: 80},
		},
	}
}

func subtaskOf(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Summarize"):
		return "summary"
	case strings.HasPrefix(prompt, "Extract"):
		return "keywords"
	case strings.HasPrefix(prompt, "Read the following"):
		return "insights"
	default:
		return "unknown"
	}
}

func (f *generatorFake) Generate(_ context.Context, creds domain.ModelCredentials, req ports.GenerationRequest) (ports.GenerationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.creds = append(f.creds, creds)
	f.mu.Unlock()

	resp, ok := f.responses[subtaskOf(req.Prompt)]
	if !ok {
		return ports.GenerationResult{}, errors.New("unexpected prompt")
	}
	if resp.err != nil {
		return ports.GenerationResult{}, resp.err
	}
	return ports.GenerationResult{Text: resp.text, TokensUsed: resp.tokens}, nil
}

func (f *generatorFake) request(subtask string) (ports.GenerationRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if subtaskOf(call.Prompt) == subtask {
			return call, true
		}
	}
	return ports.GenerationRequest{}, false
}

// memVersionStore mimics the transactional store: one lock around
// deactivate + max + insert.
type memVersionStore struct {
	mu        sync.Mutex
	rows      []domain.EnrichmentVersion
	commitErr error
	seq       int
}

func (s *memVersionStore) CommitVersion(_ context.Context, draft domain.EnrichmentDraft) (*domain.EnrichmentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return nil, s.commitErr
	}

	next := 0
	for i := range s.rows {
		if s.rows[i].DocumentID != draft.DocumentID {
			continue
		}
		s.rows[i].IsActive = false
		if s.rows[i].Version > next {
			next = s.rows[i].Version
		}
	}
	s.seq++
	row := domain.EnrichmentVersion{
		ID:                fmt.Sprintf("ver-%d", s.seq),
		DocumentID:        draft.DocumentID,
		ModelID:           draft.ModelID,
		Summary:           draft.Summary,
		Keywords:          draft.Keywords,
		Insights:          draft.Insights,
		ProcessingOptions: draft.Options,
		TokensUsed:        draft.TokensUsed,
		Version:           next + 1,
		IsActive:          true,
		ProcessedAt:       time.Now().UTC(),
	}
	s.rows = append(s.rows, row)
	return &row, nil
}

func (s *memVersionStore) GetByID(_ context.Context, id string) (*domain.EnrichmentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			copyRow := row
			return &copyRow, nil
		}
	}
	return nil, domain.NotFoundError("get enrichment version", "enrichment version", id)
}

func (s *memVersionStore) GetActive(_ context.Context, documentID string) (*domain.EnrichmentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.DocumentID == documentID && row.IsActive {
			copyRow := row
			return &copyRow, nil
		}
	}
	return nil, domain.NotFoundError("get active enrichment", "active enrichment for document", documentID)
}

func (s *memVersionStore) GetVersion(_ context.Context, documentID string, version int) (*domain.EnrichmentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.DocumentID == documentID && row.Version == version {
			copyRow := row
			return &copyRow, nil
		}
	}
	return nil, domain.NotFoundError("get enrichment version", "enrichment version", fmt.Sprint(version))
}

func (s *memVersionStore) ListVersions(_ context.Context, documentID string) ([]domain.EnrichmentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EnrichmentVersion, 0)
	for _, row := range s.rows {
		if row.DocumentID == documentID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *memVersionStore) activeCount(documentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.DocumentID == documentID && row.IsActive {
			n++
		}
	}
	return n
}

type recordsFake struct {
	created   []domain.PublishRecord
	createErr error
}

func (f *recordsFake) CreateRecord(_ context.Context, record *domain.PublishRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *record)
	return nil
}

func (f *recordsFake) ListByVersion(_ context.Context, versionID string) ([]domain.PublishRecord, error) {
	out := make([]domain.PublishRecord, 0)
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].EnrichmentVersionID == versionID {
			out = append(out, f.created[i])
		}
	}
	return out, nil
}

type pagesFake struct {
	page     *domain.RemotePage
	err      error
	payloads []domain.PagePayload
	creds    []domain.PublishCredentials
}

func (f *pagesFake) CreatePage(_ context.Context, creds domain.PublishCredentials, payload domain.PagePayload) (*domain.RemotePage, error) {
	f.payloads = append(f.payloads, payload)
	f.creds = append(f.creds, creds)
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

// transcoderFake turns every non-empty line into a paragraph.
type transcoderFake struct{}

func (transcoderFake) Transcode(raw string) []domain.Block {
	var out []domain.Block
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, domain.Paragraph(strings.TrimSpace(line)))
	}
	return out
}

type metricsFake struct {
	mu              sync.Mutex
	enrichments     []string
	subtaskFailures []string
	batchItems      []string
	publishes       []string
}

func (m *metricsFake) ObserveEnrichment(status string, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrichments = append(m.enrichments, status)
}

func (m *metricsFake) ObserveSubtaskFailure(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subtaskFailures = append(m.subtaskFailures, field)
}

func (m *metricsFake) ObserveBatchItem(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchItems = append(m.batchItems, status)
}

func (m *metricsFake) ObservePublish(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishes = append(m.publishes, status)
}

func strPtr(s string) *string { return &s }
