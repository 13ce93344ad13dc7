package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

type enrichFixture struct {
	docs      *docsFake
	resolver  *resolverFake
	generator *generatorFake
	store     *memVersionStore
	metrics   *metricsFake
	uc        *EnrichDocumentUseCase
}

func newEnrichFixture(policy EnrichPolicy) *enrichFixture {
	f := &enrichFixture{
		docs:      newDocsFake(&domain.Document{ID: "doc-1", Title: "Doc", Content: "some parsed document text"}),
		resolver:  newResolverFake(),
		generator: newGeneratorFake(),
		store:     &memVersionStore{},
		metrics:   &metricsFake{},
	}
	f.uc = NewEnrichDocumentUseCase(f.docs, f.resolver, f.generator, NewVersionManager(f.store), f.metrics, policy)
	return f
}

func TestEnrichDefaultOptionsCommitsSummaryAndKeywords(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())

	res, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success")
	}
	if res.Summary == nil || *res.Summary != "A short summary." {
		t.Fatalf("unexpected summary: %v", res.Summary)
	}
	if !reflect.DeepEqual(res.Keywords, []string{"ai", "machine learning", "nlp"}) {
		t.Fatalf("unexpected keywords: %#v", res.Keywords)
	}
	if res.Insights != nil {
		t.Fatalf("insights must not be generated by default, got %q", *res.Insights)
	}
	if res.TokensUsed != 150 {
		t.Fatalf("expected 150 tokens, got %d", res.TokensUsed)
	}
	if res.Cost != 0 {
		t.Fatalf("expected zero cost, got %v", res.Cost)
	}
	if res.EnrichmentVersionID == "" || res.Version != 1 {
		t.Fatalf("expected first version id, got id=%q version=%d", res.EnrichmentVersionID, res.Version)
	}
	if len(f.generator.calls) != 2 {
		t.Fatalf("expected 2 generation calls, got %d", len(f.generator.calls))
	}
	if got := f.resolver.modelCalls; len(got) != 1 || got[0] != "" {
		t.Fatalf("expected one default resolution, got %#v", got)
	}
	if f.generator.creds[0].ID != "model-default" {
		t.Fatalf("expected default model credentials, got %s", f.generator.creds[0].ID)
	}
}

func TestEnrichUsesSubtaskParameters(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())
	opts := domain.EnrichmentOptions{GenerateSummary: true, GenerateKeywords: true, GenerateInsights: true}

	if _, err := f.uc.Enrich(context.Background(), "doc-1", "model-alt", opts); err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}

	cases := []struct {
		subtask     string
		maxTokens   int
		temperature float64
	}{
		{"summary", 500, 0.7},
		{"keywords", 100, 0.5},
		{"insights", 400, 0.7},
	}
	for _, tc := range cases {
		req, ok := f.generator.request(tc.subtask)
		if !ok {
			t.Fatalf("expected %s generation call", tc.subtask)
		}
		if req.MaxOutputTokens != tc.maxTokens || req.Temperature != tc.temperature {
			t.Fatalf("%s: unexpected params max=%d temp=%v", tc.subtask, req.MaxOutputTokens, req.Temperature)
		}
		if !strings.Contains(req.Prompt, "some parsed document text") {
			t.Fatalf("%s: prompt does not include document text", tc.subtask)
		}
	}
	for _, creds := range f.generator.creds {
		if creds.ID != "model-alt" {
			t.Fatalf("expected explicit model credentials, got %s", creds.ID)
		}
	}
}

func TestEnrichKeywordFailureKeepsSummary(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())
	f.generator.responses["keywords"] = generation{err: errors.New("model unavailable")}

	res, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if res.Summary == nil {
		t.Fatalf("expected summary to be set")
	}
	if res.Keywords != nil {
		t.Fatalf("expected nil keywords, got %#v", res.Keywords)
	}
	if res.TokensUsed != 120 {
		t.Fatalf("expected only summary tokens (120), got %d", res.TokensUsed)
	}
	active, err := f.store.GetActive(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.Keywords != nil || active.TokensUsed != 120 {
		t.Fatalf("unexpected committed version: %+v", active)
	}
	if !reflect.DeepEqual(f.metrics.subtaskFailures, []string{"keywords"}) {
		t.Fatalf("expected keywords failure metric, got %#v", f.metrics.subtaskFailures)
	}
}

func TestEnrichTreatsEmptyRepliesAsFailures(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())
	f.generator.responses["summary"] = generation{text: "   ", tokens: 40}
	f.generator.responses["keywords"] = generation{text: " , ,", tokens: 10}

	res, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if res.Summary != nil || res.Keywords != nil {
		t.Fatalf("expected empty replies to leave fields nil, got %+v", res)
	}
	if res.TokensUsed != 0 {
		t.Fatalf("expected zero tokens, got %d", res.TokensUsed)
	}
}

func TestEnrichCommitsEmptyVersionByDefault(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())
	f.generator.responses["summary"] = generation{err: errors.New("boom")}
	f.generator.responses["keywords"] = generation{err: errors.New("boom")}

	res, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if res.Summary != nil || res.Keywords != nil || res.Insights != nil {
		t.Fatalf("expected all-null result, got %+v", res)
	}
	if res.Version != 1 {
		t.Fatalf("expected committed version 1, got %d", res.Version)
	}
}

func TestEnrichSkipsEmptyVersionWhenPolicyDisabled(t *testing.T) {
	f := newEnrichFixture(EnrichPolicy{CommitEmptyResults: false})
	f.generator.responses["summary"] = generation{err: errors.New("boom")}
	f.generator.responses["keywords"] = generation{err: errors.New("boom")}

	_, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions())
	if !domain.IsKind(err, domain.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	versions, _ := f.store.ListVersions(context.Background(), "doc-1")
	if len(versions) != 0 {
		t.Fatalf("expected no committed versions, got %d", len(versions))
	}
}

func TestEnrichReturnsNotFoundForMissingDocument(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())

	_, err := f.uc.Enrich(context.Background(), "missing", "", domain.DefaultEnrichmentOptions())
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(f.resolver.modelCalls) != 0 {
		t.Fatalf("resolver must not be called for a missing document")
	}
	if !reflect.DeepEqual(f.metrics.enrichments, []string{"error"}) {
		t.Fatalf("expected error metric, got %#v", f.metrics.enrichments)
	}
}

func TestEnrichReturnsConfigurationMissingForUnknownModel(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())

	_, err := f.uc.Enrich(context.Background(), "doc-1", "nope", domain.DefaultEnrichmentOptions())
	if !domain.IsKind(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if len(f.generator.calls) != 0 {
		t.Fatalf("no generation expected without credentials")
	}
}

func TestEnrichWrapsCommitFailureAsPersistence(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())
	f.store.commitErr = errors.New("connection reset")

	_, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions())
	if !domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestEnrichRepeatedKeepsSingleActiveVersion(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())

	const runs = 5
	for i := 0; i < runs; i++ {
		if _, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions()); err != nil {
			t.Fatalf("Enrich() run %d error = %v", i, err)
		}
	}

	versions, err := f.store.ListVersions(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != runs {
		t.Fatalf("expected %d versions, got %d", runs, len(versions))
	}
	for i, v := range versions {
		if v.Version != runs-i {
			t.Fatalf("expected descending versions, got %d at %d", v.Version, i)
		}
		if v.IsActive != (i == 0) {
			t.Fatalf("only the newest version may be active, got %+v", v)
		}
	}
}

func TestEnrichConcurrentSameDocumentKeepsInvariants(t *testing.T) {
	f := newEnrichFixture(DefaultEnrichPolicy())

	const runs = 20
	var wg sync.WaitGroup
	errs := make(chan error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.uc.Enrich(context.Background(), "doc-1", "", domain.DefaultEnrichmentOptions()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Enrich() error = %v", err)
	}

	if n := f.store.activeCount("doc-1"); n != 1 {
		t.Fatalf("expected exactly one active version, got %d", n)
	}
	versions, _ := f.store.ListVersions(context.Background(), "doc-1")
	seen := make(map[int]bool)
	for _, v := range versions {
		seen[v.Version] = true
	}
	for i := 1; i <= runs; i++ {
		if !seen[i] {
			t.Fatalf("missing version %d among %d versions", i, len(versions))
		}
	}
}

func TestTruncateWords(t *testing.T) {
	words := make([]string, 10)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, "  ")

	if got := truncateWords(text, 10); got != text {
		t.Fatalf("text within limit must be unchanged, got %q", got)
	}
	if got := truncateWords(text, 3); got != "w0 w1 w2..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestSummaryPromptTruncatesLongDocuments(t *testing.T) {
	long := strings.Repeat("word ", 4500)
	req := summaryTask.request(long)
	if !strings.HasSuffix(req.Prompt, truncationMarker) {
		t.Fatalf("expected truncation marker at the end of the prompt")
	}
	body := strings.TrimPrefix(req.Prompt, buildSummaryPrompt(""))
	if n := len(strings.Fields(strings.TrimSuffix(body, truncationMarker))); n != 4000 {
		t.Fatalf("expected 4000 words, got %d", n)
	}
}

func TestParseKeywords(t *testing.T) {
	got := parseKeywords("ai, machine learning, , nlp")
	want := []string{"ai", "machine learning", "nlp"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseKeywords() = %#v, want %#v", got, want)
	}
	if got := parseKeywords("go, Go, go"); len(got) != 3 {
		t.Fatalf("duplicates must be kept, got %#v", got)
	}
}
