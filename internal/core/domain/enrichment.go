package domain

import "time"

const (
	OptionGenerateSummary  = "generate_summary"
	OptionGenerateKeywords = "generate_keywords"
	OptionGenerateInsights = "generate_insights"
)

// EnrichmentOptions selects which generation sub-tasks run for a document.
type EnrichmentOptions struct {
	GenerateSummary  bool `json:"generate_summary"`
	GenerateKeywords bool `json:"generate_keywords"`
	GenerateInsights bool `json:"generate_insights"`
}

func DefaultEnrichmentOptions() EnrichmentOptions {
	return EnrichmentOptions{
		GenerateSummary:  true,
		GenerateKeywords: true,
		GenerateInsights: false,
	}
}

// ParseEnrichmentOptions reads the recognized flags from a loose option set.
// Unknown keys are ignored and non-boolean values keep the flag's default.
func ParseEnrichmentOptions(raw map[string]any) EnrichmentOptions {
	opts := DefaultEnrichmentOptions()
	if raw == nil {
		return opts
	}
	if v, ok := raw[OptionGenerateSummary].(bool); ok {
		opts.GenerateSummary = v
	}
	if v, ok := raw[OptionGenerateKeywords].(bool); ok {
		opts.GenerateKeywords = v
	}
	if v, ok := raw[OptionGenerateInsights].(bool); ok {
		opts.GenerateInsights = v
	}
	return opts
}

// Any reports whether at least one sub-task is enabled.
func (o EnrichmentOptions) Any() bool {
	return o.GenerateSummary || o.GenerateKeywords || o.GenerateInsights
}

// EnrichmentVersion is one immutable enrichment attempt for a document.
// Only IsActive changes after creation, when a newer version supersedes it.
type EnrichmentVersion struct {
	ID                string            `json:"id"`
	DocumentID        string            `json:"document_id"`
	ModelID           string            `json:"model_id"`
	Summary           *string           `json:"summary"`
	Keywords          []string          `json:"keywords"`
	Insights          *string           `json:"insights"`
	ProcessingOptions EnrichmentOptions `json:"processing_options"`
	TokensUsed        int               `json:"tokens_used"`
	Cost              float64           `json:"cost"`
	Version           int               `json:"version"`
	IsActive          bool              `json:"is_active"`
	ProcessedAt       time.Time         `json:"processed_at"`
}

// EnrichmentDraft carries the generated payload of a version not yet committed.
type EnrichmentDraft struct {
	DocumentID string
	ModelID    string
	Summary    *string
	Keywords   []string
	Insights   *string
	TokensUsed int
	Options    EnrichmentOptions
}

// Empty reports whether no payload field was produced.
func (d EnrichmentDraft) Empty() bool {
	return d.Summary == nil && d.Keywords == nil && d.Insights == nil
}

// EnrichmentResult is the outcome of enriching a single document.
type EnrichmentResult struct {
	Success             bool     `json:"success"`
	Summary             *string  `json:"summary,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
	Insights            *string  `json:"insights,omitempty"`
	TokensUsed          int      `json:"tokens_used"`
	Cost                float64  `json:"cost"`
	EnrichmentVersionID string   `json:"enrichment_version_id,omitempty"`
	Version             int      `json:"version,omitempty"`
	Error               string   `json:"error,omitempty"`
}

// BatchItemResult embeds the per-document outcome of a batch run.
type BatchItemResult struct {
	DocumentID string `json:"document_id"`
	EnrichmentResult
}

// BatchResult aggregates a batch run. Completed + Failed always equals Total.
type BatchResult struct {
	Success   bool              `json:"success"`
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

// EnrichmentRequest is the queued form of an enrichment call.
type EnrichmentRequest struct {
	DocumentID string            `json:"document_id"`
	ModelID    string            `json:"model_id,omitempty"`
	Options    EnrichmentOptions `json:"options"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}
