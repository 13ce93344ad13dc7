package usecase

import (
	"strings"

	"github.com/kirillkom/document-enricher/internal/core/ports"
)

const truncationMarker = "..."

type subtaskTemplate struct {
	field           string
	maxWords        int
	maxOutputTokens int
	temperature     float64
	prompt          func(text string) string
}

var (
	summaryTask = subtaskTemplate{
		field:           "summary",
		maxWords:        4000,
		maxOutputTokens: 500,
		temperature:     0.7,
		prompt:          buildSummaryPrompt,
	}
	keywordsTask = subtaskTemplate{
		field:           "keywords",
		maxWords:        2000,
		maxOutputTokens: 100,
		temperature:     0.5,
		prompt:          buildKeywordsPrompt,
	}
	insightsTask = subtaskTemplate{
		field:           "insights",
		maxWords:        3000,
		maxOutputTokens: 400,
		temperature:     0.7,
		prompt:          buildInsightsPrompt,
	}
)

func (s subtaskTemplate) request(content string) ports.GenerationRequest {
	return ports.GenerationRequest{
		Prompt:          s.prompt(truncateWords(content, s.maxWords)),
		MaxOutputTokens: s.maxOutputTokens,
		Temperature:     s.temperature,
	}
}

// truncateWords keeps the first maxWords whitespace-delimited words and appends
// the truncation marker when anything was cut.
func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + truncationMarker
}

func buildSummaryPrompt(text string) string {
	return `Summarize the following document in 2-3 concise paragraphs.
Focus on the main ideas and the most important details. Reply with the summary only.

Document:
` + text
}

func buildKeywordsPrompt(text string) string {
	return `Extract 5-10 keywords or key phrases that best describe the following document.
Reply with a single line of comma-separated keywords and nothing else.

Document:
` + text
}

func buildInsightsPrompt(text string) string {
	return `Read the following document and list 3-5 key takeaways or insights.
Each takeaway should be one or two sentences. Reply with the takeaways only.

Document:
` + text
}

// parseKeywords splits a comma-separated reply, trimming entries and dropping
// empty ones. Order is preserved and duplicates are kept.
func parseKeywords(reply string) []string {
	parts := strings.Split(reply, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		keyword := strings.TrimSpace(part)
		if keyword == "" {
			continue
		}
		out = append(out, keyword)
	}
	return out
}
