package blocks

import (
	"strings"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

const (
	defaultMaxLines     = 50
	defaultMaxTextRunes = 2000
)

// Transcoder converts line-oriented markdown into page blocks. Each non-blank
// line becomes exactly one block; nothing is merged or nested.
type Transcoder struct {
	MaxLines     int
	MaxTextRunes int
}

func NewTranscoder() *Transcoder {
	return &Transcoder{
		MaxLines:     defaultMaxLines,
		MaxTextRunes: defaultMaxTextRunes,
	}
}

func (t *Transcoder) Transcode(raw string) []domain.Block {
	maxLines := t.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}

	out := make([]domain.Block, 0)
	for _, line := range strings.Split(raw, "\n") {
		if len(out) == maxLines {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, t.classify(line))
	}
	return out
}

func (t *Transcoder) classify(line string) domain.Block {
	switch {
	case strings.HasPrefix(line, "# "):
		return domain.Heading(1, line[len("# "):])
	case strings.HasPrefix(line, "## "):
		return domain.Heading(2, line[len("## "):])
	case strings.HasPrefix(line, "### "):
		return domain.Heading(3, line[len("### "):])
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		return domain.BulletItem(line[2:])
	default:
		return domain.Paragraph(truncateRunes(line, t.maxTextRunes()))
	}
}

func (t *Transcoder) maxTextRunes() int {
	if t.MaxTextRunes <= 0 {
		return defaultMaxTextRunes
	}
	return t.MaxTextRunes
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
