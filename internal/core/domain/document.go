package domain

import "time"

// Document is a previously parsed source document. The parser pipeline owns
// the rows; enrichment only reads them.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	URL          string    `json:"url,omitempty"`
	Content      string    `json:"content"`
	QualityScore *float64  `json:"quality_score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayTitle returns the title, falling back to the URL.
func (d *Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.URL
}
