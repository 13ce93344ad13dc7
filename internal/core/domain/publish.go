package domain

import "time"

type PublishStatus string

const (
	PublishStatusCompleted PublishStatus = "completed"
	PublishStatusFailed    PublishStatus = "failed"
)

// PublishRecord is the audit entry of one publish attempt.
type PublishRecord struct {
	ID                  string        `json:"id"`
	EnrichmentVersionID string        `json:"enrichment_version_id"`
	RemotePageID        string        `json:"remote_page_id,omitempty"`
	RemoteURL           string        `json:"remote_url,omitempty"`
	Status              PublishStatus `json:"status"`
	ErrorMessage        string        `json:"error_message,omitempty"`
	ImportedAt          time.Time     `json:"imported_at"`
}

// PublishOutcome is returned to callers of a publish operation.
type PublishOutcome struct {
	Success         bool   `json:"success"`
	RemotePageID    string `json:"remote_page_id,omitempty"`
	RemoteURL       string `json:"remote_url,omitempty"`
	PublishRecordID string `json:"publish_record_id,omitempty"`
	Error           string `json:"error,omitempty"`
}

// RemotePage identifies a page created in the workspace tool.
type RemotePage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type BlockType string

const (
	BlockHeading    BlockType = "heading"
	BlockBulletItem BlockType = "bullet_item"
	BlockParagraph  BlockType = "paragraph"
	BlockCallout    BlockType = "callout"
	BlockDivider    BlockType = "divider"
)

// Block is one typed unit of structured page content. Level is set for
// headings only; Icon and Color for callouts only.
type Block struct {
	Type  BlockType `json:"type"`
	Level int       `json:"level,omitempty"`
	Text  string    `json:"text,omitempty"`
	Icon  string    `json:"icon,omitempty"`
	Color string    `json:"color,omitempty"`
}

func Heading(level int, text string) Block {
	return Block{Type: BlockHeading, Level: level, Text: text}
}

func BulletItem(text string) Block {
	return Block{Type: BlockBulletItem, Text: text}
}

func Paragraph(text string) Block {
	return Block{Type: BlockParagraph, Text: text}
}

func Callout(icon, text, color string) Block {
	return Block{Type: BlockCallout, Icon: icon, Text: text, Color: color}
}

func Divider() Block {
	return Block{Type: BlockDivider}
}

// Page property values. Values of any other type are extra properties
// supplied by callers and are forwarded to the publishing client verbatim.
type (
	TitleProperty  struct{ Text string }
	URLProperty    struct{ URL string }
	NumberProperty struct{ Value float64 }
	TagsProperty   struct{ Tags []string }
)

// PageProperties maps property names to property values.
type PageProperties map[string]any

// PagePayload is everything the publishing client needs to create a page.
type PagePayload struct {
	CollectionID string
	Properties   PageProperties
	Blocks       []Block
}
