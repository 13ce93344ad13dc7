package notion

import (
	"github.com/kirillkom/document-enricher/internal/core/domain"
)

// maxRichTextRunes is the API limit for a single text object.
const maxRichTextRunes = 2000

func encodeProperties(props domain.PageProperties) map[string]any {
	out := make(map[string]any, len(props))
	for name, value := range props {
		switch v := value.(type) {
		case domain.TitleProperty:
			out[name] = map[string]any{"title": richText(v.Text)}
		case domain.URLProperty:
			out[name] = map[string]any{"url": v.URL}
		case domain.NumberProperty:
			out[name] = map[string]any{"number": v.Value}
		case domain.TagsProperty:
			options := make([]map[string]any, 0, len(v.Tags))
			for _, tag := range v.Tags {
				options = append(options, map[string]any{"name": tag})
			}
			out[name] = map[string]any{"multi_select": options}
		default:
			out[name] = value
		}
	}
	return out
}

func encodeBlocks(blocks []domain.Block) []map[string]any {
	out := make([]map[string]any, 0, len(blocks))
	for _, block := range blocks {
		if encoded := encodeBlock(block); encoded != nil {
			out = append(out, encoded)
		}
	}
	return out
}

func encodeBlock(block domain.Block) map[string]any {
	var kind string
	content := map[string]any{}

	switch block.Type {
	case domain.BlockHeading:
		switch block.Level {
		case 1:
			kind = "heading_1"
		case 3:
			kind = "heading_3"
		default:
			kind = "heading_2"
		}
		content["rich_text"] = richText(block.Text)
	case domain.BlockBulletItem:
		kind = "bulleted_list_item"
		content["rich_text"] = richText(block.Text)
	case domain.BlockParagraph:
		kind = "paragraph"
		content["rich_text"] = richText(block.Text)
	case domain.BlockCallout:
		kind = "callout"
		content["rich_text"] = richText(block.Text)
		if block.Icon != "" {
			content["icon"] = map[string]any{"type": "emoji", "emoji": block.Icon}
		}
		if block.Color != "" {
			content["color"] = block.Color
		}
	case domain.BlockDivider:
		kind = "divider"
	default:
		return nil
	}

	return map[string]any{
		"object": "block",
		"type":   kind,
		kind:     content,
	}
}

// richText splits text into API-sized text objects.
func richText(text string) []map[string]any {
	runes := []rune(text)
	parts := make([]map[string]any, 0, len(runes)/maxRichTextRunes+1)
	for len(runes) > maxRichTextRunes {
		parts = append(parts, textObject(string(runes[:maxRichTextRunes])))
		runes = runes[maxRichTextRunes:]
	}
	if len(runes) > 0 || len(parts) == 0 {
		parts = append(parts, textObject(string(runes)))
	}
	return parts
}

func textObject(content string) map[string]any {
	return map[string]any{
		"type": "text",
		"text": map[string]any{"content": content},
	}
}
