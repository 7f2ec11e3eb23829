// internal/models/document.go
package models

// SourceTag identifies which knowledge source produced a document.
type SourceTag string

const (
	SourcePrimaryTracker SourceTag = "PRIMARY_TRACKER"
	SourceHelpCenter     SourceTag = "HELP_CENTER"
)

// Document is a raw search hit from either source. Field sets differ per
// source, so the payload stays schemaless.
type Document map[string]interface{}

// Title returns the best-effort display title of a document.
func (d Document) Title() string {
	for _, key := range []string{"title", "summary", "subject", "name"} {
		if v, ok := d[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Body returns the best-effort text content of a document.
func (d Document) Body() string {
	for _, key := range []string{"content", "description", "body", "text"} {
		if v, ok := d[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// RankedDocument is a document with its relevance score attached.
type RankedDocument struct {
	Document Document  `json:"document"`
	Score    float64   `json:"score"`
	Source   SourceTag `json:"source"`
}
