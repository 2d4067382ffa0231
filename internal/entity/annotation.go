package entity

import "time"

type Kind string

const (
	KindHighlight Kind = "highlight"
	KindNote      Kind = "note"
)

// Label is the capitalized form used in rendered notes.
func (k Kind) Label() string {
	switch k {
	case KindHighlight:
		return "Highlight"
	case KindNote:
		return "Note"
	default:
		return string(k)
	}
}

// Annotation is one canonical highlight or note. SourceID is the fragment id
// assigned by the source page and the only deduplication key.
type Annotation struct {
	Book       BookKey   `json:"book"`
	Kind       Kind      `json:"kind"`
	Content    string    `json:"content"`
	SourceID   string    `json:"source_id"`
	Metadata   *Metadata `json:"metadata,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}
