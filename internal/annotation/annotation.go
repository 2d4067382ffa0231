// Package annotation turns the raw highlight and note fragments of one book
// into canonical, deduplicated annotation records.
package annotation

import (
	"strings"

	"highlightsync/internal/entity"
	"highlightsync/internal/quotes"
)

// Fragment is a raw text unit read from the rendered page.
type Fragment struct {
	ID   string
	Text string
}

// Proximity returns the note rendered nearest to the given highlight, if any.
// It is supplied by whatever owns the page; this package never inspects the
// page itself.
type Proximity func(highlightID string) (noteID string, ok bool)

// Associate merges highlights with their nearby notes. Each note is consumed
// at most once; notes left over become standalone records after all
// highlight records. Fragments with a missing id or empty text are dropped.
func Associate(highlights, notes []Fragment, nearest Proximity) []entity.Annotation {
	return AssociateBook(entity.BookKey{}, highlights, notes, nearest)
}

// AssociateBook is Associate with the book key stamped on every record.
func AssociateBook(book entity.BookKey, highlights, notes []Fragment, nearest Proximity) []entity.Annotation {
	noteText := make(map[string]string, len(notes))
	for _, n := range notes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			continue
		}
		if _, seen := noteText[id]; seen {
			continue
		}
		noteText[id] = clean(n.Text)
	}

	consumed := make(map[string]bool)
	emitted := make(map[string]bool)
	out := make([]entity.Annotation, 0, len(highlights)+len(notes))

	for _, h := range highlights {
		id := strings.TrimSpace(h.ID)
		text := clean(h.Text)
		if id == "" || text == "" || emitted[id] {
			continue
		}

		content := `"` + text + `"`
		if nearest != nil {
			if noteID, ok := nearest(id); ok && !consumed[noteID] && !emitted[noteID] {
				if nt := noteText[noteID]; nt != "" {
					content += " " + nt
					consumed[noteID] = true
				}
			}
		}

		emitted[id] = true
		out = append(out, entity.Annotation{
			Book:     book,
			Kind:     entity.KindHighlight,
			Content:  content,
			SourceID: id,
		})
	}

	for _, n := range notes {
		id := strings.TrimSpace(n.ID)
		if id == "" || consumed[id] || emitted[id] {
			continue
		}
		text := noteText[id]
		if text == "" {
			continue
		}
		emitted[id] = true
		out = append(out, entity.Annotation{
			Book:     book,
			Kind:     entity.KindNote,
			Content:  text,
			SourceID: id,
		})
	}

	return out
}

func clean(s string) string {
	return quotes.Normalize(strings.TrimSpace(s))
}
