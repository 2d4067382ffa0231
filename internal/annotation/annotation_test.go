package annotation

import (
	"testing"

	"highlightsync/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nearestFrom(m map[string]string) Proximity {
	return func(id string) (string, bool) {
		n, ok := m[id]
		return n, ok
	}
}

func TestAssociate_HighlightWithNoteAndOrphan(t *testing.T) {
	highlights := []Fragment{{ID: "highlight-H1", Text: "A"}}
	notes := []Fragment{
		{ID: "note-N1", Text: "B"},
		{ID: "note-N2", Text: "C"},
	}

	got := Associate(highlights, notes, nearestFrom(map[string]string{"highlight-H1": "note-N1"}))

	require.Len(t, got, 2)
	assert.Equal(t, entity.KindHighlight, got[0].Kind)
	assert.Equal(t, `"A" B`, got[0].Content)
	assert.Equal(t, "highlight-H1", got[0].SourceID)
	assert.Equal(t, entity.KindNote, got[1].Kind)
	assert.Equal(t, "C", got[1].Content)
	assert.Equal(t, "note-N2", got[1].SourceID)
}

func TestAssociate_HighlightWithoutNoteIsStillQuoted(t *testing.T) {
	got := Associate([]Fragment{{ID: "h1", Text: "  lone  "}}, nil, nil)

	require.Len(t, got, 1)
	assert.Equal(t, `"lone"`, got[0].Content)
}

func TestAssociate_EmptyNoteIsNotConsumed(t *testing.T) {
	highlights := []Fragment{{ID: "h1", Text: "A"}}
	notes := []Fragment{{ID: "n1", Text: "   "}}

	got := Associate(highlights, notes, nearestFrom(map[string]string{"h1": "n1"}))

	require.Len(t, got, 1)
	assert.Equal(t, `"A"`, got[0].Content)
}

func TestAssociate_NoteConsumedOnlyOnce(t *testing.T) {
	highlights := []Fragment{{ID: "h1", Text: "A"}, {ID: "h2", Text: "B"}}
	notes := []Fragment{{ID: "n1", Text: "shared"}}

	got := Associate(highlights, notes, nearestFrom(map[string]string{"h1": "n1", "h2": "n1"}))

	require.Len(t, got, 2)
	assert.Equal(t, `"A" shared`, got[0].Content)
	assert.Equal(t, `"B"`, got[1].Content)
}

func TestAssociate_DropsMalformedFragments(t *testing.T) {
	highlights := []Fragment{
		{ID: "", Text: "no id"},
		{ID: "h-empty", Text: ""},
		{ID: "h1", Text: "kept"},
	}
	notes := []Fragment{
		{ID: "", Text: "no id"},
		{ID: "n-empty", Text: "\n"},
		{ID: "n1", Text: "orphan"},
	}

	got := Associate(highlights, notes, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "h1", got[0].SourceID)
	assert.Equal(t, "n1", got[1].SourceID)
}

func TestAssociate_OrderAndUniqueness(t *testing.T) {
	highlights := []Fragment{
		{ID: "h1", Text: "one"},
		{ID: "h2", Text: "two"},
		{ID: "h1", Text: "one again"},
	}
	notes := []Fragment{
		{ID: "n3", Text: "third"},
		{ID: "n1", Text: "first"},
		{ID: "n2", Text: "second"},
		{ID: "n3", Text: "third again"},
	}

	got := Associate(highlights, notes, nearestFrom(map[string]string{"h2": "n1"}))

	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.SourceID)
	}
	assert.Equal(t, []string{"h1", "h2", "n3", "n2"}, ids)
	assert.Equal(t, `"two" first`, got[1].Content)
	assert.Equal(t, "third", got[2].Content)
}

func TestAssociate_NormalizesQuotes(t *testing.T) {
	highlights := []Fragment{{ID: "h1", Text: "“don’t”"}}
	notes := []Fragment{{ID: "n1", Text: "‘really’"}}

	got := Associate(highlights, notes, nearestFrom(map[string]string{"h1": "n1"}))

	require.Len(t, got, 1)
	assert.Equal(t, `"'don't'" "really"`, got[0].Content)
}

func TestAssociateBook_StampsKey(t *testing.T) {
	key := entity.BookKey{Title: "Dune", Author: "Frank Herbert", VendorID: "B00B7NPRY8"}

	got := AssociateBook(key, []Fragment{{ID: "h1", Text: "fear"}}, []Fragment{{ID: "n1", Text: "mind-killer"}}, nil)

	require.Len(t, got, 2)
	for _, a := range got {
		assert.Equal(t, key, a.Book)
	}
}
