package notebook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"highlightsync/internal/annotation"
	"highlightsync/internal/entity"
	"highlightsync/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, name string) Book {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()
	b, err := Parse(f, DefaultSelectors())
	require.NoError(t, err)
	return b
}

func TestParse_BookFields(t *testing.T) {
	b := parseFixture(t, "B000FC0PDA.html")

	assert.Equal(t, "War and Peace (Illustrated Edition)", b.Title)
	assert.Equal(t, "Leo Tolstoy", b.Author)
	assert.Equal(t, "B000FC0PDA", b.VendorToken)
	assert.True(t, b.ExportLimited)
	assert.Equal(t, entity.BookKey{Title: "War and Peace (Illustrated Edition)", Author: "Leo Tolstoy", VendorID: "B000FC0PDA"}, b.Key())
}

func TestParse_FragmentsAndProximity(t *testing.T) {
	b := parseFixture(t, "B000FC0PDA.html")

	require.Len(t, b.Highlights, 3)
	require.Len(t, b.Notes, 3)
	assert.Equal(t, "highlight-QID1", b.Highlights[0].ID)
	assert.Equal(t, "note-QID4N", b.Notes[2].ID)

	id, ok := b.Nearest("highlight-QID1")
	assert.True(t, ok)
	assert.Equal(t, "note-QID1N", id)

	// The next note is past another highlight, so it is not this one's.
	_, ok = b.Nearest("highlight-QID2")
	assert.False(t, ok)

	id, ok = b.Nearest("highlight-QID3")
	assert.True(t, ok)
	assert.Equal(t, "note-QID3N", id)
}

func TestParse_FeedsAssociation(t *testing.T) {
	b := parseFixture(t, "B000FC0PDA.html")

	recs := annotation.AssociateBook(b.Key(), b.Highlights, b.Notes, b.Nearest)
	require.Len(t, recs, 4)
	assert.Equal(t, `"'Well, Prince, so Genoa and Lucca are now just family estates'" Opening line`, recs[0].Content)
	assert.Equal(t, `"We can know only that we know nothing."`, recs[1].Content)
	// The empty highlight is dropped, so its note was never consumed.
	assert.Equal(t, entity.KindNote, recs[2].Kind)
	assert.Equal(t, "note on an empty highlight", recs[2].Content)
	assert.Equal(t, "a stray thought", recs[3].Content)
}

func TestParse_DetailFallbacks(t *testing.T) {
	b := parseFixture(t, "meditations.htm")

	assert.Equal(t, "Meditations", b.Title)
	assert.Equal(t, "Marcus Aurelius", b.Author)
	assert.False(t, b.ExportLimited)
	assert.Equal(t, entity.UnknownVendorID, b.Key().VendorID)
}

func TestParse_NoContent(t *testing.T) {
	_, err := Parse(strings.NewReader("<html><body></body></html>"), DefaultSelectors())
	require.Error(t, err)
	assert.True(t, errs.IsInvalid(err))
}

func TestBookKey_Placeholders(t *testing.T) {
	k := Book{}.Key()
	assert.Equal(t, entity.BookKey{Title: entity.UnknownTitle, Author: entity.UnknownAuthor, VendorID: entity.UnknownVendorID}, k)
}

func TestVendorID(t *testing.T) {
	assert.Equal(t, "B000FC0PDA", VendorID("B000FC0PDA"))
	assert.Equal(t, "B07XYZ1234", VendorID("kp-book-B07XYZ1234-row"))
	assert.Equal(t, "", VendorID("meditations"))
	assert.Equal(t, "", VendorID("b000fc0pda"))
}

func TestCleanAuthor(t *testing.T) {
	assert.Equal(t, "Leo Tolstoy", cleanAuthor("By: Leo Tolstoy"))
	assert.Equal(t, "Leo Tolstoy", cleanAuthor("  Leo Tolstoy "))
	assert.Equal(t, "", cleanAuthor("By:"))
}

func TestDir_Books(t *testing.T) {
	d := NewDir("testdata", DefaultSelectors(), nil)

	books, err := d.Books(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "War and Peace (Illustrated Edition)", books[0].Title)
	assert.Equal(t, filepath.Join("testdata", "B000FC0PDA.html"), books[0].Source)
	assert.Equal(t, "Meditations", books[1].Title)
	assert.Equal(t, "meditations", books[1].VendorToken)
}

func TestDir_Missing(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "nope"), DefaultSelectors(), nil).Books(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestLoadSelectors(t *testing.T) {
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSelectors(), sel)

	sel, err = LoadSelectors(filepath.Join("testdata", "selectors.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "div.kp-notebook-highlight", sel.Highlight)
	assert.Equal(t, "div.kp-notebook-note", sel.Note)
	assert.Equal(t, DefaultSelectors().HighlightText, sel.HighlightText)

	_, err = LoadSelectors(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}
