// Package notebook reads saved notebook pages, one book per file, and exposes
// each book's raw fragments the way a live page would.
package notebook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"highlightsync/internal/annotation"
	"highlightsync/internal/entity"
	"highlightsync/internal/errs"

	"github.com/PuerkitoBio/goquery"
)

var vendorIDPattern = regexp.MustCompile(`[A-Z0-9]{10}`)

// Book is the raw content of one notebook page.
type Book struct {
	Source        string
	Title         string
	Author        string
	VendorToken   string
	Highlights    []annotation.Fragment
	Notes         []annotation.Fragment
	Nearest       annotation.Proximity
	ExportLimited bool
}

// Key resolves the book's identity, substituting the placeholders for
// fields the page did not provide.
func (b Book) Key() entity.BookKey {
	k := entity.BookKey{
		Title:    strings.TrimSpace(b.Title),
		Author:   strings.TrimSpace(b.Author),
		VendorID: VendorID(b.VendorToken),
	}
	if k.Title == "" {
		k.Title = entity.UnknownTitle
	}
	if k.Author == "" {
		k.Author = entity.UnknownAuthor
	}
	if k.VendorID == "" {
		k.VendorID = entity.UnknownVendorID
	}
	return k
}

// VendorID extracts the first 10-character vendor token from raw, or "".
func VendorID(raw string) string {
	return vendorIDPattern.FindString(raw)
}

// Dir is a directory of saved pages.
type Dir struct {
	path   string
	sel    Selectors
	logger *slog.Logger
}

func NewDir(path string, sel Selectors, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{path: path, sel: sel, logger: logger}
}

// Books parses every .html/.htm file in name order. Unreadable files are
// logged and skipped; a missing directory is fatal.
func (d *Dir) Books(ctx context.Context) ([]Book, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, errs.WrapFatal(err, "read snapshot dir")
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".html" && ext != ".htm") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	books := make([]Book, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(d.path, name)
		b, err := d.parseFile(p)
		if err != nil {
			d.logger.Warn("skipping snapshot", "file", p, "error", err)
			continue
		}
		books = append(books, b)
	}
	return books, nil
}

func (d *Dir) parseFile(path string) (Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return Book{}, err
	}
	defer f.Close()

	b, err := Parse(f, d.sel)
	if err != nil {
		return Book{}, err
	}
	b.Source = path
	if b.VendorToken == "" {
		// Snapshots saved as <ASIN>.html carry the token in the name.
		b.VendorToken = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return b, nil
}

// Parse reads one notebook page.
func Parse(r io.Reader, sel Selectors) (Book, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Book{}, errs.WrapInvalid(err, "parse notebook page")
	}

	var b Book
	scope := doc.Selection
	if sel.Book != "" {
		if container := doc.Find(sel.Book).First(); container.Length() > 0 {
			scope = container
			b.VendorToken, _ = container.Attr(sel.VendorAttr)
		}
	}

	b.Title = firstText(scope, sel.Title)
	if b.Title == "" {
		b.Title = firstText(doc.Selection, sel.DetailTitle)
	}
	b.Author = cleanAuthor(firstText(scope, sel.Author))
	if b.Author == "" {
		b.Author = cleanAuthor(firstText(doc.Selection, sel.DetailAuthor))
	}

	b.ExportLimited = exportLimited(doc, sel)
	b.Highlights, b.Notes, b.Nearest = fragments(doc, sel)
	if len(b.Highlights) == 0 && len(b.Notes) == 0 && b.Title == "" {
		return b, errs.WrapInvalid(fmt.Errorf("no book content"), "parse notebook page")
	}
	return b, nil
}

// fragments walks highlight and note elements in document order. A
// highlight's nearest note is the first note after it and before the next
// highlight.
func fragments(doc *goquery.Document, sel Selectors) ([]annotation.Fragment, []annotation.Fragment, annotation.Proximity) {
	var (
		highlights []annotation.Fragment
		notes      []annotation.Fragment
		nearest    = map[string]string{}
		pending    string
	)

	doc.Find(sel.Highlight + ", " + sel.Note).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if s.Is(sel.Highlight) {
			highlights = append(highlights, annotation.Fragment{ID: id, Text: firstText(s, sel.HighlightText)})
			pending = id
			return
		}
		notes = append(notes, annotation.Fragment{ID: id, Text: firstText(s, sel.NoteText)})
		if pending != "" {
			nearest[pending] = id
			pending = ""
		}
	})

	proximity := func(highlightID string) (string, bool) {
		id, ok := nearest[highlightID]
		return id, ok
	}
	return highlights, notes, proximity
}

func exportLimited(doc *goquery.Document, sel Selectors) bool {
	if sel.ExportLimit == "" {
		return false
	}
	limited := false
	doc.Find(sel.ExportLimit).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if sel.ExportLimitText == "" || strings.Contains(s.Text(), sel.ExportLimitText) {
			limited = true
		}
		return !limited
	})
	return limited
}

func firstText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func cleanAuthor(a string) string {
	if i := strings.Index(a, "By:"); i >= 0 {
		a = a[:i] + a[i+len("By:"):]
	}
	return strings.TrimSpace(a)
}
