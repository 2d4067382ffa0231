// Package testutil builds notebook pages and HTTP requests for tests and the
// seed command.
package testutil

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

const exportLimitText = "Some highlights have been hidden or truncated due to export limits."

// Fragment is one highlight, or a note when Note is set. Fragments render in
// order, so a note placed after a highlight is that highlight's nearest note.
type Fragment struct {
	ID   string
	Text string
	Note bool
}

// Page is a single-book notebook page laid out the way the default
// selectors expect.
type Page struct {
	VendorID      string
	Title         string
	Author        string
	ExportLimited bool
	Fragments     []Fragment
}

func Highlight(id, text string) Fragment { return Fragment{ID: id, Text: text} }

func Note(id, text string) Fragment { return Fragment{ID: id, Text: text, Note: true} }

func (p Page) HTML() string {
	var b strings.Builder
	b.WriteString("<html>\n<body>\n<div id=\"kp-notebook-library\">\n")
	fmt.Fprintf(&b, "  <div id=%q class=\"a-row kp-notebook-library-each-book\">\n", p.VendorID)
	fmt.Fprintf(&b, "    <h2 class=\"a-size-base a-color-base a-text-center kp-notebook-searchable a-text-bold\">%s</h2>\n", html.EscapeString(p.Title))
	if p.Author != "" {
		fmt.Fprintf(&b, "    <p class=\"a-spacing-base a-spacing-top-mini a-text-center a-size-base a-color-secondary kp-notebook-searchable\">By: %s</p>\n", html.EscapeString(p.Author))
	}
	b.WriteString("  </div>\n</div>\n<div id=\"kp-notebook-annotations\">\n")
	if p.ExportLimited {
		fmt.Fprintf(&b, "  <div class=\"a-alert-content\">%s</div>\n", exportLimitText)
	}
	for _, f := range p.Fragments {
		kind := "highlight"
		if f.Note {
			kind = "note"
		}
		fmt.Fprintf(&b, "  <div id=\"%s-%s\"><span id=%q>%s</span></div>\n", kind, f.ID, kind, html.EscapeString(f.Text))
	}
	b.WriteString("</div>\n</body>\n</html>\n")
	return b.String()
}

// WriteSnapshot writes p into dir as <vendor id>.html and returns the path.
func WriteSnapshot(dir string, p Page) (string, error) {
	name := p.VendorID
	if name == "" {
		name = strings.ToLower(strings.Join(strings.Fields(p.Title), "-"))
	}
	path := filepath.Join(dir, name+".html")
	if err := os.WriteFile(path, []byte(p.HTML()), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
