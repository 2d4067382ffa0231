package notebook

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors locate book fields and annotation fragments in a saved notebook
// page. The defaults match the reader notebook markup; a YAML file can
// override any subset of them.
type Selectors struct {
	Book            string `yaml:"book"`
	Title           string `yaml:"title"`
	DetailTitle     string `yaml:"detail_title"`
	Author          string `yaml:"author"`
	DetailAuthor    string `yaml:"detail_author"`
	VendorAttr      string `yaml:"vendor_attr"`
	Highlight       string `yaml:"highlight"`
	Note            string `yaml:"note"`
	HighlightText   string `yaml:"highlight_text"`
	NoteText        string `yaml:"note_text"`
	ExportLimit     string `yaml:"export_limit"`
	ExportLimitText string `yaml:"export_limit_text"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Book:            "div.kp-notebook-library-each-book",
		Title:           "h2.kp-notebook-searchable",
		DetailTitle:     "h3.kp-notebook-metadata",
		Author:          "p.a-spacing-base.a-spacing-top-mini.a-text-center.a-size-base.a-color-secondary.kp-notebook-searchable",
		DetailAuthor:    "p.a-spacing-none.a-spacing-top-micro.a-size-base.a-color-secondary.kp-notebook-selectable.kp-notebook-metadata",
		VendorAttr:      "id",
		Highlight:       "div[id^='highlight-']",
		Note:            "div[id^='note-']",
		HighlightText:   "#highlight",
		NoteText:        "#note",
		ExportLimit:     "div.a-alert-content",
		ExportLimitText: "Some highlights have been hidden or truncated due to export limits.",
	}
}

// LoadSelectors reads path over the defaults. An empty path returns the
// defaults unchanged.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selectors: %w", err)
	}
	var override Selectors
	if err := yaml.Unmarshal(b, &override); err != nil {
		return sel, fmt.Errorf("parse selectors %s: %w", path, err)
	}
	sel.merge(override)
	return sel, nil
}

func (s *Selectors) merge(o Selectors) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.Book, o.Book)
	set(&s.Title, o.Title)
	set(&s.DetailTitle, o.DetailTitle)
	set(&s.Author, o.Author)
	set(&s.DetailAuthor, o.DetailAuthor)
	set(&s.VendorAttr, o.VendorAttr)
	set(&s.Highlight, o.Highlight)
	set(&s.Note, o.Note)
	set(&s.HighlightText, o.HighlightText)
	set(&s.NoteText, o.NoteText)
	set(&s.ExportLimit, o.ExportLimit)
	set(&s.ExportLimitText, o.ExportLimitText)
}
