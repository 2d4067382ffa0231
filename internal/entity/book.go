package entity

import "strings"

// Placeholders used by the source page when a field could not be read.
const (
	UnknownTitle    = "Unknown Title"
	UnknownAuthor   = "Unknown Author"
	UnknownVendorID = "UnknownASIN"
)

// BookKey identifies a source work. Empty fields are absent.
type BookKey struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	VendorID string `json:"vendor_id,omitempty"`
}

// HasVendorID reports whether the key carries a usable vendor id.
func (k BookKey) HasVendorID() bool {
	v := strings.TrimSpace(k.VendorID)
	return v != "" && v != UnknownVendorID
}

// HasAuthor reports whether the key carries a real author name.
func (k BookKey) HasAuthor() bool {
	a := strings.TrimSpace(k.Author)
	return a != "" && a != UnknownAuthor
}

// HasTitle reports whether the key carries a real title.
func (k BookKey) HasTitle() bool {
	t := strings.TrimSpace(k.Title)
	return t != "" && t != UnknownTitle
}

// Metadata is bibliographic data attached to a book after extraction.
// A nil *Metadata is a valid "nothing found" result.
type Metadata struct {
	ISBN      string `json:"ISBN"`
	Publisher string `json:"publisher"`
	Date      string `json:"date"`
	PageCount int    `json:"numPages,omitempty"`
	Language  string `json:"language"`
	Place     string `json:"place"`
	Edition   string `json:"edition"`
}
