// Package enrich attaches bibliographic metadata to a book.
//
// The chain only trusts edition-exact data: vendor id → ISBN from the vendor
// page → exact ISBN search. Title/author search is kept for ad-hoc lookups
// and never runs inside the chain.
package enrich

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"highlightsync/internal/entity"
)

// VendorLookup resolves a vendor id to an ISBN. An empty result means the
// vendor page lists none.
type VendorLookup interface {
	LookupISBN(ctx context.Context, vendorID string) (string, error)
}

// ISBNSearcher returns metadata for an exact ISBN, or nil when unknown.
type ISBNSearcher interface {
	SearchByISBN(ctx context.Context, isbn string) (*entity.Metadata, error)
}

// TitleAuthorSearcher returns the best metadata match for a title and author.
type TitleAuthorSearcher interface {
	SearchByTitleAuthor(ctx context.Context, title, author string) (*entity.Metadata, error)
}

type Chain struct {
	vendor   VendorLookup
	searcher ISBNSearcher
	logger   *slog.Logger
}

func NewChain(vendor VendorLookup, searcher ISBNSearcher, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{vendor: vendor, searcher: searcher, logger: logger}
}

// Enrich never fails: every error ends the chain with nil.
func (c *Chain) Enrich(ctx context.Context, key entity.BookKey) *entity.Metadata {
	if !key.HasVendorID() {
		return nil
	}
	log := c.logger.With("title", key.Title, "vendor_id", key.VendorID)

	isbn, err := c.vendor.LookupISBN(ctx, key.VendorID)
	if err != nil {
		log.Warn("vendor isbn lookup failed", "error", err)
		return nil
	}
	if isbn == "" {
		log.Debug("vendor page lists no isbn")
		return nil
	}

	md, err := c.searcher.SearchByISBN(ctx, isbn)
	if err != nil {
		log.Warn("isbn search failed", "isbn", isbn, "error", err)
		return nil
	}
	if md == nil {
		log.Debug("no metadata for isbn", "isbn", isbn)
		return nil
	}

	out := *md
	out.ISBN = isbn
	return &out
}

type firstOf []ISBNSearcher

// FirstOf tries each searcher in order and returns the first non-nil result.
// Errors from earlier searchers are dropped when a later one succeeds.
func FirstOf(searchers ...ISBNSearcher) ISBNSearcher {
	return firstOf(searchers)
}

func (f firstOf) SearchByISBN(ctx context.Context, isbn string) (*entity.Metadata, error) {
	var lastErr error
	for _, s := range f {
		md, err := s.SearchByISBN(ctx, isbn)
		if err != nil {
			lastErr = err
			continue
		}
		if md != nil {
			return md, nil
		}
	}
	return nil, lastErr
}

var trailingQualifier = regexp.MustCompile(`\s*\([^()]*\)\s*$`)

// CleanTitle strips trailing parenthetical qualifiers such as series or
// edition notes: "War and Peace (Illustrated Edition)" becomes "War and Peace".
func CleanTitle(title string) string {
	t := strings.TrimSpace(title)
	for {
		stripped := trailingQualifier.ReplaceAllString(t, "")
		if stripped == t || stripped == "" {
			return t
		}
		t = stripped
	}
}

// LookupByTitle searches by cleaned title and author. Failures return nil.
func LookupByTitle(ctx context.Context, s TitleAuthorSearcher, key entity.BookKey, logger *slog.Logger) *entity.Metadata {
	if logger == nil {
		logger = slog.Default()
	}
	author := ""
	if key.HasAuthor() {
		author = key.Author
	}
	md, err := s.SearchByTitleAuthor(ctx, CleanTitle(key.Title), author)
	if err != nil {
		logger.Warn("title search failed", "title", key.Title, "error", err)
		return nil
	}
	return md
}
