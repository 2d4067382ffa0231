package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"highlightsync/internal/entity"
)

const (
	DefaultImportTag = "Kindle Highlights Scraper"
	NoteTag          = "Kindle Import"
	vendorIDPrefix   = "ASIN: "
)

// Result reports what one Sync call did.
type Result struct {
	ParentKey    string
	CreatedBook  bool
	CreatedNotes int
	FailedNotes  int
}

// Syncer writes one book and its annotations into a catalog collection.
//
// Parent items are matched on every run, so a book is never created twice.
// Notes are not matched: each run creates one note per annotation, and
// re-running over the same annotations duplicates them.
type Syncer struct {
	client        Client
	collectionKey string
	importTag     string
	logger        *slog.Logger
}

func NewSyncer(client Client, collectionKey, importTag string, logger *slog.Logger) *Syncer {
	if importTag == "" {
		importTag = DefaultImportTag
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		client:        client,
		collectionKey: collectionKey,
		importTag:     importTag,
		logger:        logger,
	}
}

// Sync finds or creates the parent item for key, then adds one child note per
// record. An error means the book was skipped and no notes were created.
func (s *Syncer) Sync(ctx context.Context, key entity.BookKey, records []entity.Annotation) (Result, error) {
	log := s.logger.With("title", key.Title, "vendor_id", key.VendorID)
	var res Result

	log.Debug("sync state", "state", "searching")
	parent, found, err := s.findParent(ctx, key)
	if err != nil {
		return res, fmt.Errorf("search parent item: %w", err)
	}

	if found {
		log.Debug("sync state", "state", "found", "key", parent)
	} else {
		log.Debug("sync state", "state", "creating_book")
		parent, err = s.client.CreateItem(ctx, s.bookItem(key, firstMetadata(records)))
		if err != nil {
			return res, fmt.Errorf("create parent item: %w", err)
		}
		res.CreatedBook = true
		log.Info("created catalog item", "key", parent)
	}
	res.ParentKey = parent

	log.Debug("sync state", "state", "creating_notes", "count", len(records))
	for _, rec := range records {
		if _, err := s.client.CreateItem(ctx, NoteItem(parent, rec)); err != nil {
			res.FailedNotes++
			log.Warn("create note failed", "source_id", rec.SourceID, "error", err)
			continue
		}
		res.CreatedNotes++
	}

	log.Debug("sync state", "state", "done", "created_notes", res.CreatedNotes, "failed_notes", res.FailedNotes)
	return res, nil
}

// findParent returns the first book item in the collection that matches key.
func (s *Syncer) findParent(ctx context.Context, key entity.BookKey) (string, bool, error) {
	items, err := s.client.CollectionItems(ctx, s.collectionKey, ItemTypeBook)
	if err != nil {
		return "", false, err
	}

	for _, it := range items {
		if it.Data.Title != key.Title {
			continue
		}
		if !key.HasVendorID() {
			return it.Key, true, nil
		}

		extra := it.Data.Extra
		if extra == "" && it.Key != "" {
			// Listings can omit extra; the full item is authoritative.
			full, err := s.client.Item(ctx, it.Key)
			if err != nil {
				s.logger.Warn("fetch candidate item failed", "key", it.Key, "error", err)
				continue
			}
			extra = full.Data.Extra
		}
		if HasVendorID(extra, key.VendorID) {
			return it.Key, true, nil
		}
	}
	return "", false, nil
}

func (s *Syncer) bookItem(key entity.BookKey, md *entity.Metadata) ItemData {
	data := ItemData{
		ItemType:    ItemTypeBook,
		Title:       key.Title,
		Creators:    []Creator{AuthorCreator(key.Author)},
		Extra:       s.extra(key),
		Collections: []string{s.collectionKey},
	}
	if md != nil {
		data.ISBN = md.ISBN
		data.Publisher = md.Publisher
		data.Date = md.Date
		data.Language = md.Language
		data.Place = md.Place
		data.Edition = md.Edition
		if md.PageCount > 0 {
			data.NumPages = strconv.Itoa(md.PageCount)
		}
	}
	return data
}

func (s *Syncer) extra(key entity.BookKey) string {
	source := "Source: " + s.importTag
	if key.HasVendorID() {
		return vendorIDPrefix + key.VendorID + "\n" + source
	}
	return source
}

// HasVendorID reports whether a free-text extra field identifies vendorID.
// Items created by earlier versions use the same "ASIN: <id>" line.
func HasVendorID(extra, vendorID string) bool {
	return strings.Contains(extra, vendorIDPrefix+vendorID)
}

// AuthorCreator splits an author name on whitespace: one token is a surname,
// otherwise the first token is the given name and the rest the surname.
func AuthorCreator(author string) Creator {
	a := strings.TrimSpace(author)
	if a == "" || a == entity.UnknownAuthor {
		return Creator{CreatorType: "author", Name: entity.UnknownAuthor}
	}
	parts := strings.Fields(a)
	if len(parts) == 1 {
		return Creator{CreatorType: "author", LastName: parts[0]}
	}
	return Creator{
		CreatorType: "author",
		FirstName:   parts[0],
		LastName:    strings.Join(parts[1:], " "),
	}
}

// NoteItem renders one annotation as a child note of parentKey.
func NoteItem(parentKey string, rec entity.Annotation) ItemData {
	return ItemData{
		ItemType:   ItemTypeNote,
		Note:       RenderNote(rec),
		ParentItem: parentKey,
		Tags:       []Tag{{Tag: NoteTag}},
	}
}

// Quotes stay literal so highlight text reads the same in the catalog.
var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// RenderNote produces the note body: a kind label line and the content line,
// with content line breaks turned into <br>.
func RenderNote(rec entity.Annotation) string {
	body := strings.ReplaceAll(markupEscaper.Replace(rec.Content), "\n", "<br>")
	return fmt.Sprintf("<p><em>Kindle %s</em></p><p>%s</p>", rec.Kind.Label(), body)
}

func firstMetadata(records []entity.Annotation) *entity.Metadata {
	for _, r := range records {
		if r.Metadata != nil {
			return r.Metadata
		}
	}
	return nil
}

// EnsureCollection returns the key of the collection called name, creating
// it when missing.
func EnsureCollection(ctx context.Context, client Client, name string) (string, error) {
	cols, err := client.Collections(ctx)
	if err != nil {
		return "", fmt.Errorf("list collections: %w", err)
	}
	for _, c := range cols {
		if c.Name == name {
			return c.Key, nil
		}
	}
	key, err := client.CreateCollection(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create collection %q: %w", name, err)
	}
	return key, nil
}
