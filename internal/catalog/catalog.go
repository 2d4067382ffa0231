package catalog

import (
	"context"
)

const (
	ItemTypeBook = "book"
	ItemTypeNote = "note"
)

type Collection struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

type Tag struct {
	Tag string `json:"tag"`
}

// ItemData is the editable body of a catalog item. Book and note items share
// it; fields that do not apply to an item type are left empty.
type ItemData struct {
	Key         string    `json:"key,omitempty"`
	ItemType    string    `json:"itemType"`
	Title       string    `json:"title,omitempty"`
	Creators    []Creator `json:"creators,omitempty"`
	Extra       string    `json:"extra,omitempty"`
	Collections []string  `json:"collections,omitempty"`
	ISBN        string    `json:"ISBN,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	Place       string    `json:"place,omitempty"`
	Date        string    `json:"date,omitempty"`
	NumPages    string    `json:"numPages,omitempty"`
	Language    string    `json:"language,omitempty"`
	Edition     string    `json:"edition,omitempty"`
	Note        string    `json:"note,omitempty"`
	ParentItem  string    `json:"parentItem,omitempty"`
	Tags        []Tag     `json:"tags,omitempty"`
}

type Item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Data    ItemData `json:"data"`
}

//go:generate mockgen -source=catalog.go -destination=mock_client_test.go -package=catalog

// Client is the subset of the catalog API the sync needs. The catalog owns
// every item; this system only lists and creates.
type Client interface {
	Collections(ctx context.Context) ([]Collection, error)
	CreateCollection(ctx context.Context, name string) (string, error)
	CollectionItems(ctx context.Context, collectionKey, itemType string) ([]Item, error)
	Item(ctx context.Context, key string) (Item, error)
	CreateItem(ctx context.Context, data ItemData) (string, error)
}
