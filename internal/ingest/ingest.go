package ingest

import (
	"context"
	"time"

	"highlightsync/internal/entity"
	"highlightsync/internal/notebook"
)

type Config struct {
	// BookPause plus a random share of BookJitter is waited between books.
	BookPause  time.Duration
	BookJitter time.Duration
	// Title restricts the run to one book; MaxBooks caps how many are read.
	Title    string
	MaxBooks int
}

func DefaultConfig() Config {
	return Config{BookPause: time.Second, BookJitter: time.Second}
}

// Source yields the raw content of every book in the notebook.
type Source interface {
	Books(ctx context.Context) ([]notebook.Book, error)
}

// Enricher attaches bibliographic metadata to a book key, or returns nil.
type Enricher interface {
	Enrich(ctx context.Context, key entity.BookKey) *entity.Metadata
}

type Writer interface {
	Upsert(ctx context.Context, a entity.Annotation) (bool, error)
}

type RunRepository interface {
	CreateRun(ctx context.Context, run *entity.Run) (string, error)
	UpdateRun(ctx context.Context, run *entity.Run) error
}

// Report is what an extraction run hands back to the caller.
type Report struct {
	Run           *entity.Run
	ExportLimited []string
	Books         []BookReport
}

type BookReport struct {
	Key        entity.BookKey
	Highlights int
	Notes      int
	Inserted   int
	Enriched   bool
}
