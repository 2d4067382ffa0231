// Package store persists annotation records and run history.
//
// Writes are insert-if-absent on the source id, so replaying an extraction
// over an unchanged notebook leaves the row count unchanged.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"highlightsync/internal/entity"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Filter narrows Query. Zero values match everything.
type Filter struct {
	Title    string
	VendorID string
	Kind     entity.Kind
	Limit    int
}

type Stats struct {
	Books        int        `json:"books"`
	Annotations  int        `json:"annotations"`
	Highlights   int        `json:"highlights"`
	Notes        int        `json:"notes"`
	Enriched     int        `json:"enriched"`
	LastCaptured *time.Time `json:"last_captured,omitempty"`
}

type AnnotationRepository interface {
	Upsert(ctx context.Context, a entity.Annotation) (bool, error)
	Query(ctx context.Context, f Filter) ([]entity.Annotation, error)
	Books(ctx context.Context) ([]entity.BookKey, error)
	Stats(ctx context.Context) (Stats, error)
}

type RunRepository interface {
	CreateRun(ctx context.Context, run *entity.Run) (string, error)
	UpdateRun(ctx context.Context, run *entity.Run) error
	ListRuns(ctx context.Context, limit int) ([]entity.Run, error)
}

type Store interface {
	AnnotationRepository
	RunRepository
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store named by driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// where renders f as a WHERE clause using placeholder for the i-th argument.
func where(f Filter, placeholder func(int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = "+placeholder(len(args)))
	}
	if f.Title != "" {
		add("book_title", f.Title)
	}
	if f.VendorID != "" {
		add("book_asin", f.VendorID)
	}
	if f.Kind != "" {
		add("item_type", string(f.Kind))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func encodeMetadata(md *entity.Metadata) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

func decodeMetadata(raw []byte) *entity.Metadata {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var md entity.Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil
	}
	return &md
}

func runLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
