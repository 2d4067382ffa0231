package catalog

import (
	"context"

	"highlightsync/internal/entity"
	"highlightsync/internal/store"
)

// AnnotationReader is the read side of the local store used by the sync half.
type AnnotationReader interface {
	Books(ctx context.Context) ([]entity.BookKey, error)
	Query(ctx context.Context, f store.Filter) ([]entity.Annotation, error)
}

type RunRepository interface {
	CreateRun(ctx context.Context, run *entity.Run) (string, error)
	UpdateRun(ctx context.Context, run *entity.Run) error
}
