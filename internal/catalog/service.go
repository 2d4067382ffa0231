package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"highlightsync/internal/entity"
	"highlightsync/internal/errs"
	"highlightsync/internal/metric"
	"highlightsync/internal/store"
)

const DefaultCollection = "Kindle Highlights"

type Config struct {
	Collection string
	ImportTag  string
	// Title restricts the run to one book when set.
	Title string
}

// Service is the synchronization half: local store to catalog.
type Service struct {
	client  Client
	records AnnotationReader
	runs    RunRepository
	cfg     Config
	metrics *metric.Metrics
	logger  *slog.Logger
}

func NewService(client Client, records AnnotationReader, runs RunRepository, cfg Config, metrics *metric.Metrics, logger *slog.Logger) *Service {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:  client,
		records: records,
		runs:    runs,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Run syncs every stored book into the target collection and returns the
// persisted run record. Per-book failures are counted; only setup failures
// (collection unreachable, store unreadable) are returned as errors.
func (s *Service) Run(ctx context.Context) (run *entity.Run, err error) {
	run = &entity.Run{
		Kind:      entity.RunSync,
		Status:    entity.RunRunning,
		StartedAt: time.Now(),
	}
	runID, rErr := s.runs.CreateRun(ctx, run)
	if rErr != nil {
		return run, errs.WrapFatal(rErr, "create sync run")
	}
	run.ID = runID

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err != nil && run.Error == "" {
			run.Error = err.Error()
		}
		if run.Error != "" {
			run.Status = entity.RunFailed
		} else {
			run.Status = entity.RunCompleted
		}
		// The caller's context may already be cancelled; the record still
		// needs closing.
		if updateErr := s.runs.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
			s.logger.Error("update sync run failed", "run_id", run.ID, "error", updateErr)
		}
		s.metrics.RunFinished(string(run.Kind), now)
	}()

	collectionKey, err := EnsureCollection(ctx, s.client, s.cfg.Collection)
	if err != nil {
		return run, errs.WrapFatal(err, "resolve collection")
	}
	s.logger.Info("sync started", "run_id", run.ID, "collection", s.cfg.Collection, "collection_key", collectionKey)

	books, err := s.records.Books(ctx)
	if err != nil {
		return run, errs.WrapFatal(err, "list stored books")
	}

	syncer := NewSyncer(s.client, collectionKey, s.cfg.ImportTag, s.logger)
	for _, key := range books {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if s.cfg.Title != "" && !strings.EqualFold(s.cfg.Title, key.Title) {
			continue
		}
		run.BooksSeen++

		if !key.HasTitle() {
			run.BooksSkipped++
			s.metrics.Book("sync", "skipped")
			s.logger.Warn("skipping book without title", "vendor_id", key.VendorID)
			continue
		}

		records, err := s.records.Query(ctx, store.Filter{Title: key.Title, VendorID: key.VendorID})
		if err != nil {
			run.BooksSkipped++
			s.metrics.Book("sync", "failed")
			s.logger.Warn("load records failed", "title", key.Title, "error", err)
			continue
		}
		run.RecordsCollected += len(records)

		res, err := syncer.Sync(ctx, key, records)
		if err != nil {
			run.BooksSkipped++
			s.metrics.Book("sync", "failed")
			s.logger.Warn("sync book failed", "title", key.Title, "error", err)
			continue
		}

		if res.CreatedBook {
			run.BooksCreated++
		}
		run.NotesCreated += res.CreatedNotes
		run.NotesFailed += res.FailedNotes
		s.metrics.Book("sync", "ok")
		s.metrics.Notes(res.CreatedNotes, res.FailedNotes)
		s.logger.Info("synced book",
			"title", key.Title,
			"parent", res.ParentKey,
			"created_book", res.CreatedBook,
			"notes_created", res.CreatedNotes,
			"notes_failed", res.FailedNotes,
		)
	}

	return run, nil
}

// Summary renders a run for terminal output.
func Summary(run *entity.Run) string {
	return fmt.Sprintf(
		"sync %s: books=%d skipped=%d created=%d notes=%d failed_notes=%d",
		strings.ToLower(run.Status), run.BooksSeen, run.BooksSkipped, run.BooksCreated, run.NotesCreated, run.NotesFailed,
	)
}
