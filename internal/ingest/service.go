package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"highlightsync/internal/annotation"
	"highlightsync/internal/entity"
	"highlightsync/internal/errs"
	"highlightsync/internal/metric"
	"highlightsync/internal/notebook"

	"golang.org/x/sync/errgroup"
)

// Service is the extraction half: notebook pages to the local store.
type Service struct {
	source   Source
	enricher Enricher
	writer   Writer
	runs     RunRepository
	cfg      Config
	metrics  *metric.Metrics
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewService wires the extraction half. A nil enricher skips enrichment.
func NewService(source Source, enricher Enricher, writer Writer, runs RunRepository, cfg Config, metrics *metric.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:   source,
		enricher: enricher,
		writer:   writer,
		runs:     runs,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func (s *Service) Run(ctx context.Context) (rep Report, err error) {
	run := &entity.Run{
		Kind:      entity.RunExtract,
		Status:    entity.RunRunning,
		StartedAt: s.now(),
	}
	rep.Run = run

	runID, rErr := s.runs.CreateRun(ctx, run)
	if rErr != nil {
		return rep, errs.WrapFatal(rErr, "create extract run")
	}
	run.ID = runID

	defer func() {
		now := s.now()
		run.FinishedAt = &now
		if err != nil && run.Error == "" {
			run.Error = err.Error()
		}
		if run.Error != "" {
			run.Status = entity.RunFailed
		} else {
			run.Status = entity.RunCompleted
		}
		if updateErr := s.runs.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
			s.logger.Error("update extract run failed", "run_id", run.ID, "error", updateErr)
		}
		s.metrics.RunFinished(string(run.Kind), now)
	}()

	books, err := s.source.Books(ctx)
	if err != nil {
		return rep, fmt.Errorf("load notebook: %w", err)
	}
	books = s.selectBooks(books)
	s.logger.Info("extract started", "run_id", run.ID, "books", len(books))

	for i, b := range books {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		run.BooksSeen++

		br := s.processBook(ctx, run, b)
		rep.Books = append(rep.Books, br)
		if b.ExportLimited {
			rep.ExportLimited = appendUnique(rep.ExportLimited, br.Key.Title)
		}

		if i < len(books)-1 {
			if err := s.sleep(ctx, s.pause()); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

// processBook associates and enriches one book concurrently, then writes its
// records. Failures stay inside the book.
func (s *Service) processBook(ctx context.Context, run *entity.Run, b notebook.Book) BookReport {
	key := b.Key()
	log := s.logger.With("title", key.Title, "vendor_id", key.VendorID)
	br := BookReport{Key: key}

	var md *entity.Metadata
	g, gctx := errgroup.WithContext(ctx)
	if s.enricher != nil {
		g.Go(func() error {
			md = s.enricher.Enrich(gctx, key)
			return nil
		})
	}
	records := annotation.AssociateBook(key, b.Highlights, b.Notes, b.Nearest)
	_ = g.Wait()

	br.Enriched = md != nil
	if s.enricher != nil {
		s.metrics.Enrichment(br.Enriched)
	}
	if b.ExportLimited {
		log.Warn("export limit notice found")
	}

	captured := s.now().UTC()
	for _, rec := range records {
		rec.Metadata = md
		rec.CapturedAt = captured
		switch rec.Kind {
		case entity.KindHighlight:
			br.Highlights++
		case entity.KindNote:
			br.Notes++
		}

		inserted, err := s.writer.Upsert(ctx, rec)
		switch {
		case err != nil:
			s.metrics.Record(string(rec.Kind), "failed")
			log.Warn("store record failed", "source_id", rec.SourceID, "error", err)
		case inserted:
			br.Inserted++
			s.metrics.Record(string(rec.Kind), "inserted")
		default:
			s.metrics.Record(string(rec.Kind), "duplicate")
		}
	}

	run.RecordsCollected += len(records)
	run.RecordsInserted += br.Inserted
	if len(records) == 0 {
		run.BooksSkipped++
		s.metrics.Book("extract", "empty")
	} else {
		s.metrics.Book("extract", "ok")
	}
	log.Info("extracted book",
		"highlights", br.Highlights,
		"orphan_notes", br.Notes,
		"inserted", br.Inserted,
		"enriched", br.Enriched,
	)
	return br
}

func (s *Service) selectBooks(books []notebook.Book) []notebook.Book {
	if s.cfg.Title != "" {
		var out []notebook.Book
		for _, b := range books {
			if strings.EqualFold(strings.TrimSpace(b.Title), s.cfg.Title) {
				out = append(out, b)
			}
		}
		books = out
	}
	if s.cfg.MaxBooks > 0 && len(books) > s.cfg.MaxBooks {
		books = books[:s.cfg.MaxBooks]
	}
	return books
}

func (s *Service) pause() time.Duration {
	d := s.cfg.BookPause
	if s.cfg.BookJitter > 0 {
		d += rand.N(s.cfg.BookJitter)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Summary renders a report for terminal output.
func Summary(rep Report) string {
	run := rep.Run
	var b strings.Builder
	fmt.Fprintf(&b, "extract %s: books=%d empty=%d records=%d inserted=%d\n",
		strings.ToLower(run.Status), run.BooksSeen, run.BooksSkipped, run.RecordsCollected, run.RecordsInserted)
	if len(rep.ExportLimited) == 0 {
		b.WriteString("No export limit notices encountered.\n")
		return b.String()
	}
	b.WriteString("Books with export limit notices:\n")
	for _, t := range rep.ExportLimited {
		fmt.Fprintf(&b, "  - %s\n", t)
	}
	return b.String()
}
