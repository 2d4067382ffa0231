package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"highlightsync/internal/annotation"
	"highlightsync/internal/entity"
	"highlightsync/internal/errs"
	"highlightsync/internal/metric"
	"highlightsync/internal/notebook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Books(ctx context.Context) ([]notebook.Book, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notebook.Book), args.Error(1)
}

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Enrich(ctx context.Context, key entity.BookKey) *entity.Metadata {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entity.Metadata)
}

type mockRunRepo struct {
	mock.Mock
}

func (m *mockRunRepo) CreateRun(ctx context.Context, run *entity.Run) (string, error) {
	args := m.Called(ctx, run)
	return args.String(0), args.Error(1)
}

func (m *mockRunRepo) UpdateRun(ctx context.Context, run *entity.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// memWriter is an insert-if-absent map keyed on source id.
type memWriter struct {
	mu   sync.Mutex
	rows map[string]entity.Annotation
	fail map[string]bool
}

func newMemWriter() *memWriter {
	return &memWriter{rows: map[string]entity.Annotation{}, fail: map[string]bool{}}
}

func (w *memWriter) Upsert(ctx context.Context, a entity.Annotation) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail[a.SourceID] {
		return false, errors.New("disk I/O error")
	}
	if _, ok := w.rows[a.SourceID]; ok {
		return false, nil
	}
	w.rows[a.SourceID] = a
	return true, nil
}

func nearestOf(m map[string]string) annotation.Proximity {
	return func(id string) (string, bool) {
		n, ok := m[id]
		return n, ok
	}
}

func warAndPeace() notebook.Book {
	return notebook.Book{
		Title:       "War and Peace",
		Author:      "Leo Tolstoy",
		VendorToken: "B000FC0PDA",
		Highlights:  []annotation.Fragment{{ID: "H1", Text: "A"}},
		Notes:       []annotation.Fragment{{ID: "N1", Text: "B"}, {ID: "N2", Text: "C"}},
		Nearest:     nearestOf(map[string]string{"H1": "N1"}),
	}
}

func meditations() notebook.Book {
	return notebook.Book{
		Title:         "Meditations",
		Highlights:    []annotation.Fragment{{ID: "M1", Text: "Be one."}},
		Nearest:       nearestOf(nil),
		ExportLimited: true,
	}
}

func newTestService(src Source, enr Enricher, w Writer, runs RunRepository, cfg Config) *Service {
	s := NewService(src, enr, w, runs, cfg, metric.New(false), nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	md := &entity.Metadata{ISBN: "9781400079988", Publisher: "Vintage"}

	t.Run("associates enriches and stores", func(t *testing.T) {
		src := new(mockSource)
		enr := new(mockEnricher)
		runs := new(mockRunRepo)
		w := newMemWriter()
		s := newTestService(src, enr, w, runs, DefaultConfig())

		src.On("Books", ctx).Return([]notebook.Book{warAndPeace(), meditations()}, nil)
		enr.On("Enrich", mock.Anything, warAndPeace().Key()).Return(md)
		enr.On("Enrich", mock.Anything, meditations().Key()).Return(nil)
		runs.On("CreateRun", ctx, mock.Anything).Return("run-1", nil)
		runs.On("UpdateRun", mock.Anything, mock.MatchedBy(func(run *entity.Run) bool {
			return run.Status == entity.RunCompleted
		})).Return(nil)

		rep, err := s.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, "run-1", rep.Run.ID)
		assert.Equal(t, 2, rep.Run.BooksSeen)
		assert.Equal(t, 3, rep.Run.RecordsCollected)
		assert.Equal(t, 3, rep.Run.RecordsInserted)
		assert.Equal(t, []string{"Meditations"}, rep.ExportLimited)

		h1 := w.rows["H1"]
		assert.Equal(t, `"A" B`, h1.Content)
		assert.Equal(t, md, h1.Metadata)
		assert.False(t, h1.CapturedAt.IsZero())
		assert.Equal(t, "C", w.rows["N2"].Content)
		_, standalone := w.rows["N1"]
		assert.False(t, standalone)

		m1 := w.rows["M1"]
		assert.Nil(t, m1.Metadata)
		assert.Equal(t, entity.UnknownAuthor, m1.Book.Author)
		assert.Equal(t, entity.UnknownVendorID, m1.Book.VendorID)

		runs.AssertExpectations(t)
		enr.AssertExpectations(t)
	})

	t.Run("second run over the same notebook inserts nothing", func(t *testing.T) {
		src := new(mockSource)
		runs := new(mockRunRepo)
		w := newMemWriter()
		s := newTestService(src, nil, w, runs, DefaultConfig())

		src.On("Books", ctx).Return([]notebook.Book{warAndPeace()}, nil)
		runs.On("CreateRun", ctx, mock.Anything).Return("run", nil)
		runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)

		first, err := s.Run(ctx)
		require.NoError(t, err)
		second, err := s.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, first.Run.RecordsInserted)
		assert.Equal(t, 2, second.Run.RecordsCollected)
		assert.Equal(t, 0, second.Run.RecordsInserted)
		assert.Len(t, w.rows, 2)
	})

	t.Run("store failure is per record", func(t *testing.T) {
		src := new(mockSource)
		runs := new(mockRunRepo)
		w := newMemWriter()
		w.fail["H1"] = true
		s := newTestService(src, nil, w, runs, DefaultConfig())

		src.On("Books", ctx).Return([]notebook.Book{warAndPeace()}, nil)
		runs.On("CreateRun", ctx, mock.Anything).Return("run", nil)
		runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)

		rep, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, rep.Run.RecordsCollected)
		assert.Equal(t, 1, rep.Run.RecordsInserted)
	})

	t.Run("source failure fails the run", func(t *testing.T) {
		src := new(mockSource)
		runs := new(mockRunRepo)
		s := newTestService(src, nil, newMemWriter(), runs, DefaultConfig())

		src.On("Books", ctx).Return(nil, errs.WrapFatal(errors.New("no such directory"), "read snapshot dir"))
		runs.On("CreateRun", ctx, mock.Anything).Return("run-f", nil)
		runs.On("UpdateRun", mock.Anything, mock.MatchedBy(func(run *entity.Run) bool {
			return run.Status == entity.RunFailed && strings.Contains(run.Error, "no such directory")
		})).Return(nil)

		_, err := s.Run(ctx)
		require.Error(t, err)
		assert.True(t, errs.IsFatal(err))
		runs.AssertExpectations(t)
	})

	t.Run("title filter and max books", func(t *testing.T) {
		src := new(mockSource)
		runs := new(mockRunRepo)
		w := newMemWriter()
		s := newTestService(src, nil, w, runs, Config{Title: "meditations"})

		src.On("Books", ctx).Return([]notebook.Book{warAndPeace(), meditations()}, nil)
		runs.On("CreateRun", ctx, mock.Anything).Return("run", nil)
		runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)

		rep, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Run.BooksSeen)
		assert.Contains(t, w.rows, "M1")

		s = newTestService(src, nil, newMemWriter(), runs, Config{MaxBooks: 1})
		rep, err = s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Run.BooksSeen)
		assert.Equal(t, "War and Peace", rep.Books[0].Key.Title)
	})

	t.Run("pauses between books only", func(t *testing.T) {
		src := new(mockSource)
		runs := new(mockRunRepo)
		s := newTestService(src, nil, newMemWriter(), runs, Config{BookPause: time.Second, BookJitter: time.Second})
		var pauses []time.Duration
		s.sleep = func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		}

		src.On("Books", ctx).Return([]notebook.Book{warAndPeace(), meditations(), warAndPeace()}, nil)
		runs.On("CreateRun", ctx, mock.Anything).Return("run", nil)
		runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)

		_, err := s.Run(ctx)
		require.NoError(t, err)
		require.Len(t, pauses, 2)
		for _, d := range pauses {
			assert.GreaterOrEqual(t, d, time.Second)
			assert.Less(t, d, 2*time.Second)
		}
	})

	t.Run("cancelled context stops between books", func(t *testing.T) {
		src := new(mockSource)
		runs := new(mockRunRepo)
		s := newTestService(src, nil, newMemWriter(), runs, DefaultConfig())
		cctx, cancel := context.WithCancel(ctx)
		s.sleep = func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}

		src.On("Books", cctx).Return([]notebook.Book{warAndPeace(), meditations()}, nil)
		runs.On("CreateRun", cctx, mock.Anything).Return("run", nil)
		runs.On("UpdateRun", mock.Anything, mock.MatchedBy(func(run *entity.Run) bool {
			return run.Status == entity.RunFailed
		})).Return(nil)

		rep, err := s.Run(cctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, rep.Run.BooksSeen)
	})
}

func TestSummary(t *testing.T) {
	rep := Report{
		Run:           &entity.Run{Status: entity.RunCompleted, BooksSeen: 2, RecordsCollected: 3, RecordsInserted: 1},
		ExportLimited: []string{"Meditations"},
	}
	out := Summary(rep)
	assert.Contains(t, out, "extract completed: books=2 empty=0 records=3 inserted=1")
	assert.Contains(t, out, "Books with export limit notices:\n  - Meditations")

	rep.ExportLimited = nil
	assert.Contains(t, Summary(rep), "No export limit notices encountered.")
}
