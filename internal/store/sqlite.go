package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"highlightsync/internal/entity"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// SQLite is the default single-file store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Upsert(ctx context.Context, a entity.Annotation) (bool, error) {
	md, err := encodeMetadata(a.Metadata)
	if err != nil {
		return false, err
	}
	captured := a.CapturedAt
	if captured.IsZero() {
		captured = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO highlights_notes
			(book_title, book_author, book_asin, item_type, content, original_id, book_metadata, retrieved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Book.Title, a.Book.Author, a.Book.VendorID, string(a.Kind), a.Content, a.SourceID, nullBytes(md), captured,
	)
	if err != nil {
		return false, fmt.Errorf("insert annotation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert annotation: %w", err)
	}
	return n == 1, nil
}

func (s *SQLite) Query(ctx context.Context, f Filter) ([]entity.Annotation, error) {
	clause, args := where(f, func(int) string { return "?" })
	q := `SELECT book_title, book_author, book_asin, item_type, content, original_id, book_metadata, retrieved_at
		FROM highlights_notes` + clause + ` ORDER BY id`
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	var out []entity.Annotation
	for rows.Next() {
		var (
			a      entity.Annotation
			author sql.NullString
			asin   sql.NullString
			kind   string
			md     []byte
		)
		if err := rows.Scan(&a.Book.Title, &author, &asin, &kind, &a.Content, &a.SourceID, &md, &a.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.Book.Author = author.String
		a.Book.VendorID = asin.String
		a.Kind = entity.Kind(kind)
		a.Metadata = decodeMetadata(md)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Books lists one key per (title, vendor id), preferring a known author
// when the same book was stored under several author strings.
func (s *SQLite) Books(ctx context.Context) ([]entity.BookKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT book_title,
			COALESCE(MAX(NULLIF(book_author, ?)), MAX(book_author), ''),
			COALESCE(book_asin, '')
		FROM highlights_notes
		GROUP BY book_title, COALESCE(book_asin, '')
		ORDER BY 1, 3`, entity.UnknownAuthor)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var keys []entity.BookKey
	for rows.Next() {
		var k entity.BookKey
		if err := rows.Scan(&k.Title, &k.Author, &k.VendorID); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var (
		st   Stats
		last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT book_title || '|' || COALESCE(book_asin, '')),
			COUNT(*),
			COALESCE(SUM(CASE WHEN item_type = 'highlight' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN item_type = 'note' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN book_metadata IS NOT NULL THEN 1 ELSE 0 END), 0),
			MAX(retrieved_at)
		FROM highlights_notes`,
	).Scan(&st.Books, &st.Annotations, &st.Highlights, &st.Notes, &st.Enriched, &last)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	if last.Valid {
		// MAX() loses the column type, so the driver hands back text.
		if t, ok := parseSQLiteTime(last.String); ok {
			st.LastCaptured = &t
		}
	}
	return st, nil
}

func (s *SQLite) CreateRun(ctx context.Context, run *entity.Run) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)",
		id, string(run.Kind), run.Status, run.StartedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (s *SQLite) UpdateRun(ctx context.Context, run *entity.Run) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, finished_at = ?,
			books_seen = ?, books_skipped = ?,
			records_collected = ?, records_inserted = ?,
			books_created = ?, notes_created = ?, notes_failed = ?,
			error = ?
		WHERE id = ?`,
		run.Status, finished,
		run.BooksSeen, run.BooksSkipped,
		run.RecordsCollected, run.RecordsInserted,
		run.BooksCreated, run.NotesCreated, run.NotesFailed,
		run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]entity.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, started_at, finished_at,
			books_seen, books_skipped, records_collected, records_inserted,
			books_created, notes_created, notes_failed, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, runLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []entity.Run
	for rows.Next() {
		var (
			r        entity.Run
			kind     string
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &kind, &r.Status, &r.StartedAt, &finished,
			&r.BooksSeen, &r.BooksSkipped, &r.RecordsCollected, &r.RecordsInserted,
			&r.BooksCreated, &r.NotesCreated, &r.NotesFailed, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Kind = entity.RunKind(kind)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseSQLiteTime(s string) (time.Time, bool) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
