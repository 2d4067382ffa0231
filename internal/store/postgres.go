package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"highlightsync/internal/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores annotations in the schema applied by cmd/migrate.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; Close releases it.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

func (r *Postgres) Close() error {
	r.db.Close()
	return nil
}

func (r *Postgres) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Postgres) Upsert(ctx context.Context, a entity.Annotation) (bool, error) {
	md, err := encodeMetadata(a.Metadata)
	if err != nil {
		return false, err
	}
	captured := a.CapturedAt
	if captured.IsZero() {
		captured = time.Now().UTC()
	}

	const sql = `
		INSERT INTO highlights_notes
			(book_title, book_author, book_asin, item_type, content, original_id, book_metadata, retrieved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (original_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, sql,
		a.Book.Title, a.Book.Author, a.Book.VendorID, string(a.Kind), a.Content, a.SourceID, nullBytes(md), captured)
	if err != nil {
		return false, fmt.Errorf("insert annotation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Postgres) Query(ctx context.Context, f Filter) ([]entity.Annotation, error) {
	clause, args := where(f, func(i int) string { return "$" + strconv.Itoa(i) })
	sql := `SELECT book_title, COALESCE(book_author, ''), COALESCE(book_asin, ''), item_type, content, original_id, book_metadata, retrieved_at
		FROM highlights_notes` + clause + ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	var out []entity.Annotation
	for rows.Next() {
		var (
			a    entity.Annotation
			kind string
			md   []byte
		)
		if err := rows.Scan(&a.Book.Title, &a.Book.Author, &a.Book.VendorID, &kind, &a.Content, &a.SourceID, &md, &a.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.Kind = entity.Kind(kind)
		a.Metadata = decodeMetadata(md)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Postgres) Books(ctx context.Context) ([]entity.BookKey, error) {
	rows, err := r.db.Query(ctx, `
		SELECT book_title,
			COALESCE(MAX(NULLIF(book_author, $1)), MAX(book_author), ''),
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

func (r *Postgres) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT (book_title, COALESCE(book_asin, ''))),
			COUNT(*),
			COUNT(*) FILTER (WHERE item_type = 'highlight'),
			COUNT(*) FILTER (WHERE item_type = 'note'),
			COUNT(*) FILTER (WHERE book_metadata IS NOT NULL),
			MAX(retrieved_at)
		FROM highlights_notes`,
	).Scan(&st.Books, &st.Annotations, &st.Highlights, &st.Notes, &st.Enriched, &st.LastCaptured)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func (r *Postgres) CreateRun(ctx context.Context, run *entity.Run) (string, error) {
	const sql = `
		INSERT INTO runs (kind, status, started_at)
		VALUES ($1, $2, $3)
		RETURNING id::text`

	var id string
	err := r.db.QueryRow(ctx, sql, string(run.Kind), run.Status, run.StartedAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (r *Postgres) UpdateRun(ctx context.Context, run *entity.Run) error {
	const sql = `
		UPDATE runs SET
			finished_at = $1,
			status = $2,
			books_seen = $3,
			books_skipped = $4,
			records_collected = $5,
			records_inserted = $6,
			books_created = $7,
			notes_created = $8,
			notes_failed = $9,
			error = $10
		WHERE id = $11`

	tag, err := r.db.Exec(ctx, sql, run.FinishedAt, run.Status,
		run.BooksSeen, run.BooksSkipped, run.RecordsCollected, run.RecordsInserted,
		run.BooksCreated, run.NotesCreated, run.NotesFailed, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, pgx.ErrNoRows)
	}
	return nil
}

func (r *Postgres) ListRuns(ctx context.Context, limit int) ([]entity.Run, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, kind, status, started_at, finished_at,
			books_seen, books_skipped, records_collected, records_inserted,
			books_created, notes_created, notes_failed, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1`, runLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []entity.Run
	for rows.Next() {
		var (
			run  entity.Run
			kind string
		)
		if err := rows.Scan(&run.ID, &kind, &run.Status, &run.StartedAt, &run.FinishedAt,
			&run.BooksSeen, &run.BooksSkipped, &run.RecordsCollected, &run.RecordsInserted,
			&run.BooksCreated, &run.NotesCreated, &run.NotesFailed, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Kind = entity.RunKind(kind)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
