// Package sqlite provides a SQLite-backed implementation of journal.Repository.
//
// WAL mode is enabled on Open so that the pipeline goroutines writing rows do
// not block readers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/otel-orders/internal/coordinator/journal"

	// Pure-Go SQLite driver, no CGO.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
const schema = `
CREATE TABLE IF NOT EXISTS order_journal (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    pipeline_id     TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    current_step    TEXT        NOT NULL DEFAULT '',
    payload         TEXT,
    error_messages  TEXT        NOT NULL DEFAULT '[]',
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',
    updated_at      TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_journal_pipeline_id ON order_journal(pipeline_id);
CREATE INDEX IF NOT EXISTS idx_order_journal_trace_id ON order_journal(trace_id);
`

// timeLayout is fixed width so stored timestamps also sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no rows exist for the requested key.
var ErrNotFound = journal.ErrNotFound

// Repository is the SQLite implementation of journal.Repository.
type Repository struct {
	db *sql.DB
}

var (
	_ journal.Repository = (*Repository)(nil)
	_ journal.Reader     = (*Repository)(nil)
)

// Open opens (or creates) the SQLite database at the given path and applies
// the schema.
//
//	repo, err := sqlite.Open("./data/journal.db")
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new journal entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *journal.Entry) error {
	const q = `
		INSERT INTO order_journal
			(pipeline_id, status, current_step, payload, error_messages, trace_id, span_id, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.PipelineID,
		string(entry.Status),
		entry.CurrentStep,
		nullableString(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		entry.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save journal entry for %q: %w", entry.PipelineID, err)
	}
	return nil
}

// GetLatest returns the last entry written for a pipeline.
func (r *Repository) GetLatest(ctx context.Context, pipelineID string) (*journal.Entry, error) {
	const q = `
		SELECT pipeline_id, status, current_step, COALESCE(payload,''), error_messages,
		       trace_id, span_id, updated_at
		FROM   order_journal
		WHERE  pipeline_id = ?
		ORDER  BY id DESC
		LIMIT  1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, q, pipelineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: pipeline %q: %w", pipelineID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get latest for %q: %w", pipelineID, err)
	}
	return entry, nil
}

// History returns every entry of a pipeline in insertion order.
func (r *Repository) History(ctx context.Context, pipelineID string) ([]*journal.Entry, error) {
	const q = `
		SELECT pipeline_id, status, current_step, COALESCE(payload,''), error_messages,
		       trace_id, span_id, updated_at
		FROM   order_journal
		WHERE  pipeline_id = ?
		ORDER  BY id ASC`

	return r.query(ctx, q, pipelineID)
}

// ByTrace returns every entry written under the given trace id.
func (r *Repository) ByTrace(ctx context.Context, traceID string) ([]*journal.Entry, error) {
	const q = `
		SELECT pipeline_id, status, current_step, COALESCE(payload,''), error_messages,
		       trace_id, span_id, updated_at
		FROM   order_journal
		WHERE  trace_id = ?
		ORDER  BY id ASC`

	return r.query(ctx, q, traceID)
}

func (r *Repository) query(ctx context.Context, q string, arg string) ([]*journal.Entry, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query journal: %w", err)
	}
	defer rows.Close()

	var out []*journal.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan journal: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate journal: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*journal.Entry, error) {
	var entry journal.Entry
	var updatedAt string
	err := row.Scan(
		&entry.PipelineID,
		&entry.Status,
		&entry.CurrentStep,
		&entry.Payload,
		&entry.ErrorMessages,
		&entry.TraceID,
		&entry.SpanID,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: parse time %q: %w", updatedAt, err)
	}
	return &entry, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so SQLite stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
