package journal

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Reader.GetLatest when a pipeline has no entries.
var ErrNotFound = errors.New("journal: entry not found")

// Repository persists journal entries. The table is append-only.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
}

// Reader answers audit queries over the journal.
type Reader interface {
	GetLatest(ctx context.Context, pipelineID string) (*Entry, error)
	History(ctx context.Context, pipelineID string) ([]*Entry, error)
	ByTrace(ctx context.Context, traceID string) ([]*Entry, error)
}
