package queue

import (
	"context"
	"fmt"
)

// CompletionMarker is written into the status column (spreadsheet queues)
// and used as the completed-subfolder name (folder queues). Rows or files
// carrying it are skipped on every run, which is what makes runs resumable.
const CompletionMarker = "已分析分镜提示词"

type Kind string

const (
	KindYouTube Kind = "youtube"
	KindLocal   Kind = "local"
)

// WorkItem is one unit of processing: a remote media reference or a local
// media file with one expected structured output. Immutable once dispatched.
type WorkItem struct {
	ID       string
	Title    string
	MediaRef string
	Kind     Kind
	// RowIndex is the 1-based spreadsheet row backing the item, -1 for
	// folder-backed items.
	RowIndex int
}

// Repository abstracts the external work queue so the orchestrator never
// does ambient file I/O and tests can substitute a fake.
type Repository interface {
	// Load scans the queue and returns pending items only; items already
	// marked complete are skipped and left untouched.
	Load(ctx context.Context) ([]WorkItem, error)
	// MarkComplete records the item as done. Must be idempotent: marking an
	// already-complete item is a no-op, so a retry after a partial failure
	// is safe.
	MarkComplete(ctx context.Context, item WorkItem) error
}

// NewRepository builds the queue backend for the given kind.
func NewRepository(kind Kind, sourcePath string) (Repository, error) {
	switch kind {
	case KindYouTube:
		return NewExcelQueue(sourcePath, NewTitleEnricher()), nil
	case KindLocal:
		return NewFolderQueue(sourcePath), nil
	default:
		return nil, fmt.Errorf("unknown queue kind %q", kind)
	}
}
