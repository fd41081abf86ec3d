package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"storyboard/internal/logger"
)

// supportedExtensions is the fixed allow-list of media files picked up from
// a folder-backed queue.
var supportedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
}

// FolderQueue treats a directory of media files as the work queue.
// Completed files are relocated into a completed subfolder, which is also
// what excludes them from future scans.
type FolderQueue struct {
	log *logger.Logger
	dir string
}

func NewFolderQueue(dir string) *FolderQueue {
	return &FolderQueue{log: logger.New("FolderQueue"), dir: dir}
}

func (q *FolderQueue) completedDir() string {
	return filepath.Join(q.dir, CompletionMarker)
}

func (q *FolderQueue) Load(ctx context.Context) ([]WorkItem, error) {
	info, err := os.Stat(q.dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("not a valid folder: %s", q.dir)
	}
	if err := os.MkdirAll(q.completedDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create completed folder: %w", err)
	}

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", q.dir, err)
	}

	var items []WorkItem
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !supportedExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		items = append(items, WorkItem{
			ID:       name,
			Title:    name,
			MediaRef: filepath.Join(q.dir, name),
			Kind:     KindLocal,
			RowIndex: -1,
		})
	}
	return items, nil
}

// MarkComplete moves the processed media file into the completed subfolder.
// If a previous attempt already moved it, this is a no-op.
func (q *FolderQueue) MarkComplete(ctx context.Context, item WorkItem) error {
	dest := filepath.Join(q.completedDir(), filepath.Base(item.MediaRef))
	if _, err := os.Stat(item.MediaRef); os.IsNotExist(err) {
		if _, destErr := os.Stat(dest); destErr == nil {
			return nil // already relocated
		}
		return fmt.Errorf("media file missing: %s", item.MediaRef)
	}
	if err := os.Rename(item.MediaRef, dest); err != nil {
		return fmt.Errorf("move %s to completed folder: %w", item.MediaRef, err)
	}
	q.log.LogInfof("moved %q to completed folder", filepath.Base(item.MediaRef))
	return nil
}
