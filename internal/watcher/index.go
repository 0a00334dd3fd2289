package watcher

import (
	"context"
	"time"

	"azul/internal/logging"
	"azul/internal/semantic"
)

// IndexUpdater is the part of the semantic indexer the watcher drives.
type IndexUpdater interface {
	UpdateFile(ctx context.Context, path string) (*semantic.IndexStats, error)
	RemoveFile(ctx context.Context, path string) (int, error)
}

// IndexHandler returns a handler that keeps the vector index in sync with
// changed files. Each update gets its own timeout so a hung embedding
// provider cannot stall the watcher.
func IndexHandler(indexer IndexUpdater, timeout time.Duration) FileChangeHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return func(path string, op Operation) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		switch op {
		case OpDelete:
			n, err := indexer.RemoveFile(ctx, path)
			if err != nil {
				logging.Warn("failed to remove file from index", "path", path, "error", err)
				return
			}
			logging.Debug("removed file from index", "path", path, "chunks", n)
		default:
			stats, err := indexer.UpdateFile(ctx, path)
			if err != nil {
				logging.Warn("failed to re-index file", "path", path, "error", err)
				return
			}
			logging.Debug("re-indexed file", "path", path, "chunks", stats.Chunks, "embedded", stats.Embedded)
		}
	}
}
