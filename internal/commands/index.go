package commands

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// IndexCommand manages the retrieval index of the current project.
type IndexCommand struct{}

func (c *IndexCommand) Name() string        { return "index" }
func (c *IndexCommand) Description() string { return "Rebuild or inspect the code index" }
func (c *IndexCommand) Usage() string {
	return `/index           - Show index statistics
/index rebuild   - Re-index the project (unchanged chunks are reused)
/index clear     - Drop every indexed chunk`
}

func (c *IndexCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	indexer := app.GetIndexer()
	if indexer == nil {
		return "Retrieval is disabled (rag.enabled is false).", nil
	}

	sub := "stats"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "rebuild", "reindex":
		stats, err := indexer.IndexProject(ctx, nil)
		if err != nil {
			return fmt.Sprintf("Indexing failed: %v", err), nil
		}
		msg := fmt.Sprintf("Indexed %d files: %d chunks (%d reused, %d failed), %d removed in %s",
			stats.Files, stats.Chunks, stats.Reused, stats.Failed, stats.Removed, stats.Duration.Round(time.Millisecond))
		if stats.Chunks > 0 && stats.Embedded == 0 {
			msg += "\nNo embeddings could be computed. Is the embedding model available?"
		}
		return msg, nil

	case "clear":
		if err := indexer.Clear(ctx); err != nil {
			return fmt.Sprintf("Cannot clear index: %v", err), nil
		}
		return "Index cleared.", nil

	case "stats":
		var sb strings.Builder
		idx := indexer.Index()
		count, err := idx.Count(ctx)
		if err != nil {
			return fmt.Sprintf("Cannot read index: %v", err), nil
		}
		files, _ := idx.Files(ctx)
		fmt.Fprintf(&sb, "Index: %s\n", idx.Path())
		fmt.Fprintf(&sb, "Chunks: %d from %d files (dimension %d, %.1f MB)\n",
			count, len(files), idx.Dimension(), float64(idx.Size())/1024/1024)

		if m := app.GetMetrics(); m != nil {
			sb.WriteString(m.Summary())
		}
		if w := app.GetWatcher(); w != nil && w.IsRunning() {
			st := w.Stats()
			fmt.Fprintf(&sb, "Watcher: %d directories, %d changes handled\n", st.WatchedPaths, st.Events)
			for _, e := range st.Recent {
				fmt.Fprintf(&sb, "  %s %s %s\n", e.Time.Format("15:04:05"), e.Operation, e.Path)
			}
		}
		return strings.TrimRight(sb.String(), "\n"), nil

	default:
		return fmt.Sprintf("Unknown subcommand %q.\n%s", sub, c.Usage()), nil
	}
}
