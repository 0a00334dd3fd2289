package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"azul/internal/agent"
	"azul/internal/chat"
	"azul/internal/client"
	"azul/internal/editor"
	"azul/internal/fileutil"
	"azul/internal/git"
	"azul/internal/logging"
	"azul/internal/security"
	"azul/internal/semantic"
	"azul/internal/tools"
	"azul/internal/watcher"
)

// watchUpdateTimeout bounds re-indexing of one changed file.
const watchUpdateTimeout = 2 * time.Minute

// project holds everything scoped to one working directory. /cd replaces
// it as a whole.
type project struct {
	root     string
	store    *fileutil.Store
	editor   *editor.Editor
	registry *tools.Registry
	session  *chat.Session
	loop     *agent.Loop

	index     *semantic.VectorIndex
	indexer   *semantic.Indexer
	retriever *semantic.Retriever
	augmenter *semantic.Augmenter
	watcher   *watcher.Watcher

	// background indexing
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (a *App) openProject(ctx context.Context, dir string) (*project, error) {
	sb, err := security.NewSandbox(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid project root: %w", err)
	}
	root := sb.Root()

	backupDir := ""
	if a.configDir != "" {
		backupDir = filepath.Join(a.configDir, "backups", chat.SessionID(root))
	}
	store := fileutil.NewStore(sb, a.cfg.Files.MaxFileSize(), backupDir)

	var repo *git.Repo
	if r := git.NewRepo(root); r.IsRepo(ctx) {
		repo = r
	}
	ed := editor.New(store, a.gate, repo, a.undoManager, editor.Options{
		GitBranch:    a.cfg.Editor.GitBranch,
		GitStage:     a.cfg.Editor.GitStage,
		BranchPrefix: a.cfg.Editor.BranchPrefix,
	})
	a.runner.SetWorkDir(root)

	registry := tools.NewDefaultRegistry(tools.Deps{
		Root:           root,
		Store:          store,
		Editor:         ed,
		Runner:         a.runner,
		Gate:           a.gate,
		TreeDepth:      a.cfg.Agent.TreeDepth,
		TailLines:      a.cfg.Tools.TailLines,
		MaxOutputChars: a.cfg.Tools.MaxOutputChars,
	})

	session, err := a.sessions.Load(root)
	if err != nil {
		logging.Warn("failed to load session", "root", root, "error", err)
		a.renderer.Warning(fmt.Sprintf("Could not load previous session: %v", err))
		session = chat.NewSession(root, a.cfg.Session.Window)
	}

	pctx, cancel := context.WithCancel(a.ctx)
	p := &project{
		root:     root,
		store:    store,
		editor:   ed,
		registry: registry,
		session:  session,
		ctx:      pctx,
		cancel:   cancel,
	}

	if a.embedder != nil {
		a.openRetrieval(p)
	}

	deps := agent.Deps{
		Client:   a.client,
		Session:  session,
		Store:    a.sessions,
		Registry: registry,
		Metrics:  a.metrics,
		Config:   a.cfg.Agent,
		Options: client.Options{
			Temperature: a.cfg.Model.Temperature,
			MaxTokens:   a.cfg.Model.MaxTokens,
		},
		Root: root,
	}
	// typed nils would defeat the loop's nil checks
	if p.retriever != nil {
		deps.Retriever = p.retriever
		deps.Augmenter = p.augmenter
	}
	p.loop = agent.NewLoop(deps)
	return p, nil
}

// openRetrieval opens the vector index, starts indexing in the background
// and keeps the index current through the file watcher. Failures only
// disable retrieval.
func (a *App) openRetrieval(p *project) {
	rag := a.cfg.RAG
	idx, err := semantic.OpenIndex(semantic.IndexPath(rag.IndexDir, p.root))
	if err != nil {
		logging.Warn("failed to open vector index", "error", err)
		a.renderer.Warning(fmt.Sprintf("Retrieval disabled: %v", err))
		return
	}

	p.index = idx
	p.indexer = semantic.NewIndexer(p.root,
		semantic.NewChunker(rag.MaxChunkTokens, rag.OverlapLines),
		a.embedder, idx,
		semantic.IndexerOptions{
			BatchSize:   rag.BatchSize,
			MaxFileSize: a.cfg.Files.MaxFileSize(),
			Exclude:     rag.ExcludePatterns,
		},
		a.metrics)
	p.retriever = semantic.NewRetriever(a.embedder, idx, rag.TopK, a.metrics)
	p.augmenter = semantic.NewAugmenter(rag.ContextWindow, rag.ReserveTokens)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		a.indexInBackground(p)
	}()

	if rag.Watch {
		a.startWatcher(p)
	}
}

func (a *App) indexInBackground(p *project) {
	stats, err := p.indexer.IndexProject(p.ctx, func(done, total int, path string) {
		logging.Debug("indexed file", "done", done, "total", total, "path", path)
	})
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		logging.Warn("indexing failed", "root", p.root, "error", err)
		a.renderer.Warning(fmt.Sprintf("Indexing failed: %v", err))
		return
	}
	if stats.Embedded > 0 || stats.Removed > 0 {
		a.renderer.Info(fmt.Sprintf("Indexed %d files (%d chunks, %d reused) in %s",
			stats.Files, stats.Embedded, stats.Reused, stats.Duration.Round(time.Millisecond)))
	}
	if stats.Failed > 0 {
		a.renderer.Warning(fmt.Sprintf("%d chunks could not be embedded", stats.Failed))
	}
}

func (a *App) startWatcher(p *project) {
	ignore := git.NewGitIgnore(p.root)
	if err := ignore.Load(); err != nil {
		logging.Debug("failed to load .gitignore", "error", err)
	}

	w, err := watcher.NewWatcher(p.root, ignore, watcher.Config{
		Enabled:  true,
		Debounce: a.cfg.RAG.Debounce,
	})
	if err != nil {
		logging.Warn("file watcher unavailable", "error", err)
		return
	}
	w.SetOnFileChange(watcher.IndexHandler(p.indexer, watchUpdateTimeout))
	if err := w.Start(); err != nil {
		logging.Warn("failed to start file watcher", "error", err)
		return
	}
	p.watcher = w
}

// closeProject stops background work and persists the session.
func (a *App) closeProject(p *project) {
	if p == nil {
		return
	}
	if p.watcher != nil {
		if err := p.watcher.Stop(); err != nil {
			logging.Debug("error stopping file watcher", "error", err)
		}
	}
	p.cancel()
	p.wg.Wait()

	if p.index != nil {
		if err := p.index.Close(); err != nil {
			logging.Debug("error closing index", "error", err)
		}
	}
	if err := a.sessions.Save(p.session); err != nil {
		logging.Warn("failed to save session", "error", err)
	}
}
