package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"azul/internal/chat"
	"azul/internal/client"
	"azul/internal/commands"
	"azul/internal/config"
	"azul/internal/editor"
	"azul/internal/fileutil"
	"azul/internal/highlight"
	"azul/internal/logging"
	"azul/internal/permission"
	"azul/internal/security"
	"azul/internal/semantic"
	"azul/internal/tasks"
	"azul/internal/ui"
	"azul/internal/undo"
	"azul/internal/watcher"
)

// maxUndo is how many file changes /undo can revert.
const maxUndo = 50

// Options configure the terminal and allow tests to inject collaborators.
type Options struct {
	In      io.Reader
	Out     io.Writer
	Color   bool
	Version string

	// Client replaces the configured model backend when set.
	Client client.Client
	// Embedder replaces the configured embedding backend when set.
	Embedder semantic.Embedder
}

// App is the interactive assistant: it owns the model client, the
// project-scoped components and the REPL.
type App struct {
	cfg       *config.Config
	configDir string
	version   string

	ctx    context.Context
	cancel context.CancelFunc

	client      client.Client
	embedder    semantic.Embedder
	gate        *permission.Gate
	runner      *tasks.Runner
	undoManager *undo.Manager
	sessions    *chat.Store
	highlighter *highlight.Highlighter
	metrics     *semantic.Metrics
	handler     *commands.Handler

	renderer *ui.Renderer
	input    *ui.Input

	mu            sync.Mutex
	project       *project
	taskCancel    context.CancelFunc
	signalCleanup func()
	closeOnce     sync.Once
}

// New builds the application for the project at workDir.
func New(cfg *config.Config, workDir string, opts Options) (*App, error) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	ctx, cancel := context.WithCancel(context.Background())
	color := cfg.UI.Color && opts.Color
	hl := highlight.New(cfg.UI.HighlightStyle, color)
	renderer := ui.NewRenderer(opts.Out, ui.DefaultStyles(color), hl, cfg.UI.Markdown)
	input := ui.NewInput(opts.In, renderer)

	a := &App{
		cfg:         cfg,
		configDir:   config.ConfigDir(),
		version:     opts.Version,
		ctx:         ctx,
		cancel:      cancel,
		highlighter: hl,
		renderer:    renderer,
		input:       input,
		undoManager: undo.NewManager(maxUndo),
		sessions:    chat.NewStore(cfg.Session.Dir, cfg.Session.Window),
		metrics:     semantic.NewMetrics(),
		handler:     commands.NewHandler(),
	}

	a.client = opts.Client
	if a.client == nil {
		c, err := client.NewClient(ctx, cfg)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
		a.client = c
	}
	if sr, ok := a.client.(statusReporter); ok {
		sr.SetStatusCallback(&retryReporter{renderer: renderer})
	}

	if cfg.RAG.Enabled {
		a.embedder = opts.Embedder
		if a.embedder == nil {
			emb, err := newEmbedder(ctx, cfg, a.client)
			if err != nil {
				logging.Warn("retrieval disabled", "error", err)
				renderer.Warning(fmt.Sprintf("Retrieval disabled: %v", err))
			}
			a.embedder = emb
		}
	}

	a.gate = permission.NewGate(cfg.Permission,
		permission.NewTerminalPrompter(renderer, input.ReadLine, renderer.Diff))
	a.runner = tasks.NewRunner(workDir, cfg.Tools.ExecTimeout,
		security.NewCommandValidator(cfg.Tools.BlockedCommands))

	p, err := a.openProject(ctx, workDir)
	if err != nil {
		a.client.Close()
		cancel()
		return nil, err
	}
	a.project = p

	logging.Info("app initialized",
		"root", p.root,
		"provider", cfg.Model.Provider,
		"model", a.client.GetModel(),
		"rag", p.indexer != nil)
	return a, nil
}

func (a *App) currentProject() *project {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.project
}

func (a *App) setTaskCancel(cancel context.CancelFunc) {
	a.mu.Lock()
	a.taskCancel = cancel
	a.mu.Unlock()
}

// cancelTask stops the running task. It reports false when nothing runs.
func (a *App) cancelTask() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.taskCancel == nil {
		return false
	}
	a.taskCancel()
	return true
}

// ChangeDir switches the working project. The current session is saved and
// the new project's session, index and tools take over.
func (a *App) ChangeDir(ctx context.Context, dir string) error {
	current := a.currentProject()

	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(current.root, dir)
	}
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	next, err := a.openProject(ctx, dir)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.project = next
	a.mu.Unlock()

	a.closeProject(current)
	a.gate.ClearSession()
	logging.Info("changed project", "from", current.root, "to", next.root)
	return nil
}

// ResetConversation clears the history of the current project.
func (a *App) ResetConversation() error {
	p := a.currentProject()
	p.session.Reset()
	a.gate.ClearSession()
	return a.sessions.Save(p.session)
}

// GetSession returns the conversation of the current project.
func (a *App) GetSession() *chat.Session { return a.currentProject().session }

// GetWorkDir returns the current project root.
func (a *App) GetWorkDir() string { return a.currentProject().root }

// GetConfig returns the application configuration.
func (a *App) GetConfig() *config.Config { return a.cfg }

// GetClient returns the model client.
func (a *App) GetClient() client.Client { return a.client }

// GetEditor returns the diff editor of the current project.
func (a *App) GetEditor() *editor.Editor { return a.currentProject().editor }

// GetFileStore returns the file store of the current project.
func (a *App) GetFileStore() *fileutil.Store { return a.currentProject().store }

// GetUndoManager returns the journal of file changes.
func (a *App) GetUndoManager() *undo.Manager { return a.undoManager }

// GetHighlighter returns the syntax highlighter.
func (a *App) GetHighlighter() *highlight.Highlighter { return a.highlighter }

// GetIndexer returns the semantic indexer, or nil when retrieval is off.
func (a *App) GetIndexer() *semantic.Indexer { return a.currentProject().indexer }

// GetMetrics returns the retrieval metrics.
func (a *App) GetMetrics() *semantic.Metrics { return a.metrics }

// GetWatcher returns the file watcher, or nil when it is not running.
func (a *App) GetWatcher() *watcher.Watcher { return a.currentProject().watcher }

var _ commands.AppInterface = (*App)(nil)
