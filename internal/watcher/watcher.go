package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"azul/internal/fileutil"
	"azul/internal/git"
	"azul/internal/logging"
)

const (
	defaultDebounce   = 500 * time.Millisecond
	defaultMaxWatches = 1000
	recentEvents      = 20
)

// noisyDirs are never watched even without a .gitignore.
var noisyDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".idea": true, ".vscode": true,
	"__pycache__": true, "target": true, "build": true, "dist": true, "venv": true,
}

// Watcher reports files under a project root that changed and then stayed
// quiet for the debounce interval. Every path has its own timer; fired
// paths are handed to one dispatcher goroutine so the handler never runs
// concurrently with itself.
type Watcher struct {
	root     string
	ignore   *git.GitIgnore
	debounce time.Duration
	limit    int
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	handler FileChangeHandler
	timers  map[string]*time.Timer
	recent  *eventBuffer
	running bool

	ready    chan string
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewWatcher prepares a watcher for root. A disabled config gives a
// watcher whose Start and Stop are no-ops.
func NewWatcher(root string, ignore *git.GitIgnore, cfg Config) (*Watcher, error) {
	w := &Watcher{root: root}
	if !cfg.Enabled {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsw = fsw
	w.ignore = ignore
	w.debounce = cmpOr(cfg.Debounce, defaultDebounce)
	w.limit = cmpOr(cfg.MaxWatches, defaultMaxWatches)
	w.timers = make(map[string]*time.Timer)
	w.recent = newEventBuffer(recentEvents)
	w.ready = make(chan string, 64)
	w.quit = make(chan struct{})
	return w, nil
}

func cmpOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (w *Watcher) SetOnFileChange(handler FileChangeHandler) {
	w.mu.Lock()
	w.handler = handler
	w.mu.Unlock()
}

// Start watches every directory of the project that is not ignored.
func (w *Watcher) Start() error {
	if w.fsw == nil {
		return nil
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watchTree(w.root); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.receive()
	go w.dispatch()

	logging.Debug("file watcher started", "root", w.root, "watches", w.WatchedPaths())
	return nil
}

// Stop ends watching. Pending changes are dropped; a handler call in
// progress finishes before Stop returns.
func (w *Watcher) Stop() error {
	if w.fsw == nil {
		return nil
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.quit) })
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// WatchedPaths is the number of directories being watched.
func (w *Watcher) WatchedPaths() int {
	if w.fsw == nil {
		return 0
	}
	return len(w.fsw.WatchList())
}

func (w *Watcher) Stats() Stats {
	s := Stats{
		Running:      w.IsRunning(),
		WatchedPaths: w.WatchedPaths(),
		Events:       w.count.Load(),
	}
	if w.recent != nil {
		w.mu.Lock()
		s.Recent = w.recent.recent(5)
		w.mu.Unlock()
	}
	return s
}

// skip reports paths outside the root, our own temp files and anything
// the .gitignore excludes.
func (w *Watcher) skip(path string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	if fileutil.IsTempFile(path) {
		return true
	}
	if rel == "." || w.ignore == nil {
		return false
	}
	return w.ignore.Match(filepath.ToSlash(rel), isDir)
}

func skipDir(name string) bool {
	return noisyDirs[name] || strings.HasPrefix(name, ".")
}

// scratchFile matches editor swap and backup files.
func scratchFile(name string) bool {
	return name == "" || name[0] == '.' || name[0] == '#' ||
		strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp")
}

// watchTree adds dir and its subdirectories until the watch limit is hit.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && (skipDir(d.Name()) || w.skip(path, true)) {
			return filepath.SkipDir
		}
		if len(w.fsw.WatchList()) >= w.limit {
			logging.Debug("watch limit reached", "limit", w.limit)
			return filepath.SkipAll
		}
		if err := w.fsw.Add(path); err != nil {
			logging.Debug("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) receive() {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.observe(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) observe(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || scratchFile(filepath.Base(ev.Name)) {
		return
	}

	info, err := os.Stat(ev.Name)
	isDir := err == nil && info.IsDir()
	if w.skip(ev.Name, isDir) {
		return
	}
	if isDir {
		if ev.Has(fsnotify.Create) && !skipDir(filepath.Base(ev.Name)) {
			if err := w.watchTree(ev.Name); err != nil {
				logging.Debug("cannot watch new directory", "path", ev.Name, "error", err)
			}
		}
		return
	}
	w.arm(ev.Name)
}

// arm (re)starts the quiet period for path.
func (w *Watcher) arm(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.quit:
		}
	})
}

func (w *Watcher) dispatch() {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			return
		case path := <-w.ready:
			w.deliver(path)
		}
	}
}

func (w *Watcher) deliver(path string) {
	op := OpModify
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		op = OpDelete
	}

	w.mu.Lock()
	handler := w.handler
	w.recent.add(Event{Path: path, Operation: op, Time: time.Now()})
	w.mu.Unlock()
	w.count.Add(1)

	if handler != nil {
		handler(path, op)
	}
}
