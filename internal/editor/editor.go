package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"azul/internal/fileutil"
	"azul/internal/git"
	"azul/internal/logging"
	"azul/internal/permission"
	"azul/internal/undo"
)

// ErrDenied is returned when the user declines a change.
var ErrDenied = errors.New("permission denied")

// Options controls the optional version-control conveniences.
type Options struct {
	GitBranch    bool   // create a branch before the first edit
	GitStage     bool   // stage touched files afterwards
	BranchPrefix string // prefix for created branches
}

// Result describes a completed file mutation.
type Result struct {
	Path     string // absolute path
	Rel      string // project-relative path
	Bytes    int
	Added    int
	Removed  int
	Created  bool
	Skipped  int    // hunks declined in cherry-pick mode
	Backup   string // backup copy taken before the change, if any
	Warnings []string
}

// Editor applies diffs, writes, creations and deletions inside the project.
type Editor struct {
	store   *fileutil.Store
	gate    *permission.Gate
	repo    *git.Repo
	journal *undo.Manager
	opts    Options

	branched bool
	mu       sync.Mutex

	// replaced in tests to inject write failures
	write func(path, content string) error
}

// New creates an Editor. gate, repo and journal may be nil.
func New(store *fileutil.Store, gate *permission.Gate, repo *git.Repo, journal *undo.Manager, opts Options) *Editor {
	e := &Editor{
		store:   store,
		gate:    gate,
		repo:    repo,
		journal: journal,
		opts:    opts,
	}
	e.write = e.atomicWrite
	return e
}

// Store returns the underlying file store.
func (e *Editor) Store() *fileutil.Store {
	return e.store
}

func (e *Editor) atomicWrite(path, content string) error {
	return fileutil.AtomicWriteString(path, content, 0)
}

// WriteFile creates or overwrites a file without asking. Writes are
// recoverable through the undo journal.
func (e *Editor) WriteFile(ctx context.Context, name, content string) (*Result, error) {
	warnings := e.prepareBranch(ctx)

	wr, err := e.store.Write(name, content)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Path:     wr.Path,
		Rel:      wr.Rel,
		Bytes:    wr.Bytes,
		Created:  wr.Created,
		Warnings: warnings,
	}
	_, res.Added, res.Removed = Preview(wr.Rel, wr.OldContent, content)

	var old []byte
	if !wr.Created {
		old = []byte(wr.OldContent)
	}
	e.record(undo.NewFileChange(wr.Path, undo.KindWrite, old, []byte(content), wr.Created))
	res.Warnings = append(res.Warnings, e.stage(ctx, wr.Path, false)...)

	logging.Info("file written", "path", wr.Rel, "bytes", wr.Bytes, "created", wr.Created)
	return res, nil
}

// CreateFile shows a preview, asks for permission and writes the file.
// An existing file is previewed as a diff against its current content.
func (e *Editor) CreateFile(ctx context.Context, name, content string) (*Result, error) {
	path, err := e.store.Sandbox().SafePath(name)
	if err != nil {
		return nil, err
	}
	rel := e.store.Sandbox().Rel(path)

	old := ""
	if data, err := os.ReadFile(path); err == nil {
		old = string(data)
	}
	preview, _, _ := Preview(rel, old, content)

	if !e.allowed(ctx, "create", rel, preview) {
		return nil, fmt.Errorf("%w: create %s", ErrDenied, rel)
	}
	return e.WriteFile(ctx, name, content)
}

// ApplyDiff applies a unified diff (optionally fenced) to an existing file.
// The file is backed up first and restored if anything fails after the
// backup, so a failed edit never leaves partial content behind.
func (e *Editor) ApplyDiff(ctx context.Context, name, diffText string) (*Result, error) {
	file, err := e.store.Read(name)
	if err != nil {
		return nil, err
	}

	fd, err := ParseDiff(ExtractDiff(diffText))
	if err != nil {
		return nil, err
	}

	hunks, skipped, err := e.selectHunks(ctx, file.Rel, fd.Hunks)
	if err != nil {
		return nil, err
	}

	// CRLF files are patched as LF and converted back
	content := file.Content
	crlf := strings.Contains(content, "\r\n")
	if crlf {
		content = strings.ReplaceAll(content, "\r\n", "\n")
	}
	lines, trailing := splitLines(content)
	if content == "" {
		trailing = true
	}
	newLines, err := ApplyHunks(lines, hunks)
	if err != nil {
		return nil, fmt.Errorf("error updating %s: %w", file.Rel, err)
	}
	newContent := joinLines(newLines, trailing)
	if crlf {
		newContent = strings.ReplaceAll(strings.ReplaceAll(newContent, "\r\n", "\n"), "\n", "\r\n")
	}

	warnings := e.prepareBranch(ctx)

	backup, err := e.store.Backup(file.Path)
	if err != nil {
		return nil, err
	}
	if err := e.write(file.Path, newContent); err != nil {
		if rerr := e.store.Restore(backup, file.Path); rerr != nil {
			logging.Error("restore after failed edit failed", "path", file.Path, "backup", backup, "error", rerr)
			return nil, fmt.Errorf("error updating %s: %w (restore from %s also failed: %v)", file.Rel, err, backup, rerr)
		}
		logging.Warn("edit failed, file restored", "path", file.Rel, "error", err)
		return nil, fmt.Errorf("error updating %s: %w", file.Rel, err)
	}

	res := &Result{
		Path:     file.Path,
		Rel:      file.Rel,
		Bytes:    len(newContent),
		Skipped:  skipped,
		Backup:   backup,
		Warnings: warnings,
	}
	for _, h := range hunks {
		res.Added += h.Added()
		res.Removed += h.Removed()
	}

	change := undo.NewFileChange(file.Path, undo.KindDiff, []byte(file.Content), []byte(newContent), false)
	change.Backup = backup
	e.record(change)
	res.Warnings = append(res.Warnings, e.stage(ctx, file.Path, false)...)

	logging.Info("diff applied", "path", file.Rel, "added", res.Added, "removed", res.Removed, "skipped", skipped)
	return res, nil
}

// selectHunks asks the gate which hunks to apply.
func (e *Editor) selectHunks(ctx context.Context, rel string, hunks []Hunk) ([]Hunk, int, error) {
	if e.gate == nil {
		return hunks, 0, nil
	}

	texts := make([]string, len(hunks))
	for i, h := range hunks {
		texts[i] = h.String()
	}
	selected := e.gate.SelectHunks(ctx, rel, texts)

	var kept []Hunk
	for i, ok := range selected {
		if ok {
			kept = append(kept, hunks[i])
		}
	}
	if len(kept) == 0 {
		return nil, 0, fmt.Errorf("%w: diff to %s", ErrDenied, rel)
	}
	return kept, len(hunks) - len(kept), nil
}

// DeleteFile asks for permission, backs the file up and deletes it.
func (e *Editor) DeleteFile(ctx context.Context, name string) (*Result, error) {
	path, err := e.store.Find(name)
	if err != nil {
		return nil, err
	}
	rel := e.store.Sandbox().Rel(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", fileutil.ErrIsDirectory, rel)
	}

	if !e.allowed(ctx, "delete", rel, "") {
		return nil, fmt.Errorf("%w: delete %s", ErrDenied, rel)
	}

	old, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", rel, err)
	}

	warnings := e.prepareBranch(ctx)

	backup, err := e.store.Backup(path)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Delete(path); err != nil {
		return nil, err
	}

	change := undo.NewFileChange(path, undo.KindDelete, old, nil, false)
	change.Backup = backup
	e.record(change)

	res := &Result{
		Path:     path,
		Rel:      rel,
		Bytes:    len(old),
		Backup:   backup,
		Warnings: append(warnings, e.stage(ctx, path, true)...),
	}
	logging.Info("file deleted", "path", rel, "backup", backup)
	return res, nil
}

// BlockResult is the outcome of applying one block.
type BlockResult struct {
	Block  Block
	Result *Result
	Err    error
}

// ApplyBlocks applies action blocks in order. Each block succeeds or fails
// on its own.
func (e *Editor) ApplyBlocks(ctx context.Context, blocks []Block) []BlockResult {
	results := make([]BlockResult, 0, len(blocks))
	for _, b := range blocks {
		if ctx.Err() != nil {
			results = append(results, BlockResult{Block: b, Err: ctx.Err()})
			continue
		}

		var res *Result
		var err error
		switch b.Kind {
		case BlockDiff:
			res, err = e.ApplyDiff(ctx, b.Path, b.Content)
		case BlockFile:
			res, err = e.CreateFile(ctx, b.Path, b.Content)
		case BlockDelete:
			res, err = e.DeleteFile(ctx, b.Path)
		default:
			err = fmt.Errorf("unknown block kind %q", b.Kind)
		}
		results = append(results, BlockResult{Block: b, Result: res, Err: err})
	}
	return results
}

func (e *Editor) allowed(ctx context.Context, tool, rel, preview string) bool {
	if e.gate == nil {
		return true
	}
	return e.gate.Check(ctx, tool, rel, preview)
}

func (e *Editor) record(change *undo.FileChange) {
	if e.journal != nil {
		e.journal.Record(*change)
	}
}

// prepareBranch creates the editing branch once per editor when enabled.
func (e *Editor) prepareBranch(ctx context.Context) []string {
	if !e.opts.GitBranch || e.repo == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.branched {
		return nil
	}
	e.branched = true

	if !e.repo.IsRepo(ctx) {
		return nil
	}
	name := git.BranchName(e.opts.BranchPrefix, time.Now())
	if err := e.repo.CreateBranch(ctx, name); err != nil {
		logging.Warn("failed to create branch", "branch", name, "error", err)
		return []string{fmt.Sprintf("could not create branch %s: %v", name, err)}
	}
	logging.Info("created branch", "branch", name)
	return nil
}

// stage adds path, or stages its removal, when staging is enabled.
func (e *Editor) stage(ctx context.Context, path string, removed bool) []string {
	if !e.opts.GitStage || e.repo == nil || !e.repo.IsRepo(ctx) {
		return nil
	}

	var err error
	if removed {
		err = e.repo.StageRemoval(ctx, path)
	} else {
		err = e.repo.Add(ctx, path)
	}
	if err != nil {
		logging.Warn("failed to stage file", "path", path, "error", err)
		return []string{fmt.Sprintf("could not stage %s: %v", e.store.Sandbox().Rel(path), err)}
	}
	return nil
}
