package undo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"azul/internal/fileutil"
	"azul/internal/logging"
)

// DefaultMaxChanges bounds the journal when no size is given.
const DefaultMaxChanges = 100

// ErrNothingToUndo is returned when the journal is empty.
var ErrNothingToUndo = errors.New("nothing to undo")

// Manager is the journal of file mutations behind /undo. The oldest entry
// is dropped once the journal is full.
type Manager struct {
	journal []FileChange
	max     int
	mu      sync.Mutex
}

// NewManager creates an undo Manager keeping up to maxChanges entries.
func NewManager(maxChanges int) *Manager {
	if maxChanges <= 0 {
		maxChanges = DefaultMaxChanges
	}
	return &Manager{max: maxChanges}
}

// Record appends a change to the journal.
func (m *Manager) Record(change FileChange) {
	m.mu.Lock()
	if len(m.journal) == m.max {
		m.journal = append(m.journal[:0], m.journal[1:]...)
	}
	m.journal = append(m.journal, change)
	m.mu.Unlock()

	logging.Debug("change recorded", "id", change.ID, "kind", change.Kind, "path", change.FilePath)
}

// Undo reverts the most recent change and returns it. A change that fails
// to revert stays in the journal.
func (m *Manager) Undo() (*FileChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.journal) == 0 {
		return nil, ErrNothingToUndo
	}
	change := m.journal[len(m.journal)-1]

	if err := revert(&change); err != nil {
		return nil, fmt.Errorf("failed to undo %s: %w", change.FilePath, err)
	}
	m.journal = m.journal[:len(m.journal)-1]
	logging.Info("change undone", "id", change.ID, "path", change.FilePath)
	return &change, nil
}

// CanUndo reports whether the journal holds a change.
func (m *Manager) CanUndo() bool {
	return m.Count() > 0
}

// ListRecent returns up to n changes, newest first.
func (m *Manager) ListRecent(n int) []FileChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	n = min(n, len(m.journal))
	if n <= 0 {
		return nil
	}
	out := make([]FileChange, 0, n)
	for i := len(m.journal) - 1; len(out) < n; i-- {
		out = append(out, m.journal[i])
	}
	return out
}

// Count returns the number of undoable changes.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal)
}

// Clear drops the journal.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.journal = nil
	m.mu.Unlock()
}

// revert restores the file state from before change.
func revert(change *FileChange) error {
	if change.WasNew {
		if err := os.Remove(change.FilePath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	old := change.OldContent
	if old == nil && change.Backup != "" {
		data, err := os.ReadFile(change.Backup)
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		old = data
	}
	if err := os.MkdirAll(filepath.Dir(change.FilePath), 0755); err != nil {
		return err
	}
	return fileutil.AtomicWrite(change.FilePath, old, 0644)
}
