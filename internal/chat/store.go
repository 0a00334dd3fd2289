package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"azul/internal/fileutil"
	"azul/internal/logging"
)

// SessionID derives a stable identifier from the absolute project path.
func SessionID(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return hex.EncodeToString(sum[:])[:16]
}

// sessionFile is the on-disk layout.
type sessionFile struct {
	SessionID   string    `json:"session_id"`
	ProjectRoot string    `json:"project_root"`
	History     []Message `json:"history"`
}

// Store persists one session per project as a JSON file.
type Store struct {
	dir    string
	window int
}

// NewStore creates a store writing to dir.
func NewStore(dir string, window int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{dir: dir, window: window}
}

// Dir returns the directory session files are written to.
func (st *Store) Dir() string {
	return st.dir
}

// Path returns the session file for the project at root.
func (st *Store) Path(root string) string {
	return filepath.Join(st.dir, SessionID(root)+".json")
}

// Load returns the persisted session for root, truncated to the window.
// A missing file yields a new empty session; a corrupt one is logged and
// replaced by an empty session.
func (st *Store) Load(root string) (*Session, error) {
	s := NewSession(root, st.window)

	data, err := os.ReadFile(st.Path(root))
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read session: %w", err)
	}

	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		logging.Warn("ignoring corrupt session file", "path", st.Path(root), "error", err)
		return s, nil
	}

	for _, m := range file.History {
		if m.Role == "" {
			continue
		}
		s.history = append(s.history, m)
	}
	s.trimLocked()
	return s, nil
}

// Save writes the session atomically.
func (st *Store) Save(s *Session) error {
	if err := os.MkdirAll(st.dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	file := sessionFile{
		SessionID:   s.ID,
		ProjectRoot: s.ProjectRoot,
		History:     s.Messages(0),
	}
	if file.History == nil {
		file.History = []Message{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	if err := fileutil.AtomicWrite(st.Path(s.ProjectRoot), data, 0644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	logging.Debug("session saved", "id", s.ID, "messages", len(file.History))
	return nil
}

// Delete removes the persisted session for root.
func (st *Store) Delete(root string) error {
	err := os.Remove(st.Path(root))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
