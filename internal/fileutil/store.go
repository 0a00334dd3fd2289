package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"azul/internal/logging"
	"azul/internal/security"
)

// DefaultMaxFileSize is the read size cap used when none is configured.
const DefaultMaxFileSize = 10 * 1024 * 1024

// binarySniffSize is how many leading bytes are inspected for binary detection.
const binarySniffSize = 8192

var (
	ErrNotFound     = errors.New("file not found")
	ErrIsDirectory  = errors.New("path is a directory")
	ErrBinaryFile   = errors.New("binary files are not supported")
	ErrFileTooLarge = errors.New("file is too large")
)

// File is the result of a successful read.
type File struct {
	Path    string // absolute path
	Rel     string // project-relative path
	Content string
}

// WriteResult describes a completed write.
type WriteResult struct {
	Path       string
	Rel        string
	Bytes      int
	Created    bool
	OldContent string
}

// Store performs sandboxed reads, writes and backups inside one project root.
type Store struct {
	sandbox   *security.Sandbox
	maxSize   int64
	backupDir string
}

// NewStore creates a file store. A non-positive maxSize means DefaultMaxFileSize.
// Backups are written under backupDir; an empty backupDir keeps them next to the file.
func NewStore(sb *security.Sandbox, maxSize int64, backupDir string) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Store{
		sandbox:   sb,
		maxSize:   maxSize,
		backupDir: backupDir,
	}
}

// Sandbox returns the sandbox the store is confined to.
func (s *Store) Sandbox() *security.Sandbox {
	return s.sandbox
}

// Root returns the project root.
func (s *Store) Root() string {
	return s.sandbox.Root()
}

// Find resolves name to an existing file. The literal path is tried first,
// then the project is searched recursively for a file with the same base name
// (or the same trailing path when name contains directories). Hidden
// directories are not searched.
func (s *Store) Find(name string) (string, error) {
	direct, err := s.sandbox.SafePath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	suffix := filepath.ToSlash(filepath.Clean(name))
	suffix = strings.TrimPrefix(suffix, "./")
	base := filepath.Base(suffix)

	var found string
	walkErr := filepath.WalkDir(s.sandbox.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != s.sandbox.Root() && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != base {
			return nil
		}
		rel := filepath.ToSlash(s.sandbox.Rel(path))
		if rel == suffix || strings.HasSuffix(rel, "/"+suffix) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		logging.Debug("file search failed", "name", name, "error", walkErr)
	}

	if found == "" {
		return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, name, s.sandbox.Root())
	}
	return found, nil
}

// Exists reports whether name resolves to an existing file.
func (s *Store) Exists(name string) bool {
	_, err := s.Find(name)
	return err == nil
}

// Read reads a text file, rejecting directories, binary files and files over the size cap.
func (s *Store) Read(name string) (*File, error) {
	path, err := s.Find(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	if info.Size() > s.maxSize {
		return nil, fmt.Errorf("%w (>%dMB): %s", ErrFileTooLarge, s.maxSize/(1024*1024), name)
	}

	binary, err := IsBinaryFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if binary {
		return nil, fmt.Errorf("%w: %s", ErrBinaryFile, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return &File{
		Path:    path,
		Rel:     s.sandbox.Rel(path),
		Content: string(data),
	}, nil
}

// Write creates or overwrites name with content, creating parent directories as needed.
func (s *Store) Write(name, content string) (*WriteResult, error) {
	path, err := s.sandbox.SafePath(name)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &WriteResult{
		Path:    path,
		Rel:     s.sandbox.Rel(path),
		Bytes:   len(content),
		Created: true,
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
		result.Created = false
		if old, err := os.ReadFile(path); err == nil {
			result.OldContent = string(old)
		}
	}

	if err := AtomicWriteString(path, content, perm); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return result, nil
}

// Delete removes a regular file.
func (s *Store) Delete(name string) (string, error) {
	path, err := s.Find(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("error deleting file: %w", err)
	}
	return path, nil
}

// Backup copies the file at path to the backup location and returns the backup path.
func (s *Store) Backup(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("backup failed: %w", err)
	}
	defer src.Close()

	stamp := time.Now().Format("20060102-150405.000000000")
	var dst string
	if s.backupDir != "" {
		dst = filepath.Join(s.backupDir, filepath.FromSlash(s.sandbox.Rel(path))+"."+stamp+".bak")
	} else {
		dst = path + "." + stamp + ".bak"
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("backup failed: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("backup failed: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("backup failed: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("backup failed: %w", err)
	}

	logging.Debug("file backed up", "path", path, "backup", dst)
	return dst, nil
}

// Restore overwrites path with the content of backupPath.
func (s *Store) Restore(backupPath, path string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if err := AtomicWrite(path, data, perm); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	return nil
}

// IsBinary reports whether data looks binary: a NUL byte, or fewer than 70%
// printable characters (tabs and newlines count as printable) in the sniffed prefix.
func IsBinary(data []byte) bool {
	if len(data) > binarySniffSize {
		data = data[:binarySniffSize]
	}
	if len(data) == 0 {
		return false
	}

	text := 0
	for _, b := range data {
		if b == 0 {
			return true
		}
		if (b >= 32 && b <= 126) || b == '\t' || b == '\n' || b == '\r' {
			text++
		}
	}
	return float64(text)/float64(len(data)) < 0.7
}

// IsBinaryFile sniffs the first bytes of the file at path.
func IsBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, binarySniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return IsBinary(buf[:n]), nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
