package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideProject is returned for any path that resolves outside the project root.
var ErrOutsideProject = errors.New("outside project directory")

// Sandbox confines file access to a single project root.
// Relative paths are resolved against the root, not the process working directory.
type Sandbox struct {
	root string
}

// NewSandbox creates a sandbox rooted at root. The root must be an existing directory.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("cannot access project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root is not a directory: %s", root)
	}

	return &Sandbox{root: resolved}, nil
}

// Root returns the resolved absolute project root.
func (s *Sandbox) Root() string {
	return s.root
}

// SafePath resolves p against the project root and returns the absolute path.
// Paths containing ".." are accepted as long as they resolve inside the root.
// Symlinks are resolved so a link pointing outside the root is rejected too.
func (s *Sandbox) SafePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\x00") {
		return "", fmt.Errorf("null byte in path")
	}

	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path '%s': %w", p, err)
	}

	if !isWithin(resolved, s.root) {
		return "", fmt.Errorf("path '%s' is %w", p, ErrOutsideProject)
	}
	return resolved, nil
}

// IsSafe reports whether p resolves inside the project root.
func (s *Sandbox) IsSafe(p string) bool {
	_, err := s.SafePath(p)
	return err == nil
}

// Rel returns abs relative to the project root using forward slashes.
// Paths outside the root are returned unchanged.
func (s *Sandbox) Rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return filepath.ToSlash(rel)
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
// and re-appends the components that do not exist yet.
func resolveExisting(path string) (string, error) {
	var missing []string
	current := path

	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

// isWithin checks if target is base or a descendant of base.
func isWithin(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
