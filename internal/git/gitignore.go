package git

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"azul/internal/logging"
)

// pattern represents a single gitignore pattern.
type pattern struct {
	pattern  string
	negation bool   // starts with !
	dirOnly  bool   // ends with /
	anchored bool   // contains / other than a trailing one
	baseRel  string // directory of the .gitignore, relative to root ("" for root)
}

// GitIgnore parses and matches gitignore patterns for one project root.
type GitIgnore struct {
	root     string
	patterns []pattern
	loaded   bool
	mu       sync.RWMutex
}

// NewGitIgnore creates a matcher for root. Call Load before matching.
func NewGitIgnore(root string) *GitIgnore {
	return &GitIgnore{root: root}
}

// Load parses the root .gitignore and every nested one. Missing files are fine.
func (g *GitIgnore) Load() error {
	var patterns []pattern

	err := filepath.WalkDir(g.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || d.Name() != ".gitignore" {
			return nil
		}

		baseRel, _ := filepath.Rel(g.root, filepath.Dir(path))
		baseRel = filepath.ToSlash(baseRel)
		if baseRel == "." {
			baseRel = ""
		}
		loaded, err := loadFile(path, baseRel)
		if err != nil {
			logging.Debug("failed to read gitignore", "path", path, "error", err)
			return nil
		}
		patterns = append(patterns, loaded...)
		return nil
	})

	// .git itself is always ignored
	patterns = append(patterns, pattern{pattern: ".git", dirOnly: true})

	g.mu.Lock()
	g.patterns = patterns
	g.loaded = true
	g.mu.Unlock()

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadFile parses a single .gitignore file.
func loadFile(path, baseRel string) ([]pattern, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []pattern
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if p := parseLine(scanner.Text(), baseRel); p != nil {
			patterns = append(patterns, *p)
		}
	}
	return patterns, scanner.Err()
}

// parseLine parses a single gitignore line.
func parseLine(line, baseRel string) *pattern {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &pattern{baseRel: baseRel}

	if strings.HasPrefix(line, "!") {
		p.negation = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		p.anchored = true
	}
	line = strings.TrimPrefix(line, "/")

	if line == "" {
		return nil
	}
	p.pattern = line
	return p
}

// AddPattern adds a pattern relative to the root.
func (g *GitIgnore) AddPattern(pat string) {
	p := parseLine(pat, "")
	if p == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patterns = append(g.patterns, *p)
	g.loaded = true
}

// IsIgnored checks an absolute or root-relative path, consulting the
// filesystem to tell directories from files.
func (g *GitIgnore) IsIgnored(path string) bool {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(g.root, path)
	}
	info, err := os.Stat(abs)
	isDir := err == nil && info.IsDir()

	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return false
	}
	return g.Match(filepath.ToSlash(rel), isDir)
}

// Match checks a slash-separated root-relative path. The last matching
// pattern wins.
func (g *GitIgnore) Match(rel string, isDir bool) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.loaded {
		return false
	}

	ignored := false
	for _, p := range g.patterns {
		if matchPattern(p, rel, isDir) {
			ignored = !p.negation
		}
	}
	return ignored
}

// matchPattern checks if a path matches a gitignore pattern. Patterns also
// match everything below a matching directory.
func matchPattern(p pattern, rel string, isDir bool) bool {
	if p.baseRel != "" {
		if !strings.HasPrefix(rel, p.baseRel+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, p.baseRel+"/")
	}

	if p.anchored {
		if globMatch(p.pattern+"/**", rel) {
			return true
		}
		return (!p.dirOnly || isDir) && globMatch(p.pattern, rel)
	}

	if globMatch("**/"+p.pattern+"/**", rel) {
		return true
	}
	if p.dirOnly && !isDir {
		return false
	}
	return globMatch("**/"+p.pattern, rel)
}

func globMatch(pattern, path string) bool {
	matched, err := doublestar.Match(pattern, path)
	return err == nil && matched
}
