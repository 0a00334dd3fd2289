package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultTreeDepth is how many directory levels the tree shows.
const DefaultTreeDepth = 3

// ignoredNames are build, cache and VCS artifacts left out of the tree.
var ignoredNames = map[string]bool{
	"__pycache__":   true,
	".git":          true,
	".DS_Store":     true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	"ENV":           true,
	".eggs":         true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".tox":          true,
	"dist":          true,
	"build":         true,
	"htmlcov":       true,
	".coverage":     true,
	"vendor":        true,
	"target":        true,
}

var ignoredGlobs = []string{"*.pyc", "*.pyo", "*.pyd", "*.egg-info"}

type treeChars struct {
	Branch     string
	LastBranch string
	Vertical   string
	Space      string
}

var unicodeChars = treeChars{
	Branch:     "├── ",
	LastBranch: "└── ",
	Vertical:   "│   ",
	Space:      "    ",
}

// IgnoredInTree reports whether an entry name is left out of the tree.
func IgnoredInTree(name string) bool {
	if strings.HasPrefix(name, ".") || ignoredNames[name] {
		return true
	}
	for _, g := range ignoredGlobs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

// GenerateTree renders the directory structure under root down to depth
// levels, directories first, with a "Project Structure (<root>):" header.
func GenerateTree(ctx context.Context, root string, depth int) (string, error) {
	if depth <= 0 {
		depth = DefaultTreeDepth
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Project Structure (%s):\n", root)
	if err := buildTree(ctx, &builder, root, "", depth, unicodeChars); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func buildTree(ctx context.Context, builder *strings.Builder, path, prefix string, depth int, chars treeChars) error {
	if depth <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		// unreadable directories are skipped
		return nil
	}

	var filtered []os.DirEntry
	for _, entry := range entries {
		if !IgnoredInTree(entry.Name()) {
			filtered = append(filtered, entry)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		di := filtered[i].IsDir()
		dj := filtered[j].IsDir()
		if di != dj {
			return di
		}
		return strings.ToLower(filtered[i].Name()) < strings.ToLower(filtered[j].Name())
	})

	for i, entry := range filtered {
		connector := chars.Branch
		childPrefix := prefix + chars.Vertical
		if i == len(filtered)-1 {
			connector = chars.LastBranch
			childPrefix = prefix + chars.Space
		}

		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		builder.WriteString(prefix + connector + name + "\n")

		if entry.IsDir() {
			if err := buildTree(ctx, builder, filepath.Join(path, entry.Name()), childPrefix, depth-1, chars); err != nil {
				return err
			}
		}
	}
	return nil
}

// TreeTool displays the project structure.
type TreeTool struct {
	root  string
	depth int
}

// NewTreeTool creates a TreeTool for the project at root.
func NewTreeTool(root string, depth int) *TreeTool {
	return &TreeTool{root: root, depth: depth}
}

func (t *TreeTool) Name() string {
	return "tree"
}

func (t *TreeTool) Description() string {
	return "Shows the project directory structure (hidden and build directories are omitted)."
}

func (t *TreeTool) Usage() string {
	return "tree()"
}

func (t *TreeTool) Validate(args map[string]any) error {
	return nil
}

func (t *TreeTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	tree, err := GenerateTree(ctx, t.root, t.depth)
	if err != nil {
		return NewErrorResultf("error building tree: %s", err), nil
	}
	return NewSuccessResult(strings.TrimRight(tree, "\n")), nil
}
