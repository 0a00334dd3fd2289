package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// commandTimeout bounds every git invocation.
const commandTimeout = 10 * time.Second

// Repo runs git commands in a working directory.
type Repo struct {
	dir string
}

// NewRepo creates a Repo rooted at dir.
func NewRepo(dir string) *Repo {
	return &Repo{dir: dir}
}

// Dir returns the working directory.
func (r *Repo) Dir() string {
	return r.dir
}

// IsRepo reports whether dir is inside a git work tree and git is installed.
func (r *Repo) IsRepo(ctx context.Context) bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// CurrentBranch returns the checked out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateBranch creates and checks out a new branch.
func (r *Repo) CreateBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, "checkout", "-b", name)
	return err
}

// Add stages the given paths.
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := r.run(ctx, append([]string{"add", "--"}, r.relPaths(paths)...)...)
	return err
}

// StageRemoval stages the deletion of paths that are already gone from disk.
func (r *Repo) StageRemoval(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"rm", "--cached", "--quiet", "--ignore-unmatch", "--"}, r.relPaths(paths)...)
	_, err := r.run(ctx, args...)
	return err
}

// BranchName returns a timestamped branch name with prefix.
func BranchName(prefix string, now time.Time) string {
	return prefix + now.Format("20060102-150405")
}

func (r *Repo) relPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			if rel, err := filepath.Rel(r.dir, p); err == nil {
				p = rel
			}
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}
