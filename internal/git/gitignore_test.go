package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIgnore(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(content), 0644))
}

func TestGitIgnoreMatch(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "# comment\n*.log\nbuild/\n/secret.txt\ndocs/gen\n!keep.log\n")
	writeIgnore(t, filepath.Join(root, "sub"), "local.txt\n")

	g := NewGitIgnore(root)
	require.NoError(t, g.Load())

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"a.log", false, true},
		{"deep/dir/a.log", false, true},
		{"keep.log", false, false},
		{"build", true, true},
		{"build/out.bin", false, true},
		{"x/build/out.bin", false, true},
		{"secret.txt", false, true},
		{"nested/secret.txt", false, false},
		{"docs/gen/a.md", false, true},
		{"sub/local.txt", false, true},
		{"local.txt", false, false},
		{".git/config", false, true},
		{"main.go", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Match(tt.path, tt.isDir), "path %s", tt.path)
	}
}

func TestGitIgnoreNotLoaded(t *testing.T) {
	g := NewGitIgnore(t.TempDir())
	assert.False(t, g.Match("a.log", false))

	g.AddPattern("*.log")
	assert.True(t, g.Match("a.log", false))
}

func TestGitIgnoreIsIgnoredUsesFilesystem(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "out/\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "out"), 0755))

	g := NewGitIgnore(root)
	require.NoError(t, g.Load())

	assert.True(t, g.IsIgnored(filepath.Join(root, "out")))
	assert.True(t, g.IsIgnored("out"))
	assert.False(t, g.IsIgnored("main.go"))
}

func TestBranchName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "azul/20240305-140709", BranchName("azul/", now))
}

func TestRepoStaging(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	ctx := context.Background()

	r := NewRepo(dir)
	assert.False(t, r.IsRepo(ctx))

	init := exec.Command("git", "init", "-q")
	init.Dir = dir
	require.NoError(t, init.Run())
	require.True(t, r.IsRepo(ctx))

	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0644))
	require.NoError(t, r.Add(ctx, path))

	out, err := r.run(ctx, "diff", "--cached", "--name-only")
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")

	require.NoError(t, os.Remove(path))
	require.NoError(t, r.StageRemoval(ctx, path))
	out, err = r.run(ctx, "diff", "--cached", "--name-only")
	require.NoError(t, err)
	assert.NotContains(t, out, "a.txt")
}
