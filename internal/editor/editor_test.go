package editor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azul/internal/config"
	"azul/internal/fileutil"
	"azul/internal/permission"
	"azul/internal/security"
	"azul/internal/undo"
)

type fixture struct {
	root    string
	editor  *Editor
	journal *undo.Manager
	asked   []*permission.Request
}

// newFixture builds an editor whose prompt answers with decisions in order
// and denies once they run out.
func newFixture(t *testing.T, cfg config.PermissionConfig, decisions ...permission.Decision) *fixture {
	t.Helper()
	root := t.TempDir()
	sb, err := security.NewSandbox(root)
	require.NoError(t, err)

	f := &fixture{root: sb.Root(), journal: undo.NewManager(0)}
	gate := permission.NewGate(cfg, func(_ context.Context, req *permission.Request) (permission.Decision, error) {
		f.asked = append(f.asked, req)
		if len(decisions) == 0 {
			return permission.DecisionDeny, nil
		}
		d := decisions[0]
		decisions = decisions[1:]
		return d, nil
	})
	store := fileutil.NewStore(sb, 0, filepath.Join(t.TempDir(), "backups"))
	f.editor = New(store, gate, nil, f.journal, Options{})
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, rel))
	require.NoError(t, err)
	return string(data)
}

const original = "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"

const patch = "```diff\n--- a/main.go\n+++ b/main.go\n@@ -3,3 +3,4 @@\n func main() {\n-\tprintln(\"hi\")\n+\tprintln(\"hello\")\n+\tprintln(\"world\")\n }\n```"

func TestApplyDiff(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{}, permission.DecisionAllow)
	f.write(t, "main.go", original)

	res, err := f.editor.ApplyDiff(context.Background(), "main.go", patch)
	require.NoError(t, err)

	assert.Equal(t, "package main\n\nfunc main() {\n\tprintln(\"hello\")\n\tprintln(\"world\")\n}\n", f.read(t, "main.go"))
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, "main.go", res.Rel)
	assert.FileExists(t, res.Backup)
	require.Len(t, f.asked, 1)
	assert.Contains(t, f.asked[0].Preview, "+\tprintln(\"world\")")
	assert.Equal(t, 1, f.journal.Count())
}

func TestApplyDiffChangesLineCountByAddedMinusRemoved(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{AutoApprove: true})
	f.write(t, "main.go", original)
	before := len(splitOrEmpty(original))

	res, err := f.editor.ApplyDiff(context.Background(), "main.go", patch)
	require.NoError(t, err)
	after := len(splitOrEmpty(f.read(t, "main.go")))
	assert.Equal(t, before+res.Added-res.Removed, after)
}

func splitOrEmpty(s string) []string {
	lines, _ := splitLines(s)
	return lines
}

func TestApplyDiffRestoresOnWriteFailure(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{AutoApprove: true})
	path := f.write(t, "main.go", original)

	f.editor.write = func(p, _ string) error {
		// leave a half-written file behind
		require.NoError(t, os.WriteFile(p, []byte("package ma"), 0644))
		return errors.New("disk full")
	}

	_, err := f.editor.ApplyDiff(context.Background(), "main.go", patch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	assert.Equal(t, 0, f.journal.Count())
}

func TestApplyDiffContextMismatchLeavesFile(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{AutoApprove: true})
	f.write(t, "main.go", original)

	bad := "@@ -3,2 +3,2 @@\n func other() {\n-\tprintln(\"hi\")\n+\tprintln(\"x\")\n"
	_, err := f.editor.ApplyDiff(context.Background(), "main.go", bad)

	var mismatch *HunkMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, original, f.read(t, "main.go"))
}

func TestApplyDiffDenied(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{})
	f.write(t, "main.go", original)

	_, err := f.editor.ApplyDiff(context.Background(), "main.go", patch)
	require.ErrorIs(t, err, ErrDenied)
	assert.Equal(t, original, f.read(t, "main.go"))
}

func TestApplyDiffCherryPick(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{CherryPick: true}, permission.DecisionAllow, permission.DecisionDeny)
	f.write(t, "a.txt", "1\n2\n3\n4\n5\n6\n")

	diff := "@@ -1 +1 @@\n-1\n+one\n@@ -6 +6 @@\n-6\n+six\n"
	res, err := f.editor.ApplyDiff(context.Background(), "a.txt", diff)
	require.NoError(t, err)

	assert.Equal(t, "one\n2\n3\n4\n5\n6\n", f.read(t, "a.txt"))
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, f.asked, 2)
}

func TestApplyDiffKeepsCRLF(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{AutoApprove: true})
	f.write(t, "main.go", "package main\r\n\r\nfunc main() {\r\n\tprintln(\"hi\")\r\n}\r\n")

	_, err := f.editor.ApplyDiff(context.Background(), "main.go", patch)
	require.NoError(t, err)
	assert.Equal(t, "package main\r\n\r\nfunc main() {\r\n\tprintln(\"hello\")\r\n\tprintln(\"world\")\r\n}\r\n", f.read(t, "main.go"))
}

func TestApplyDiffMissingFile(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{AutoApprove: true})
	_, err := f.editor.ApplyDiff(context.Background(), "nope.go", patch)
	assert.ErrorIs(t, err, fileutil.ErrNotFound)
}

func TestApplyDiffOutsideProject(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{AutoApprove: true})
	_, err := f.editor.ApplyDiff(context.Background(), "../../etc/passwd", patch)
	assert.ErrorIs(t, err, security.ErrOutsideProject)
}

func TestWriteFileNeverAsks(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{})

	res, err := f.editor.WriteFile(context.Background(), "dir/hello.txt", "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Bytes)
	assert.True(t, res.Created)
	assert.Equal(t, "hi", f.read(t, "dir/hello.txt"))
	assert.Empty(t, f.asked)

	_, err = f.journal.Undo()
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(f.root, "dir/hello.txt"))
}

func TestCreateFile(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{}, permission.DecisionAllow)

	_, err := f.editor.CreateFile(context.Background(), "new.txt", "x\n")
	require.NoError(t, err)
	assert.Equal(t, "x\n", f.read(t, "new.txt"))
	require.Len(t, f.asked, 1)
	assert.Contains(t, f.asked[0].Preview, "+x")

	// script exhausted: the next request is denied
	_, err = f.editor.CreateFile(context.Background(), "other.txt", "y")
	require.ErrorIs(t, err, ErrDenied)
	assert.NoFileExists(t, filepath.Join(f.root, "other.txt"))
}

func TestDeleteFile(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{}, permission.DecisionAllow)
	path := f.write(t, "src/old.go", "package old\n")

	res, err := f.editor.DeleteFile(context.Background(), "old.go")
	require.NoError(t, err)
	assert.NoFileExists(t, path)
	assert.Equal(t, "src/old.go", res.Rel)

	backup, err := os.ReadFile(res.Backup)
	require.NoError(t, err)
	assert.Equal(t, "package old\n", string(backup))

	_, err = f.journal.Undo()
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestDeleteFileDenied(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{})
	path := f.write(t, "keep.go", "package keep\n")

	_, err := f.editor.DeleteFile(context.Background(), "keep.go")
	require.ErrorIs(t, err, ErrDenied)
	assert.FileExists(t, path)
}

func TestApplyBlocks(t *testing.T) {
	f := newFixture(t, config.PermissionConfig{AutoApprove: true})
	f.write(t, "main.go", original)
	f.write(t, "trash.txt", "bye")

	response := "Applying the changes.\n" + patch + "\n```file:docs/readme.md\n# Title\n```\n```delete:trash.txt```"
	blocks, prose := ParseBlocks(response)
	require.Len(t, blocks, 3)
	assert.Equal(t, "Applying the changes.", prose)

	results := f.editor.ApplyBlocks(context.Background(), blocks)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err, "block %s %s", r.Block.Kind, r.Block.Path)
	}
	assert.Contains(t, f.read(t, "main.go"), "world")
	assert.Equal(t, "# Title\n", f.read(t, "docs/readme.md"))
	assert.NoFileExists(t, filepath.Join(f.root, "trash.txt"))
}
