package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"azul/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	root := t.TempDir()
	sb, err := security.NewSandbox(root)
	require.NoError(t, err)
	return NewStore(sb, maxSize, filepath.Join(t.TempDir(), "backups"))
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestStoreWriteCreatesParents(t *testing.T) {
	s := newTestStore(t, 0)

	res, err := s.Write("a/b/c.txt", "hello")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 5, res.Bytes)
	assert.Equal(t, "a/b/c.txt", res.Rel)

	data, err := os.ReadFile(filepath.Join(s.Root(), "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	res, err = s.Write("a/b/c.txt", "bye")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "hello", res.OldContent)
}

func TestStoreWriteOutsideRoot(t *testing.T) {
	s := newTestStore(t, 0)
	_, err := s.Write("../escape.txt", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, security.ErrOutsideProject))
}

func TestStoreReadFindsFileRecursively(t *testing.T) {
	s := newTestStore(t, 0)
	writeFile(t, s.Root(), "internal/deep/config.yaml", "key: value\n")
	writeFile(t, s.Root(), ".hidden/config.yaml", "hidden: true\n")

	f, err := s.Read("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "internal/deep/config.yaml", f.Rel)
	assert.Equal(t, "key: value\n", f.Content)

	f, err = s.Read("deep/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "internal/deep/config.yaml", f.Rel)
}

func TestStoreReadErrors(t *testing.T) {
	s := newTestStore(t, 16)
	writeFile(t, s.Root(), "big.txt", strings.Repeat("a", 64))
	writeFile(t, s.Root(), "bin.dat", "ab\x00cd")
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "dir"), 0755))

	_, err := s.Read("missing.txt")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Read("big.txt")
	assert.True(t, errors.Is(err, ErrFileTooLarge))

	_, err = s.Read("bin.dat")
	assert.True(t, errors.Is(err, ErrBinaryFile))

	_, err = s.Read("dir")
	assert.True(t, errors.Is(err, ErrIsDirectory))
}

func TestIsBinary(t *testing.T) {
	assert.False(t, IsBinary(nil))
	assert.False(t, IsBinary([]byte("plain text\nwith lines\tand tabs")))
	assert.True(t, IsBinary([]byte{'a', 0, 'b'}))

	mostlyControl := make([]byte, 100)
	for i := range mostlyControl {
		if i < 40 {
			mostlyControl[i] = 'x'
		} else {
			mostlyControl[i] = 0x01
		}
	}
	assert.True(t, IsBinary(mostlyControl))
}

func TestStoreBackupAndRestore(t *testing.T) {
	s := newTestStore(t, 0)
	p := writeFile(t, s.Root(), "src/app.go", "original")

	backup, err := s.Backup(p)
	require.NoError(t, err)
	assert.FileExists(t, backup)

	require.NoError(t, os.WriteFile(p, []byte("changed"), 0644))
	require.NoError(t, s.Restore(backup, p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t, 0)
	writeFile(t, s.Root(), "gone.txt", "bye")

	path, err := s.Delete("gone.txt")
	require.NoError(t, err)
	assert.NoFileExists(t, path)
	assert.False(t, s.Exists("gone.txt"))
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.json")

	require.NoError(t, AtomicWriteString(p, `{"a":1}`, 0600))
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAtomicWriteKeepsExistingMode(t *testing.T) {
	p := filepath.Join(t.TempDir(), "run.sh")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0755))

	require.NoError(t, AtomicWriteString(p, "#!/bin/sh\necho hi\n", 0))
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	fresh := filepath.Join(filepath.Dir(p), "new.txt")
	require.NoError(t, AtomicWriteString(fresh, "x", 0))
	info, err = os.Stat(fresh)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, IsTempFile("/p/.azul-123.tmp"))
	assert.False(t, IsTempFile("/p/azul.tmp"))
	assert.False(t, IsTempFile("/p/.azul-notes.md"))
}
