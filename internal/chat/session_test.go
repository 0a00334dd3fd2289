package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionWindow(t *testing.T) {
	s := NewSession("/p", 3)
	for i := 1; i <= 5; i++ {
		s.AddMessage(RoleUser, fmt.Sprintf("m%d", i))
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"m3", "m4", "m5"}, s.Contents())

	last := s.Messages(2)
	require.Len(t, last, 2)
	assert.Equal(t, "m4", last[0].Content)

	// returned slices are copies
	last[0].Content = "changed"
	assert.Equal(t, "m4", s.Messages(2)[0].Content)

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestLastAssistant(t *testing.T) {
	s := NewSession("/p", 0)
	_, ok := s.LastAssistant()
	assert.False(t, ok)

	s.AddMessage(RoleUser, "q")
	s.AddMessage(RoleAssistant, "first")
	s.AddMessage(RoleTool, "Tool Output:\nx")
	s.AddMessage(RoleAssistant, "second")
	s.AddMessage(RoleUser, "again")

	msg, ok := s.LastAssistant()
	assert.True(t, ok)
	assert.Equal(t, "second", msg)
}

func TestSessionID(t *testing.T) {
	a := SessionID("/home/me/project")
	assert.Len(t, a, 16)
	assert.Equal(t, a, SessionID("/home/me/project/"))
	assert.NotEqual(t, a, SessionID("/home/me/other"))
}

func TestStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	root := t.TempDir()
	store := NewStore(dir, 20)

	s, err := store.Load(root)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	s.AddMessage(RoleTool, "Tool Output:\n.")
	s.AddMessage(RoleUser, "list files")
	s.AddMessage(RoleAssistant, "done <task_complete>")
	require.NoError(t, store.Save(s))

	data, err := os.ReadFile(store.Path(root))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, s.ID, raw["session_id"])
	assert.Equal(t, root, raw["project_root"])
	assert.Len(t, raw["history"], 3)
	assert.Len(t, raw, 3)

	loaded, err := store.Load(root)
	require.NoError(t, err)
	assert.Equal(t, s.Messages(0), loaded.Messages(0))

	require.NoError(t, store.Delete(root))
	require.NoError(t, store.Delete(root))
	loaded, err = store.Load(root)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestStoreTruncatesOnLoad(t *testing.T) {
	dir := t.TempDir()
	root := "/work/project"

	big := NewStore(dir, 50)
	s := NewSession(root, 50)
	for i := 0; i < 30; i++ {
		s.AddMessage(RoleUser, fmt.Sprintf("m%d", i))
	}
	require.NoError(t, big.Save(s))

	loaded, err := NewStore(dir, 20).Load(root)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.Len())
	assert.Equal(t, "m10", loaded.Messages(0)[0].Content)
}

func TestStoreIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 20)
	require.NoError(t, os.WriteFile(store.Path("/x"), []byte("{not json"), 0644))

	s, err := store.Load("/x")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}
