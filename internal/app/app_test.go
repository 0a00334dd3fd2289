package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azul/internal/chat"
	"azul/internal/client"
	"azul/internal/config"
)

// scriptedClient streams canned responses; the last one repeats.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	healthErr error
}

func (c *scriptedClient) Stream(ctx context.Context, _ []client.Message, _ client.Options) (*client.StreamingResponse, error) {
	c.mu.Lock()
	text := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	c.mu.Unlock()

	chunks := make(chan client.ResponseChunk)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(chunks)
		select {
		case chunks <- client.ResponseChunk{Text: text}:
		case <-ctx.Done():
		}
	}()
	return &client.StreamingResponse{Chunks: chunks, Done: done}, nil
}

func (c *scriptedClient) Complete(context.Context, []client.Message, client.Options) (string, error) {
	return "", errors.New("not scripted")
}
func (c *scriptedClient) GetModel() string                             { return "scripted" }
func (c *scriptedClient) SetModel(string)                              {}
func (c *scriptedClient) ListModels(context.Context) ([]string, error) { return []string{"scripted"}, nil }
func (c *scriptedClient) Healthcheck(context.Context) error            { return c.healthErr }
func (c *scriptedClient) Close() error                                 { return nil }

type fixture struct {
	root     string
	cfg      *config.Config
	client   *scriptedClient
	out      *bytes.Buffer
	sessions string
}

func newFixture(t *testing.T, responses ...string) *fixture {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.RAG.Enabled = false
	cfg.UI.Color = false
	cfg.Session.Dir = t.TempDir()
	if len(responses) == 0 {
		responses = []string{"Nothing to do. <task_complete>"}
	}

	return &fixture{
		root:     root,
		cfg:      cfg,
		client:   &scriptedClient{responses: responses},
		out:      &bytes.Buffer{},
		sessions: cfg.Session.Dir,
	}
}

func (f *fixture) newApp(t *testing.T, input string) *App {
	t.Helper()
	a, err := New(f.cfg, f.root, Options{
		In:      strings.NewReader(input),
		Out:     f.out,
		Version: "test",
		Client:  f.client,
	})
	require.NoError(t, err)
	return a
}

func TestRunTaskRendersProgressAndPersistsSession(t *testing.T) {
	f := newFixture(t,
		"<tool_code>tree()</tool_code>",
		"There is one file, main.go. <task_complete>",
	)
	a := f.newApp(t, "list the files\n")
	require.NoError(t, a.Run())

	out := f.out.String()
	assert.Contains(t, out, "azul test · scripted (ollama)")
	assert.Contains(t, out, "tree")
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "Done (2 iterations, 1 tool calls)")

	session, err := chat.NewStore(f.sessions, 20).Load(f.root)
	require.NoError(t, err)
	assert.Greater(t, session.Len(), 0)
}

func TestPermissionPromptSharesInput(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		exists bool
	}{
		{"approved", "y", false},
		{"declined", "n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t,
				`<tool_code>delete(file_path="old.txt")</tool_code>`,
				"Handled. <task_complete>",
			)
			target := filepath.Join(f.root, "old.txt")
			require.NoError(t, os.WriteFile(target, []byte("bye\n"), 0644))

			a := f.newApp(t, "remove old.txt\n"+tt.answer+"\n/exit\n")
			require.NoError(t, a.Run())

			_, err := os.Stat(target)
			assert.Equal(t, tt.exists, err == nil)
			assert.Contains(t, f.out.String(), "[y/N/a]")
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t, "/bogus arg\n")
	require.NoError(t, a.Run())
	assert.Contains(t, f.out.String(), "Unknown command: /bogus")
}

func TestExitCommandStopsReading(t *testing.T) {
	f := newFixture(t, "should never run <task_complete>")
	a := f.newApp(t, "/exit\nlist files\n")
	require.NoError(t, a.Run())
	assert.NotContains(t, f.out.String(), "should never run")
}

func TestHealthcheckFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.client.healthErr = errors.New("connection refused")
	a := f.newApp(t, "")
	require.NoError(t, a.Run())
	assert.Contains(t, f.out.String(), "Model backend unavailable: connection refused")
}

func TestChangeDirSwitchesProject(t *testing.T) {
	f := newFixture(t)
	sub := filepath.Join(f.root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "lib.go"), []byte("package sub\n"), 0644))

	a := f.newApp(t, "")
	defer a.Close()
	before := a.GetSession()

	require.NoError(t, a.ChangeDir(context.Background(), "sub"))
	want, err := filepath.EvalSymlinks(sub)
	require.NoError(t, err)
	assert.Equal(t, want, a.GetWorkDir())
	assert.NotSame(t, before, a.GetSession())

	file, err := a.GetFileStore().Read("lib.go")
	require.NoError(t, err)
	assert.Equal(t, "package sub\n", file.Content)

	assert.Error(t, a.ChangeDir(context.Background(), "missing"))
	assert.Error(t, a.ChangeDir(context.Background(), "lib.go"))
	assert.Equal(t, want, a.GetWorkDir())
}

func TestResetConversation(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t, "")
	defer a.Close()

	a.GetSession().AddMessage(chat.RoleUser, "hello")
	require.NoError(t, a.ResetConversation())
	assert.Equal(t, 0, a.GetSession().Len())

	session, err := chat.NewStore(f.sessions, 20).Load(a.GetWorkDir())
	require.NoError(t, err)
	assert.Equal(t, 0, session.Len())
}

func TestRetrievalDisabledWithoutEmbedder(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t, "")
	defer a.Close()
	assert.Nil(t, a.GetIndexer())
	assert.Nil(t, a.GetWatcher())
}

func TestIsUnknownCommand(t *testing.T) {
	assert.True(t, isUnknownCommand("/bogus"))
	assert.True(t, isUnknownCommand("/bogus some args"))
	assert.False(t, isUnknownCommand("/home/user/project is broken, fix it"))
	assert.False(t, isUnknownCommand("fix the build"))
}

func TestRetryReporter(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t, "")
	defer a.Close()

	r := &retryReporter{renderer: a.renderer}
	r.OnRetry(1, 3, 1500*time.Millisecond, "timeout")
	r.OnError(errors.New("quota hit"), true)
	r.OnError(errors.New("fatal"), false)

	out := f.out.String()
	assert.Contains(t, out, "timeout, retrying in 1.5s (1/3)")
	assert.Contains(t, out, "quota hit")
	assert.NotContains(t, out, "fatal")
}
