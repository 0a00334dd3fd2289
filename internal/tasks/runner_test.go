package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := NewRunner(t.TempDir(), 10*time.Second, nil)

	res, err := r.Run(context.Background(), "echo out; echo err 1>&2")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Contains(t, res.Output, "out")
	assert.Contains(t, res.Output, "err")

	res, err = r.Run(context.Background(), "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Success())
}

func TestRunInWorkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0644))

	r := NewRunner(dir, 10*time.Second, nil)
	res, err := r.Run(context.Background(), "ls")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "marker.txt")

	other := t.TempDir()
	r.SetWorkDir(other)
	res, err = r.Run(context.Background(), "ls")
	require.NoError(t, err)
	assert.NotContains(t, res.Output, "marker.txt")
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner(t.TempDir(), 200*time.Millisecond, nil)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 5")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunBlocked(t *testing.T) {
	r := NewRunner(t.TempDir(), time.Second, nil)

	_, err := r.Run(context.Background(), "rm -rf /")
	require.ErrorIs(t, err, ErrBlocked)

	_, err = r.Start(context.Background(), ":(){ :|:& };:", nil)
	require.ErrorIs(t, err, ErrBlocked)
}

func TestStartStreamsOutputAndSignalsCompletion(t *testing.T) {
	r := NewRunner(t.TempDir(), time.Second, nil)

	var mu sync.Mutex
	var lines []string
	completed := make(chan string, 1)
	r.Manager().SetCompletionHandler(func(task *Task) { completed <- task.ID })

	task, err := r.Start(context.Background(), "echo one; echo two; printf three; exit 2", func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := task.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, code)
	assert.Equal(t, StatusFailed, task.GetStatus())

	mu.Lock()
	assert.Equal(t, []string{"one", "two", "three"}, lines)
	mu.Unlock()
	assert.Equal(t, "one\ntwo\nthree", task.GetOutput())

	select {
	case id := <-completed:
		assert.Equal(t, task.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("completion handler not called")
	}

	got, ok := r.Manager().Get(task.ID)
	require.True(t, ok)
	assert.Same(t, task, got)
}

func TestCancelBackgroundTask(t *testing.T) {
	r := NewRunner(t.TempDir(), time.Second, nil)

	task, err := r.Start(context.Background(), "sleep 30", nil)
	require.NoError(t, err)
	assert.True(t, task.IsRunning())
	assert.Equal(t, 1, r.Manager().RunningCount())

	r.Manager().CancelAll()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task not cancelled")
	}
	assert.Equal(t, StatusCancelled, task.GetStatus())
	assert.True(t, task.IsComplete())
	assert.Equal(t, 1, len(r.Manager().List()))
	assert.Equal(t, 1, r.Manager().Cleanup(0))
}

func TestBuildSafeEnvDropsSecrets(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("PATH", "/usr/bin:/bin")

	env := strings.Join(buildSafeEnv(), "\n")
	assert.NotContains(t, env, "GEMINI_API_KEY")
	assert.Contains(t, env, "PATH=/usr/bin:/bin")
}
