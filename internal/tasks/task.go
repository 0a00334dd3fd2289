package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

var statusNames = [...]string{"pending", "running", "completed", "failed", "cancelled"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// OutputHandler is called with each line of output, without the newline.
type OutputHandler func(line string)

// Task is a shell command running in the background. It has no timeout; it
// ends when the command exits or is cancelled.
type Task struct {
	ID      string
	Command string
	WorkDir string

	onOutput OutputHandler
	done     chan struct{}

	mu       sync.RWMutex
	status   Status
	output   bytes.Buffer
	partial  []byte // unterminated last line
	errMsg   string
	exitCode int
	started  time.Time
	ended    time.Time
	cancel   context.CancelFunc
}

func NewTask(id, command, workDir string, onOutput OutputHandler) *Task {
	return &Task{
		ID:       id,
		Command:  command,
		WorkDir:  workDir,
		onOutput: onOutput,
		done:     make(chan struct{}),
	}
}

// Start launches the command. A task can be started once.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return errors.New("task already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := newCommand(runCtx, t.Command, t.WorkDir)
	cmd.Stdout = taskWriter{t}
	cmd.Stderr = taskWriter{t}

	t.started = time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		t.status = StatusFailed
		t.errMsg = err.Error()
		t.exitCode = -1
		t.ended = t.started
		close(t.done)
		return fmt.Errorf("failed to start command: %w", err)
	}
	t.status = StatusRunning
	t.cancel = cancel

	go t.await(cmd)
	return nil
}

func (t *Task) await(cmd *exec.Cmd) {
	err := cmd.Wait()

	t.mu.Lock()
	rest := t.partial
	t.partial = nil
	t.ended = time.Now()
	t.exitCode = exitCode(err)
	switch {
	case t.status == StatusCancelled:
	case err != nil:
		t.status = StatusFailed
		t.errMsg = err.Error()
	default:
		t.status = StatusCompleted
	}
	t.mu.Unlock()

	if len(rest) > 0 && t.onOutput != nil {
		t.onOutput(string(rest))
	}
	t.cancel()
	close(t.done)
}

// taskWriter records output and feeds complete lines to the handler.
// exec.Cmd serializes writes when Stdout and Stderr are the same value.
type taskWriter struct{ t *Task }

func (w taskWriter) Write(p []byte) (int, error) {
	t := w.t
	t.mu.Lock()
	t.output.Write(p)
	var lines []string
	if t.onOutput != nil {
		t.partial = append(t.partial, p...)
		for {
			i := bytes.IndexByte(t.partial, '\n')
			if i < 0 {
				break
			}
			lines = append(lines, string(t.partial[:i]))
			t.partial = t.partial[i+1:]
		}
	}
	t.mu.Unlock()

	for _, line := range lines {
		t.onOutput(line)
	}
	return len(p), nil
}

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the command exits and returns its exit code.
func (t *Task) Wait(ctx context.Context) (int, error) {
	select {
	case <-t.done:
		return t.ExitCode(), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Cancel kills the command's process group. It is a no-op once the task
// has finished.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.status != StatusRunning {
		t.mu.Unlock()
		return
	}
	t.status = StatusCancelled
	cancel := t.cancel
	t.mu.Unlock()
	cancel()
}

func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// ExitCode is meaningful once Done is closed.
func (t *Task) ExitCode() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exitCode
}

// GetOutput returns the combined output so far.
func (t *Task) GetOutput() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.output.String()
}

func (t *Task) IsRunning() bool { return t.GetStatus() == StatusRunning }

// IsComplete reports whether the command has exited for any reason.
func (t *Task) IsComplete() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.elapsed()
}

func (t *Task) elapsed() time.Duration {
	switch {
	case t.started.IsZero():
		return 0
	case t.ended.IsZero():
		return time.Since(t.started)
	}
	return t.ended.Sub(t.started)
}

// Info is a snapshot of a task.
type Info struct {
	ID        string
	Command   string
	Status    string
	Output    string
	Error     string
	ExitCode  int
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

func (t *Task) GetInfo() Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Info{
		ID:        t.ID,
		Command:   t.Command,
		Status:    t.status.String(),
		Output:    t.output.String(),
		Error:     t.errMsg,
		ExitCode:  t.exitCode,
		Duration:  t.elapsed(),
		StartTime: t.started,
		EndTime:   t.ended,
	}
}
