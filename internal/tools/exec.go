package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"azul/internal/permission"
	"azul/internal/tasks"
)

const (
	// DefaultTailLines is how many trailing lines long output is cut to.
	DefaultTailLines = 10
	// DefaultMaxOutputChars caps the output embedded in one observation.
	DefaultMaxOutputChars = 30000
)

// ExecTool runs shell commands in the project root.
type ExecTool struct {
	runner    *tasks.Runner
	gate      *permission.Gate
	tailLines int
	maxChars  int

	onOutput tasks.OutputHandler
	mu       sync.RWMutex
}

// NewExecTool creates an ExecTool. gate may be nil.
func NewExecTool(runner *tasks.Runner, gate *permission.Gate, tailLines, maxChars int) *ExecTool {
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxOutputChars
	}
	return &ExecTool{
		runner:    runner,
		gate:      gate,
		tailLines: tailLines,
		maxChars:  maxChars,
	}
}

// SetOutputHandler sets where live output of background commands goes.
func (t *ExecTool) SetOutputHandler(h tasks.OutputHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOutput = h
}

func (t *ExecTool) outputHandler() tasks.OutputHandler {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onOutput
}

func (t *ExecTool) Name() string {
	return "exec"
}

func (t *ExecTool) Description() string {
	return fmt.Sprintf("Runs a shell command in the project root and reports its exit code and output (timeout %s). "+
		"Use background=True for long-running commands to stream their output.", formatTimeout(t.runner.Timeout()))
}

func (t *ExecTool) Usage() string {
	return "exec('go test ./...')"
}

func (t *ExecTool) Validate(args map[string]any) error {
	return requireString(args, "command")
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	command, _ := GetString(args, "command")
	command = strings.TrimSpace(command)
	background := GetBoolDefault(args, "background", false)

	if t.gate != nil && !t.gate.Check(ctx, "exec", command, "") {
		return NewErrorResultf("user denied running '%s'", command), nil
	}

	if background {
		return t.executeBackground(ctx, command)
	}

	res, err := t.runner.Run(ctx, command)
	switch {
	case errors.Is(err, tasks.ErrTimeout):
		return NewErrorResultf("command '%s' timed out after %s", command, formatTimeout(t.runner.Timeout())), nil
	case errors.Is(err, tasks.ErrBlocked):
		return NewErrorResultf("command '%s' was rejected: %s", command, err), nil
	case errors.Is(err, context.Canceled):
		return NewErrorResultf("command '%s' was cancelled", command), nil
	case err != nil:
		return NewErrorResultf("command '%s' could not be run: %s", command, err), nil
	}

	return t.result(command, res.ExitCode, res.Output, "", res.Duration), nil
}

// executeBackground starts the command as a task, streams its output and
// waits for the completion signal.
func (t *ExecTool) executeBackground(ctx context.Context, command string) (ToolResult, error) {
	task, err := t.runner.Start(ctx, command, t.outputHandler())
	if errors.Is(err, tasks.ErrBlocked) {
		return NewErrorResultf("command '%s' was rejected: %s", command, err), nil
	}
	if err != nil {
		return NewErrorResultf("failed to start background command '%s': %s", command, err), nil
	}

	code, err := task.Wait(ctx)
	if err != nil {
		task.Cancel()
		return NewErrorResultf("background command '%s' (task %s) was cancelled", command, task.ID), nil
	}

	return t.result(command, code, task.GetOutput(), fmt.Sprintf("Background task %s: ", task.ID), task.Duration()), nil
}

func (t *ExecTool) result(command string, code int, output, prefix string, d time.Duration) ToolResult {
	obs := prefix + FormatExecObservation(command, code, output, t.tailLines, t.maxChars)
	data := map[string]any{"command": command, "exit_code": code, "duration": d.String()}
	if code != 0 {
		r := NewErrorResult(obs)
		r.Data = data
		return r
	}
	return NewSuccessResultWithData(obs, data)
}

// FormatExecObservation renders the deterministic result of a command: the
// exit code framing plus the output, cut to its last tailLines lines when
// longer and to maxChars characters.
func FormatExecObservation(command string, code int, output string, tailLines, maxChars int) string {
	var sb strings.Builder
	if code == 0 {
		fmt.Fprintf(&sb, "Command '%s' finished with exit code 0 (success).", command)
	} else {
		fmt.Fprintf(&sb, "Command '%s' finished with exit code %d (failed).", command, code)
	}

	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		sb.WriteString("\n(no output)")
		return sb.String()
	}

	label := "Output"
	if code != 0 {
		label = "Error output"
	}

	lines := strings.Split(trimmed, "\n")
	body := trimmed
	if tailLines > 0 && len(lines) > tailLines {
		body = strings.Join(lines[len(lines)-tailLines:], "\n")
		if code == 0 {
			label = fmt.Sprintf("Last %d lines of output", tailLines)
		} else {
			label = fmt.Sprintf("Last %d lines of error output", tailLines)
		}
	}

	if maxChars > 0 && len(body) > maxChars {
		total := len(body)
		cut := total - maxChars
		for cut < total && !utf8.RuneStart(body[cut]) {
			cut++
		}
		body = body[cut:]
		body = fmt.Sprintf("... (output truncated: showing last %d of %d characters)\n%s", len(body), total, body)
	}

	fmt.Fprintf(&sb, "\n%s:\n%s", label, body)
	return sb.String()
}

// formatTimeout prints whole-second timeouts as "300s".
func formatTimeout(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
