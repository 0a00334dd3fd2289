package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"azul/internal/logging"
	"azul/internal/security"
)

var (
	// ErrTimeout is returned when a synchronous command exceeds its timeout.
	ErrTimeout = errors.New("command timed out")
	// ErrBlocked is returned for commands rejected by the validator.
	ErrBlocked = errors.New("command blocked")
)

// Result is the outcome of a synchronous command.
type Result struct {
	Command  string
	ExitCode int
	Output   string // combined stdout and stderr
	Duration time.Duration
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes shell commands inside the project root.
type Runner struct {
	validator *security.CommandValidator
	manager   *Manager
	timeout   time.Duration
	workDir   string
	mu        sync.RWMutex
}

// NewRunner creates a runner. A non-positive timeout means 300s.
func NewRunner(workDir string, timeout time.Duration, validator *security.CommandValidator) *Runner {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if validator == nil {
		validator = security.NewCommandValidator(nil)
	}
	return &Runner{
		validator: validator,
		manager:   NewManager(workDir),
		timeout:   timeout,
		workDir:   workDir,
	}
}

// Manager returns the background task manager.
func (r *Runner) Manager() *Manager {
	return r.manager
}

// Timeout returns the synchronous command timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// SetWorkDir changes the directory commands run in.
func (r *Runner) SetWorkDir(dir string) {
	r.mu.Lock()
	r.workDir = dir
	r.mu.Unlock()
	r.manager.SetWorkDir(dir)
}

// WorkDir returns the directory commands run in.
func (r *Runner) WorkDir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workDir
}

func (r *Runner) validate(command string) error {
	result := r.validator.Validate(command)
	if !result.Valid {
		logging.Warn("command rejected", "command", command, "reason", result.Reason, "pattern", result.Pattern)
		return fmt.Errorf("%w: %s (%s)", ErrBlocked, result.Reason, result.Pattern)
	}
	return nil
}

// Run executes command synchronously, capturing combined output.
// A nonzero exit is not an error; the exit code is in the result.
// On timeout the process group is killed and ErrTimeout is returned.
func (r *Runner) Run(ctx context.Context, command string) (*Result, error) {
	if err := r.validate(command); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := newCommand(runCtx, command, r.WorkDir())
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Command:  command,
		ExitCode: exitCode(err),
		Output:   out.String(),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		logging.Warn("command timed out", "command", command, "timeout", r.timeout)
		return result, fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	if err != nil && result.ExitCode < 0 {
		return result, fmt.Errorf("failed to run command: %w", err)
	}

	logging.Debug("command finished", "command", command, "exit_code", result.ExitCode, "duration", result.Duration)
	return result, nil
}

// Start runs command in the background, streaming output lines to onOutput.
// Background commands have no timeout; cancel ctx to stop them.
func (r *Runner) Start(ctx context.Context, command string, onOutput OutputHandler) (*Task, error) {
	if err := r.validate(command); err != nil {
		return nil, err
	}
	return r.manager.Start(ctx, command, onOutput)
}
