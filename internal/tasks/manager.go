package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"azul/internal/logging"

	"github.com/google/uuid"
)

// finishedRetention is how long finished tasks stay listed before Start
// prunes them.
const finishedRetention = 30 * time.Minute

// CompletionHandler receives every task once it has finished.
type CompletionHandler func(task *Task)

// Manager tracks the commands started by the exec tool. Tasks are kept in
// start order.
type Manager struct {
	mu         sync.RWMutex
	dir        string
	order      []*Task
	byID       map[string]*Task
	onComplete CompletionHandler
}

func NewManager(workDir string) *Manager {
	return &Manager{
		dir:  workDir,
		byID: make(map[string]*Task),
	}
}

// SetWorkDir changes where tasks started from now on run. Running tasks
// keep their directory.
func (m *Manager) SetWorkDir(dir string) {
	m.mu.Lock()
	m.dir = dir
	m.mu.Unlock()
}

func (m *Manager) SetCompletionHandler(handler CompletionHandler) {
	m.mu.Lock()
	m.onComplete = handler
	m.mu.Unlock()
}

// Start launches command in the current work directory.
func (m *Manager) Start(ctx context.Context, command string, onOutput OutputHandler) (*Task, error) {
	m.Cleanup(finishedRetention)

	m.mu.Lock()
	task := NewTask(uuid.NewString()[:8], command, m.dir, onOutput)
	notify := m.onComplete
	m.mu.Unlock()

	if err := task.Start(ctx); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}

	m.mu.Lock()
	m.order = append(m.order, task)
	m.byID[task.ID] = task
	m.mu.Unlock()

	logging.Debug("task started", "id", task.ID, "command", command)

	go func() {
		<-task.Done()
		logging.Debug("task finished",
			"id", task.ID,
			"status", task.GetStatus().String(),
			"exit_code", task.ExitCode())
		if notify != nil {
			notify(task)
		}
	}()
	return task, nil
}

func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byID[id]
	return t, ok
}

// List describes every tracked task, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, len(m.order))
	for i, t := range m.order {
		infos[i] = t.GetInfo()
	}
	return infos
}

// Cleanup forgets tasks that finished more than maxAge ago and reports
// how many were dropped.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.order)
	m.order = slices.DeleteFunc(m.order, func(t *Task) bool {
		if !t.IsComplete() || t.GetInfo().EndTime.After(cutoff) {
			return false
		}
		delete(m.byID, t.ID)
		return true
	})
	return before - len(m.order)
}

func (m *Manager) running() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Task
	for _, t := range m.order {
		if t.IsRunning() {
			out = append(out, t)
		}
	}
	return out
}

// CancelAll stops every running task. It does not wait for them to exit.
func (m *Manager) CancelAll() {
	for _, t := range m.running() {
		t.Cancel()
	}
}

func (m *Manager) RunningCount() int {
	return len(m.running())
}
