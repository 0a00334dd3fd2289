package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"azul/internal/client"
	"azul/internal/logging"
)

// Registry resolves tool calls parsed from model output to tools.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds tool. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[tool.Name()]; dup {
		return fmt.Errorf("tool %q registered twice", tool.Name())
	}
	r.byName[tool.Name()] = tool
	return nil
}

// MustRegister is Register for the builtin set, where a duplicate is only
// worth a warning.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		logging.Warn("tool not registered", "tool", tool.Name(), "error", err)
	}
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// List returns the tools ordered by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	list := make([]Tool, 0, len(r.byName))
	for _, t := range r.byName {
		list = append(list, t)
	}
	r.mu.RUnlock()
	slices.SortFunc(list, func(a, b Tool) int { return strings.Compare(a.Name(), b.Name()) })
	return list
}

func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, 0, len(list))
	for _, t := range list {
		names = append(names, t.Name())
	}
	return names
}

// Describe lists every tool with its usage for the system prompt.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, t := range r.List() {
		fmt.Fprintf(&sb, "- %s: %s\n  Usage: %s%s%s\n",
			t.Name(), t.Description(), client.OpenMarker, t.Usage(), client.CloseMarker)
	}
	return sb.String()
}

// Execute runs call and never fails: unknown tools, rejected arguments and
// tool errors all come back as failed results.
func (r *Registry) Execute(ctx context.Context, call *client.ToolCall) ToolResult {
	tool, ok := r.Get(call.Name)
	if !ok {
		return NewErrorResultf("unknown tool '%s'. Available tools: %s",
			call.Name, strings.Join(r.Names(), ", "))
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	if err := tool.Validate(args); err != nil {
		return NewErrorResultf("invalid arguments for %s: %s. Usage: %s", call.Name, err, tool.Usage())
	}

	res, err := tool.Execute(ctx, args)
	if err != nil {
		logging.Warn("tool failed", "tool", call.Name, "error", err)
		return NewErrorResultf("%s failed: %s", call.Name, err)
	}
	return res
}
