package tools

import (
	"azul/internal/editor"
	"azul/internal/fileutil"
	"azul/internal/permission"
	"azul/internal/tasks"
)

// Deps holds what the built-in tools operate on.
type Deps struct {
	Root           string
	Store          *fileutil.Store
	Editor         *editor.Editor
	Runner         *tasks.Runner
	Gate           *permission.Gate
	TreeDepth      int
	TailLines      int
	MaxOutputChars int
}

// OutputStreamer is implemented by tools that can stream live output.
type OutputStreamer interface {
	SetOutputHandler(h tasks.OutputHandler)
}

// NewDefaultRegistry builds the registry of built-in tools once at startup.
func NewDefaultRegistry(d Deps) *Registry {
	r := NewRegistry()
	r.MustRegister(NewExecTool(d.Runner, d.Gate, d.TailLines, d.MaxOutputChars))
	r.MustRegister(NewReadTool(d.Store))
	r.MustRegister(NewTreeTool(d.Root, d.TreeDepth))
	r.MustRegister(NewWriteTool(d.Editor))
	r.MustRegister(NewDiffTool(d.Editor))
	r.MustRegister(NewDeleteTool(d.Editor))
	return r
}
