package tools

import (
	"context"
	"fmt"
	"strings"

	"azul/internal/fileutil"
)

// ReadTool reads a text file from the project.
type ReadTool struct {
	store *fileutil.Store
}

// NewReadTool creates a ReadTool.
func NewReadTool(store *fileutil.Store) *ReadTool {
	return &ReadTool{store: store}
}

func (t *ReadTool) Name() string {
	return "read"
}

func (t *ReadTool) Description() string {
	return "Reads a file. If the path is not found, the project is searched for a file with that name."
}

func (t *ReadTool) Usage() string {
	return "read('path/to/file.py')"
}

func (t *ReadTool) Validate(args map[string]any) error {
	return requireString(args, "file_path")
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := GetString(args, "file_path")

	file, err := t.store.Read(name)
	if err != nil {
		return NewErrorResultf("cannot read %s: %s", name, err), nil
	}

	return NewSuccessResultWithData(
		FormatReadObservation(file.Rel, file.Content),
		map[string]any{"path": file.Path, "bytes": len(file.Content)},
	), nil
}

// FormatReadObservation frames file content for the model.
func FormatReadObservation(rel, content string) string {
	n := 0
	if content != "" {
		n = strings.Count(content, "\n")
		if !strings.HasSuffix(content, "\n") {
			n++
		}
	}
	return fmt.Sprintf("Content of %s (%d lines):\n%s", rel, n, content)
}
