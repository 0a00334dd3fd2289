package tools

import (
	"context"
	"fmt"

	"azul/internal/editor"
)

// WriteTool creates or overwrites files. Writes are not gated: they are
// recoverable through backups and the undo journal.
type WriteTool struct {
	editor *editor.Editor
}

// NewWriteTool creates a WriteTool.
func NewWriteTool(ed *editor.Editor) *WriteTool {
	return &WriteTool{editor: ed}
}

func (t *WriteTool) Name() string {
	return "write"
}

func (t *WriteTool) Description() string {
	return "Creates a file or replaces its entire content. Parent directories are created as needed."
}

func (t *WriteTool) Usage() string {
	return "write('path/to/file.py', 'full file content')"
}

func (t *WriteTool) Validate(args map[string]any) error {
	if err := requireString(args, "file_path"); err != nil {
		return err
	}
	if _, ok := GetString(args, "content"); !ok {
		return NewValidationError("content", "is required")
	}
	return nil
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := GetString(args, "file_path")
	content, _ := GetString(args, "content")

	res, err := t.editor.WriteFile(ctx, name, content)
	if err != nil {
		return NewErrorResultf("error writing %s: %s", name, err), nil
	}

	return NewSuccessResultWithData(
		withWarnings(fmt.Sprintf("Successfully wrote %d bytes to %s", res.Bytes, res.Rel), res.Warnings),
		res,
	), nil
}

// withWarnings appends best-effort warnings to an observation.
func withWarnings(msg string, warnings []string) string {
	for _, w := range warnings {
		msg += "\nWarning: " + w
	}
	return msg
}
