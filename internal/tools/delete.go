package tools

import (
	"context"
	"errors"
	"fmt"

	"azul/internal/editor"
)

// DeleteTool deletes a file after user approval, keeping a backup.
type DeleteTool struct {
	editor *editor.Editor
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(ed *editor.Editor) *DeleteTool {
	return &DeleteTool{editor: ed}
}

func (t *DeleteTool) Name() string {
	return "delete"
}

func (t *DeleteTool) Description() string {
	return "Deletes a file. A backup is kept."
}

func (t *DeleteTool) Usage() string {
	return "delete('path/to/file.py')"
}

func (t *DeleteTool) Validate(args map[string]any) error {
	return requireString(args, "file_path")
}

func (t *DeleteTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := GetString(args, "file_path")

	res, err := t.editor.DeleteFile(ctx, name)
	if err != nil {
		if errors.Is(err, editor.ErrDenied) {
			return NewErrorResultf("user denied deleting %s", name), nil
		}
		return NewErrorResultf("error deleting %s: %s", name, err), nil
	}

	msg := fmt.Sprintf("Successfully deleted %s (backup: %s)", res.Rel, res.Backup)
	return NewSuccessResultWithData(withWarnings(msg, res.Warnings), res), nil
}
