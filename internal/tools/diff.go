package tools

import (
	"context"
	"errors"
	"fmt"

	"azul/internal/editor"
)

// DiffTool applies a unified diff to an existing file after user approval.
type DiffTool struct {
	editor *editor.Editor
}

// NewDiffTool creates a DiffTool.
func NewDiffTool(ed *editor.Editor) *DiffTool {
	return &DiffTool{editor: ed}
}

func (t *DiffTool) Name() string {
	return "diff"
}

func (t *DiffTool) Description() string {
	return "Applies a unified diff (with @@ -start,count +start,count @@ hunks) to an existing file. Context lines must match the file."
}

func (t *DiffTool) Usage() string {
	return "diff('path/to/file.py', '@@ -3,2 +3,2 @@\\n def f():\\n-    return 1\\n+    return 2\\n')"
}

func (t *DiffTool) Validate(args map[string]any) error {
	if err := requireString(args, "file_path"); err != nil {
		return err
	}
	return requireString(args, "content")
}

func (t *DiffTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := GetString(args, "file_path")
	diff, _ := GetString(args, "content")

	res, err := t.editor.ApplyDiff(ctx, name, diff)
	if err != nil {
		if errors.Is(err, editor.ErrDenied) {
			return NewErrorResultf("user denied the change to %s", name), nil
		}
		return NewErrorResultf("error updating %s: %s", name, err), nil
	}

	msg := fmt.Sprintf("Successfully applied diff to %s (+%d -%d lines)", res.Rel, res.Added, res.Removed)
	if res.Skipped > 0 {
		msg += fmt.Sprintf(". %d hunk(s) were declined by the user and not applied", res.Skipped)
	}
	return NewSuccessResultWithData(withWarnings(msg, res.Warnings), res), nil
}
