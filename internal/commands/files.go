package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"azul/internal/chat"
	"azul/internal/client"
	"azul/internal/editor"
	"azul/internal/logging"
)

const editPrompt = `You are Azul, a coding assistant editing the project at %s.
Answer the request directly. To change files, use fenced blocks:

` + "```diff" + `
--- a/path/to/file
+++ b/path/to/file
@@ -1,3 +1,3 @@
 context
-old line
+new line
` + "```" + `

To create or replace a file use ` + "```file:path/to/file" + ` with the full content.
To delete a file use ` + "```delete:path/to/file" + ` with an empty body.
Only include blocks for changes you want applied.`

// EditCommand asks the model for a single response and applies the action
// blocks it contains, without the tool loop.
type EditCommand struct{}

func (c *EditCommand) Name() string        { return "edit" }
func (c *EditCommand) Description() string { return "Request file edits in one shot (no tools)" }
func (c *EditCommand) Usage() string       { return "/edit <instruction>" }

func (c *EditCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	if len(args) == 0 {
		return "Usage: " + c.Usage(), nil
	}
	instruction := strings.Join(args, " ")
	session := app.GetSession()
	cfg := app.GetConfig()

	msgs := []client.Message{{Role: client.RoleSystem, Content: fmt.Sprintf(editPrompt, app.GetWorkDir())}}
	for _, m := range session.Messages(cfg.Agent.HistoryWindow) {
		msgs = append(msgs, client.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, client.Message{Role: client.RoleUser, Content: instruction})

	response, err := app.GetClient().Complete(ctx, msgs, client.Options{
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	session.AddMessage(chat.RoleUser, instruction)
	session.AddMessage(chat.RoleAssistant, response)

	blocks, prose := editor.ParseBlocks(response)
	if len(blocks) == 0 {
		return response, nil
	}
	if editor.IsLikelyFalsePositive(prose, blocks, instruction) {
		logging.Debug("edit blocks look like examples, not applying", "blocks", len(blocks))
		return fmt.Sprintf("%s\n\n(%d code block(s) look like examples and were not applied)", response, len(blocks)), nil
	}

	var sb strings.Builder
	if prose != "" {
		sb.WriteString(prose)
		sb.WriteString("\n\n")
	}
	for _, r := range app.GetEditor().ApplyBlocks(ctx, blocks) {
		sb.WriteString(describeBlock(r))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func describeBlock(r editor.BlockResult) string {
	switch {
	case errors.Is(r.Err, editor.ErrDenied):
		return fmt.Sprintf("✗ %s %s: declined", r.Block.Kind, r.Block.Path)
	case r.Err != nil:
		return fmt.Sprintf("✗ %s %s: %v", r.Block.Kind, r.Block.Path, r.Err)
	}

	res := r.Result
	var line string
	switch r.Block.Kind {
	case editor.BlockDelete:
		line = "✓ deleted " + res.Rel
	case editor.BlockFile:
		verb := "wrote"
		if res.Created {
			verb = "created"
		}
		line = fmt.Sprintf("✓ %s %s (%d bytes)", verb, res.Rel, res.Bytes)
	default:
		line = fmt.Sprintf("✓ patched %s (+%d -%d)", res.Rel, res.Added, res.Removed)
		if res.Skipped > 0 {
			line += fmt.Sprintf(", %d hunk(s) skipped", res.Skipped)
		}
	}
	for _, w := range res.Warnings {
		line += "\n  warning: " + w
	}
	return line
}

// CreateCommand creates a file, optionally with inline content.
type CreateCommand struct{}

func (c *CreateCommand) Name() string        { return "create" }
func (c *CreateCommand) Description() string { return "Create a file" }
func (c *CreateCommand) Usage() string       { return "/create <path> [content]" }

func (c *CreateCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	if len(args) == 0 {
		return "Usage: " + c.Usage(), nil
	}
	content := ""
	if len(args) > 1 {
		content = strings.Join(args[1:], " ") + "\n"
	}

	res, err := app.GetEditor().CreateFile(ctx, args[0], content)
	if err != nil {
		return fmt.Sprintf("Cannot create %s: %v", args[0], err), nil
	}
	return fmt.Sprintf("Created %s (%d bytes)", res.Rel, res.Bytes), nil
}

// DeleteCommand deletes a file after confirmation.
type DeleteCommand struct{}

func (c *DeleteCommand) Name() string        { return "delete" }
func (c *DeleteCommand) Description() string { return "Delete a file (a backup is kept)" }
func (c *DeleteCommand) Usage() string       { return "/delete <path>" }

func (c *DeleteCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	if len(args) == 0 {
		return "Usage: " + c.Usage(), nil
	}
	res, err := app.GetEditor().DeleteFile(ctx, args[0])
	if err != nil {
		return fmt.Sprintf("Cannot delete %s: %v", args[0], err), nil
	}
	msg := "Deleted " + res.Rel
	if res.Backup != "" {
		msg += " (backup: " + res.Backup + ")"
	}
	return msg, nil
}

// ReadCommand prints a file with syntax highlighting.
type ReadCommand struct{}

func (c *ReadCommand) Name() string        { return "read" }
func (c *ReadCommand) Description() string { return "Show a file with highlighting" }
func (c *ReadCommand) Usage() string       { return "/read <path>" }

func (c *ReadCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	if len(args) == 0 {
		return "Usage: " + c.Usage(), nil
	}
	file, err := app.GetFileStore().Read(args[0])
	if err != nil {
		return fmt.Sprintf("Cannot read %s: %v", args[0], err), nil
	}
	if file.Content == "" {
		return file.Rel + " is empty.", nil
	}
	return file.Rel + ":\n" + app.GetHighlighter().File(file.Rel, file.Content), nil
}
