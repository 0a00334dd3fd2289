package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"

	"azul/internal/chat"
	"azul/internal/tools"
)

// HelpCommand shows help for commands.
type HelpCommand struct {
	handler *Handler
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Show help for commands" }
func (c *HelpCommand) Usage() string       { return "/help [command]" }

func (c *HelpCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	if len(args) > 0 {
		cmd, ok := c.handler.GetCommand(strings.TrimPrefix(args[0], "/"))
		if !ok {
			return fmt.Sprintf("Unknown command: /%s\nUse /help to see all commands.", args[0]), nil
		}
		return fmt.Sprintf("/%s - %s\n\nUsage:\n%s", cmd.Name(), cmd.Description(), cmd.Usage()), nil
	}

	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, cmd := range c.handler.ListCommands() {
		desc := cmd.Description()
		if aliases := c.handler.Aliases(cmd.Name()); len(aliases) > 0 {
			desc += " (also /" + strings.Join(aliases, ", /") + ")"
		}
		fmt.Fprintf(&sb, "  /%-8s %s\n", cmd.Name(), desc)
	}
	sb.WriteString("\nAnything else is sent to the agent as a task.")
	return sb.String(), nil
}

// ExitCommand ends the session.
type ExitCommand struct{}

func (c *ExitCommand) Name() string        { return "exit" }
func (c *ExitCommand) Description() string { return "Save the session and quit" }
func (c *ExitCommand) Usage() string       { return "/exit" }

func (c *ExitCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	return "", ErrExit
}

// ResetCommand clears the conversation history of the current project.
type ResetCommand struct{}

func (c *ResetCommand) Name() string        { return "reset" }
func (c *ResetCommand) Description() string { return "Clear the conversation history" }
func (c *ResetCommand) Usage() string       { return "/reset" }

func (c *ResetCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	if err := app.ResetConversation(); err != nil {
		return fmt.Sprintf("History cleared, but saving failed: %v", err), nil
	}
	return "Conversation history cleared.", nil
}

// UndoCommand undoes the last file change.
type UndoCommand struct{}

func (c *UndoCommand) Name() string        { return "undo" }
func (c *UndoCommand) Description() string { return "Undo the last file change" }
func (c *UndoCommand) Usage() string       { return "/undo [list]" }

func (c *UndoCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	um := app.GetUndoManager()
	if um == nil {
		return "Undo manager not available.", nil
	}

	if len(args) > 0 && args[0] == "list" {
		recent := um.ListRecent(10)
		if len(recent) == 0 {
			return "No changes recorded.", nil
		}
		var sb strings.Builder
		for i, ch := range recent {
			fmt.Fprintf(&sb, "%d. [%s] %s (%s)\n", i+1, ch.ID, ch.Summary(), ch.Timestamp.Format("15:04:05"))
		}
		return strings.TrimRight(sb.String(), "\n"), nil
	}

	change, err := um.Undo()
	if err != nil {
		return fmt.Sprintf("Undo failed: %v", err), nil
	}
	return fmt.Sprintf("Undone: %s", change.Summary()), nil
}

// CopyCommand copies the last assistant message to the system clipboard.
type CopyCommand struct{}

func (c *CopyCommand) Name() string        { return "copy" }
func (c *CopyCommand) Description() string { return "Copy the last response to the clipboard" }
func (c *CopyCommand) Usage() string {
	return `/copy        - Copy the last assistant response
/copy --all  - Copy the whole conversation`
}

var errNoClipboard = errors.New("clipboard not available")

// writeClipboard is replaced in tests.
var writeClipboard = func(text string) error {
	if clipboard.Unsupported {
		return errNoClipboard
	}
	return clipboard.WriteAll(text)
}

func (c *CopyCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	session := app.GetSession()
	if session == nil {
		return "No session available.", nil
	}

	var text string
	if len(args) > 0 && (args[0] == "--all" || args[0] == "-a") {
		var sb strings.Builder
		for _, m := range session.Messages(0) {
			if m.Role == chat.RoleTool {
				continue
			}
			fmt.Fprintf(&sb, "## %s\n\n%s\n\n", strings.ToUpper(m.Role[:1])+m.Role[1:], m.Content)
		}
		text = strings.TrimSpace(sb.String())
	} else {
		text, _ = session.LastAssistant()
	}
	if text == "" {
		return "Nothing to copy.", nil
	}

	if err := writeClipboard(text); err != nil {
		if errors.Is(err, errNoClipboard) {
			return "Clipboard not available. Install xclip, xsel, or wl-copy on Linux.", nil
		}
		return fmt.Sprintf("Failed to copy: %v", err), nil
	}
	return fmt.Sprintf("Copied to clipboard (%d chars)", len(text)), nil
}

// ListCommand prints the project tree.
type ListCommand struct{}

func (c *ListCommand) Name() string        { return "ls" }
func (c *ListCommand) Description() string { return "Show the project tree" }
func (c *ListCommand) Usage() string       { return "/ls [depth]" }

func (c *ListCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	depth := app.GetConfig().Agent.TreeDepth
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Sprintf("Invalid depth %q. Usage: %s", args[0], c.Usage()), nil
		}
		depth = n
	}
	return tools.GenerateTree(ctx, app.GetWorkDir(), depth)
}

// PathCommand prints the project root.
type PathCommand struct{}

func (c *PathCommand) Name() string        { return "path" }
func (c *PathCommand) Description() string { return "Show the project directory" }
func (c *PathCommand) Usage() string       { return "/path" }

func (c *PathCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	return app.GetWorkDir(), nil
}

// ChangeDirCommand re-roots the assistant at another project.
type ChangeDirCommand struct{}

func (c *ChangeDirCommand) Name() string        { return "cd" }
func (c *ChangeDirCommand) Description() string { return "Switch to another project directory" }
func (c *ChangeDirCommand) Usage() string       { return "/cd <directory>" }

func (c *ChangeDirCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	if len(args) == 0 {
		return "Usage: " + c.Usage(), nil
	}
	if err := app.ChangeDir(ctx, strings.Join(args, " ")); err != nil {
		return fmt.Sprintf("Cannot change directory: %v", err), nil
	}
	return "Project directory: " + app.GetWorkDir(), nil
}
