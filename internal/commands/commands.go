package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"azul/internal/chat"
	"azul/internal/client"
	"azul/internal/config"
	"azul/internal/editor"
	"azul/internal/fileutil"
	"azul/internal/highlight"
	"azul/internal/semantic"
	"azul/internal/undo"
	"azul/internal/watcher"
)

// ErrExit is returned by /exit to end the REPL.
var ErrExit = errors.New("exit requested")

// Command is a slash command run directly by the REPL, outside the agent.
type Command interface {
	Name() string
	Description() string
	Usage() string
	Execute(ctx context.Context, args []string, app AppInterface) (string, error)
}

// AppInterface is what commands may touch in the running application.
type AppInterface interface {
	GetSession() *chat.Session
	GetWorkDir() string
	ChangeDir(ctx context.Context, dir string) error
	ResetConversation() error
	GetConfig() *config.Config
	GetClient() client.Client
	GetEditor() *editor.Editor
	GetFileStore() *fileutil.Store
	GetUndoManager() *undo.Manager
	GetHighlighter() *highlight.Highlighter

	// Retrieval components are nil when RAG is disabled.
	GetIndexer() *semantic.Indexer
	GetMetrics() *semantic.Metrics
	GetWatcher() *watcher.Watcher
}

// builtinAliases are alternate spellings of builtin commands.
var builtinAliases = map[string]string{
	"quit":  "exit",
	"clear": "reset",
	"pwd":   "path",
}

// Handler resolves "/name args..." lines to commands.
type Handler struct {
	byName  map[string]Command
	aliases map[string][]string // command -> its aliases
}

// NewHandler returns a handler with every builtin command registered.
func NewHandler() *Handler {
	h := &Handler{
		byName:  make(map[string]Command),
		aliases: make(map[string][]string),
	}
	for _, cmd := range []Command{
		&HelpCommand{handler: h},
		&ExitCommand{},
		&ResetCommand{},
		&ModelCommand{},
		&EditCommand{},
		&CreateCommand{},
		&DeleteCommand{},
		&ReadCommand{},
		&UndoCommand{},
		&ListCommand{},
		&PathCommand{},
		&ChangeDirCommand{},
		&IndexCommand{},
		&CopyCommand{},
	} {
		h.Register(cmd)
	}
	for alias, name := range builtinAliases {
		h.Alias(alias, name)
	}
	return h
}

// Register adds cmd, replacing any command of the same name.
func (h *Handler) Register(cmd Command) {
	h.byName[cmd.Name()] = cmd
}

// Alias makes alias resolve to the command called name.
func (h *Handler) Alias(alias, name string) {
	if cmd, ok := h.byName[name]; ok {
		h.byName[alias] = cmd
		h.aliases[name] = append(h.aliases[name], alias)
		slices.Sort(h.aliases[name])
	}
}

// GetCommand looks up a command by name or alias, case-insensitively.
func (h *Handler) GetCommand(name string) (Command, bool) {
	cmd, ok := h.byName[strings.ToLower(name)]
	return cmd, ok
}

// Parse splits a slash command line into the canonical command name and
// its arguments. ok is false for plain text and for unknown commands, so
// a line starting with a path such as /home/me/app is left to the agent.
func (h *Handler) Parse(input string) (name string, args []string, ok bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	cmd, ok := h.GetCommand(fields[0][1:])
	if !ok {
		return "", nil, false
	}
	if len(fields) > 1 {
		args = fields[1:]
	}
	return cmd.Name(), args, true
}

// Execute runs the command called name.
func (h *Handler) Execute(ctx context.Context, name string, args []string, app AppInterface) (string, error) {
	cmd, ok := h.GetCommand(name)
	if !ok {
		return "", fmt.Errorf("unknown command: /%s", name)
	}
	return cmd.Execute(ctx, args, app)
}

// ListCommands returns every command once, ordered by name.
func (h *Handler) ListCommands() []Command {
	var cmds []Command
	for key, cmd := range h.byName {
		if key == cmd.Name() {
			cmds = append(cmds, cmd)
		}
	}
	slices.SortFunc(cmds, func(a, b Command) int { return strings.Compare(a.Name(), b.Name()) })
	return cmds
}

// Aliases returns the alternate names of the command called name.
func (h *Handler) Aliases(name string) []string {
	return h.aliases[name]
}
