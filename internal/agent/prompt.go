package agent

import (
	"fmt"
	"strings"

	"azul/internal/client"
	"azul/internal/tools"
)

// SystemPrompt builds the instructions sent ahead of the conversation.
// Model specific hints are appended to the rules.
func SystemPrompt(root string, registry *tools.Registry, model string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are Azul, a coding assistant working inside the project at %s. ", root)
	sb.WriteString("You complete tasks by calling tools and reading their output.\n\n")

	sb.WriteString("To call a tool, write one call wrapped in <tool_code></tool_code>, ")
	sb.WriteString("for example <tool_code>read('main.go')</tool_code>. ")
	sb.WriteString("Make one call per turn and wait for its result, which arrives as \"Tool Output:\".\n\n")

	sb.WriteString("Available tools:\n")
	sb.WriteString(registry.Describe())

	sb.WriteString("\nRules:\n")
	sb.WriteString("- For tasks with several steps, start with a numbered plan (1. ..., 2. ...).\n")
	sb.WriteString("- Base every statement about files or commands on tool output. Never invent results.\n")
	sb.WriteString("- Paths are relative to the project root.\n")
	sb.WriteString("- If a tool fails, read the error and change your approach.\n")
	sb.WriteString("- When the task is done, reply with a short summary followed by <task_complete>.\n")
	if hints := client.PromptHints(model); hints != "" {
		sb.WriteString(hints)
		sb.WriteString("\n")
	}
	return sb.String()
}
