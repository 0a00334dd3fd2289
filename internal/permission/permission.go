package permission

import "fmt"

// Level represents the permission level for a tool.
type Level string

const (
	// LevelAllow allows the tool to execute without asking.
	LevelAllow Level = "allow"
	// LevelAsk prompts the user before executing.
	LevelAsk Level = "ask"
	// LevelDeny denies execution of the tool.
	LevelDeny Level = "deny"
)

// Request describes one action awaiting approval.
type Request struct {
	Tool    string // tool or command that triggered the request, may be empty
	Action  string // human-readable description, e.g. "Delete file: a.go"
	Target  string // file path or command, used for session memory
	Preview string // rendered diff or content preview, may be empty

	// Set when approving a single hunk in cherry-pick mode.
	Hunk       int
	TotalHunks int
}

// IsHunk reports whether the request is for a single diff hunk.
func (r *Request) IsHunk() bool {
	return r.TotalHunks > 0
}

// Title returns the one-line prompt title.
func (r *Request) Title() string {
	if r.IsHunk() {
		return fmt.Sprintf("%s (hunk %d/%d)", r.Action, r.Hunk, r.TotalHunks)
	}
	return r.Action
}

// Decision represents the user's decision on a permission request.
type Decision int

const (
	// DecisionDeny denies this specific execution.
	DecisionDeny Decision = iota
	// DecisionAllow allows this specific execution.
	DecisionAllow
	// DecisionAllowSession allows this tool and target for the session.
	DecisionAllowSession
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionAllowSession:
		return "allow for session"
	default:
		return "deny"
	}
}

// Allowed reports whether the decision grants the action.
func (d Decision) Allowed() bool {
	return d == DecisionAllow || d == DecisionAllowSession
}

// describeTool builds the action text for a tool invocation.
func describeTool(tool, target string) string {
	switch tool {
	case "write":
		return fmt.Sprintf("Write to file: %s", target)
	case "diff":
		return fmt.Sprintf("Apply diff to: %s", target)
	case "delete":
		return fmt.Sprintf("Delete file: %s", target)
	case "create":
		return fmt.Sprintf("Create file: %s", target)
	case "exec":
		if len(target) > 150 {
			target = target[:147] + "..."
		}
		return fmt.Sprintf("Execute command: %s", target)
	case "read":
		return fmt.Sprintf("Read file: %s", target)
	default:
		if target == "" {
			return fmt.Sprintf("Execute tool: %s", tool)
		}
		return fmt.Sprintf("Execute tool %s: %s", tool, target)
	}
}
