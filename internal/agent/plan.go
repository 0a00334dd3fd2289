package agent

import (
	"fmt"
	"regexp"
	"strings"
)

var planLine = regexp.MustCompile(`^\s*(\d+)\.\s+(.+)$`)

// Plan is the numbered step list a model announced on its first turn.
type Plan struct {
	Steps     []string
	Current   int
	completed map[int]bool
}

// PlanSnapshot is an immutable copy of a plan's state for display.
type PlanSnapshot struct {
	Steps     []string
	Current   int
	Completed []bool
}

// DetectPlan returns the numbered list in text, or nil when it has fewer
// than two items.
func DetectPlan(text string) *Plan {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		m := planLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if step := strings.TrimSpace(m[2]); step != "" {
			steps = append(steps, step)
		}
	}
	if len(steps) < 2 {
		return nil
	}
	return &Plan{Steps: steps, completed: make(map[int]bool)}
}

// Advance marks the current step completed and moves to the next one,
// never past the last step.
func (p *Plan) Advance() {
	if p.Current >= len(p.Steps) {
		return
	}
	p.completed[p.Current] = true
	p.Current = min(p.Current+1, len(p.Steps)-1)
}

// Done reports whether step i is completed.
func (p *Plan) Done(i int) bool {
	return p.completed[i]
}

// Snapshot copies the plan state.
func (p *Plan) Snapshot() *PlanSnapshot {
	s := &PlanSnapshot{
		Steps:     append([]string(nil), p.Steps...),
		Current:   p.Current,
		Completed: make([]bool, len(p.Steps)),
	}
	for i := range p.Steps {
		s.Completed[i] = p.completed[i]
	}
	return s
}

// Reminder renders the plan for inclusion in feedback messages.
func (p *Plan) Reminder() string {
	var sb strings.Builder
	sb.WriteString("\n\nYour plan was:\n")
	for i, step := range p.Steps {
		status := "[pending]"
		if p.completed[i] {
			status = "✓"
		}
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, step, status)
	}
	fmt.Fprintf(&sb, "\nYou are currently on step %d of %d.", p.Current+1, len(p.Steps))
	return sb.String()
}
