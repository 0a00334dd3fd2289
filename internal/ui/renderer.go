package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"azul/internal/highlight"
)

// DefaultObservationLines is how many lines of a tool result are shown.
const DefaultObservationLines = 12

// Renderer writes agent progress to a terminal. All output goes through it
// so streamed tokens, tool results and prompts never interleave mid-line.
type Renderer struct {
	out      io.Writer
	styles   *Styles
	hl       *highlight.Highlighter
	markdown *glamour.TermRenderer

	// MaxObservationLines caps the shown part of each tool result.
	MaxObservationLines int

	mu      sync.Mutex
	midLine bool // a token stream left the cursor after text
}

// NewRenderer creates a Renderer. Markdown rendering is only used with
// colored styles.
func NewRenderer(out io.Writer, styles *Styles, hl *highlight.Highlighter, markdown bool) *Renderer {
	r := &Renderer{
		out:                 out,
		styles:              styles,
		hl:                  hl,
		MaxObservationLines: DefaultObservationLines,
	}
	if markdown && styles.Color() {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// Styles returns the renderer styles.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Write implements io.Writer for prompts and other raw output.
func (r *Renderer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLineLocked()
	return r.out.Write(p)
}

func (r *Renderer) breakLineLocked() {
	if r.midLine {
		fmt.Fprintln(r.out)
		r.midLine = false
	}
}

func (r *Renderer) line(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLineLocked()
	fmt.Fprintln(r.out, s)
}

// Token prints streamed model text as is.
func (r *Renderer) Token(text string) {
	if text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, text)
	r.midLine = !strings.HasSuffix(text, "\n")
}

// EndStream terminates a token stream with a newline if needed.
func (r *Renderer) EndStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLineLocked()
}

// Print writes text followed by a newline.
func (r *Renderer) Print(text string) {
	r.line(strings.TrimRight(text, "\n"))
}

// Markdown renders text as terminal markdown when enabled.
func (r *Renderer) Markdown(text string) {
	if r.markdown == nil {
		r.Print(text)
		return
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		r.Print(text)
		return
	}
	r.Print(strings.Trim(out, "\n"))
}

// Banner prints a boxed title.
func (r *Renderer) Banner(text string) {
	r.line(r.styles.Banner.Render(text))
}

// Status prints a transient progress note.
func (r *Renderer) Status(text string) {
	r.line(r.styles.Status.Render("… " + text))
}

// Info prints an informational message.
func (r *Renderer) Info(text string) {
	r.line(r.styles.Dim.Render(MessageIcons["info"] + " " + text))
}

// Success prints a success message.
func (r *Renderer) Success(text string) {
	r.line(r.styles.Success.Render(MessageIcons["success"] + " " + text))
}

// Warning prints a warning.
func (r *Renderer) Warning(text string) {
	r.line(r.styles.Warning.Render(MessageIcons["warning"] + " " + text))
}

// Error prints an error.
func (r *Renderer) Error(text string) {
	r.line(r.styles.Error.Render(MessageIcons["error"] + " " + text))
}

// ToolCall prints a tool invocation with its arguments.
func (r *Renderer) ToolCall(name string, args map[string]any) {
	head := GetToolIcon(name) + " " + name
	if r.styles.Color() {
		head = r.styles.ToolCall.Foreground(GetToolIconColor(name)).Render(head)
	}
	if a := FormatArgs(args); a != "" {
		head += " " + r.styles.Dim.Render(a)
	}
	r.line(head)
}

// Observation prints the head of a tool result.
func (r *Renderer) Observation(text string, success bool) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	limit := r.MaxObservationLines
	if limit <= 0 {
		limit = DefaultObservationLines
	}

	var more int
	if len(lines) > limit {
		more = len(lines) - limit
		lines = lines[:limit]
	}

	style := r.styles.ToolResult
	if !success {
		style = r.styles.Error
	}

	var sb strings.Builder
	for i, l := range lines {
		prefix := "  │ "
		if i == 0 {
			prefix = "  └ "
		}
		sb.WriteString(style.Render(prefix + l))
		if i < len(lines)-1 {
			sb.WriteString("\n")
		}
	}
	if more > 0 {
		sb.WriteString("\n" + r.styles.Dim.Render(fmt.Sprintf("    … %d more lines", more)))
	}
	r.line(sb.String())
}

// Output prints one live line of a running command.
func (r *Renderer) Output(text string) {
	r.line(r.styles.Output.Render("  ┆ " + text))
}

// Plan prints plan progress.
func (r *Renderer) Plan(steps []string, current int, completed []bool) {
	var sb strings.Builder
	sb.WriteString(r.styles.PlanTitle.Render(fmt.Sprintf("Plan (%d/%d)", min(current+1, len(steps)), len(steps))))
	for i, step := range steps {
		sb.WriteString("\n")
		text := fmt.Sprintf("  %d. %s", i+1, step)
		switch {
		case i < len(completed) && completed[i]:
			sb.WriteString(r.styles.PlanDone.Render(MessageIcons["success"] + text))
		case i == current:
			sb.WriteString(r.styles.PlanActive.Render(MessageIcons["active"] + text))
		default:
			sb.WriteString(r.styles.PlanPending.Render(MessageIcons["pending"] + text))
		}
	}
	r.line(sb.String())
}

// Nudge prints the first line of corrective feedback sent to the model.
func (r *Renderer) Nudge(text string) {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	r.line(r.styles.Nudge.Render("↻ " + first))
}

// Diff colours a unified diff for permission previews.
func (r *Renderer) Diff(preview string) string {
	if r.hl == nil {
		return preview
	}
	return r.hl.Diff(preview)
}

// FormatArgs renders tool arguments on one line, keys sorted, long values
// shortened.
func FormatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := strings.ReplaceAll(fmt.Sprint(args[k]), "\n", "⏎")
		if len([]rune(v)) > 60 {
			v = string([]rune(v)[:57]) + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
