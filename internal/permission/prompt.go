package permission

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// LineReader reads one line of user input after showing prompt.
type LineReader func(ctx context.Context, prompt string) (string, error)

// PreviewRenderer formats a preview for display, e.g. with colours.
type PreviewRenderer func(preview string) string

// ParseAnswer maps a typed answer to a decision. Anything that is not an
// explicit yes is a no, including empty input.
func ParseAnswer(answer string) Decision {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return DecisionAllow
	case "a", "always":
		return DecisionAllowSession
	default:
		return DecisionDeny
	}
}

// NewTerminalPrompter returns a PromptHandler that writes the request to out
// and reads the answer with read.
func NewTerminalPrompter(out io.Writer, read LineReader, render PreviewRenderer) PromptHandler {
	return func(ctx context.Context, req *Request) (Decision, error) {
		if req.Preview != "" {
			preview := req.Preview
			if render != nil {
				preview = render(preview)
			}
			fmt.Fprintln(out, strings.TrimRight(preview, "\n"))
		}

		options := "[y/N]"
		if req.Tool != "" && !req.IsHunk() {
			options = "[y/N/a]"
		}
		answer, err := read(ctx, fmt.Sprintf("%s %s ", req.Title(), options))
		if err != nil {
			return DecisionDeny, err
		}
		return ParseAnswer(answer), nil
	}
}
