package agent

import (
	"regexp"
	"strings"
)

// Feedback messages sent to the model when a turn made no progress.
const (
	feedbackPrefix = "[SYSTEM-FEEDBACK] "

	repeatFeedback = feedbackPrefix + "You are repeating yourself. Your last action failed. " +
		"Re-examine your plan and the last tool output, then decide on a new course of action. " +
		"If you cannot proceed, you must inform the user why."

	stalledFeedback = feedbackPrefix + "Your previous turn was incomplete. " +
		"You stated an intent to act (e.g., '%s...') but did not provide a `<tool_code>` block. " +
		"You MUST provide the tool call to proceed. " +
		"For example, if you said you will delete files, first use <tool_code>tree()</tool_code> to see what exists, " +
		"then use <tool_code>delete('filename')</tool_code> for each file."

	genericFeedback = feedbackPrefix + "Your previous turn did not result in an action or task completion. " +
		"Please re-evaluate your plan and provide the next `<tool_code>` action."
)

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns the word-set similarity of a and b in [0, 1]. Texts
// without words are never similar to anything.
func Jaccard(a, b string) float64 {
	sa, sb := wordSet(a), wordSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// isRepeat reports whether response is at least threshold similar to any
// of the recent responses.
func isRepeat(response string, recent []string, threshold float64) bool {
	if strings.TrimSpace(response) == "" {
		return false
	}
	for _, prev := range recent {
		if Jaccard(response, prev) >= threshold {
			return true
		}
	}
	return false
}

// stalledIntent returns the first phrase in response that announces an
// action, or "".
func stalledIntent(response string, phrases []string) string {
	lower := strings.ToLower(response)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

// hasCompletion reports whether response contains a completion marker.
func hasCompletion(response string, markers []string) bool {
	lower := strings.ToLower(response)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// stripMarkers removes completion markers that are tags, leaving prose.
func stripMarkers(response string, markers []string) string {
	out := response
	for _, m := range markers {
		if !strings.HasPrefix(m, "<") {
			continue
		}
		out = regexp.MustCompile(`(?i)`+regexp.QuoteMeta(m)).ReplaceAllLiteralString(out, "")
	}
	return strings.TrimSpace(out)
}
