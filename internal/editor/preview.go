package editor

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Preview renders a line diff between oldContent and newContent with
// ---/+++ headers, and returns the added and removed line counts.
func Preview(path, oldContent, newContent string) (string, int, int) {
	dmp := diffmatchpatch.New()

	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var sb strings.Builder
	oldLabel := "a/" + path
	if oldContent == "" {
		oldLabel = "/dev/null"
	}
	fmt.Fprintf(&sb, "--- %s\n+++ b/%s\n", oldLabel, path)

	added, removed := 0, 0
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		for i, line := range lines {
			// skip the empty element after a trailing newline
			if i == len(lines)-1 && line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				sb.WriteString(" " + line + "\n")
			case diffmatchpatch.DiffDelete:
				sb.WriteString("-" + line + "\n")
				removed++
			case diffmatchpatch.DiffInsert:
				sb.WriteString("+" + line + "\n")
				added++
			}
		}
	}
	return sb.String(), added, removed
}

// CompactPreview is Preview with runs of unchanged lines longer than
// 2*context collapsed into a marker.
func CompactPreview(path, oldContent, newContent string, context int) string {
	full, _, _ := Preview(path, oldContent, newContent)
	lines := strings.Split(strings.TrimSuffix(full, "\n"), "\n")
	if len(lines) <= 2 {
		return full
	}

	var sb strings.Builder
	sb.WriteString(lines[0] + "\n" + lines[1] + "\n")
	body := lines[2:]

	for i := 0; i < len(body); {
		if !strings.HasPrefix(body[i], " ") {
			sb.WriteString(body[i] + "\n")
			i++
			continue
		}
		j := i
		for j < len(body) && strings.HasPrefix(body[j], " ") {
			j++
		}
		run := body[i:j]
		keepHead, keepTail := context, context
		if i == 0 {
			keepHead = 0
		}
		if j == len(body) {
			keepTail = 0
		}
		if len(run) <= keepHead+keepTail+1 {
			for _, l := range run {
				sb.WriteString(l + "\n")
			}
		} else {
			for _, l := range run[:keepHead] {
				sb.WriteString(l + "\n")
			}
			fmt.Fprintf(&sb, "@@ %d unchanged lines @@\n", len(run)-keepHead-keepTail)
			for _, l := range run[len(run)-keepTail:] {
				sb.WriteString(l + "\n")
			}
		}
		i = j
	}
	return sb.String()
}
