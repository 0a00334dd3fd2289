package editor

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxDrift is how far from its stated position a hunk may be found.
const maxDrift = 30

var (
	// ErrNoHunks is returned when diff text contains no parsable hunk.
	ErrNoHunks = errors.New("no valid diff hunks found")

	hunkHeaderRe = regexp.MustCompile(`^@@\s+-(\d+)(?:,(\d+))?\s+\+(\d+)(?:,(\d+))?\s+@@`)
	diffFenceRe  = regexp.MustCompile("(?s)```(?:diff|patch)[ \\t]*\\n(.*?)```")
	plainFenceRe = regexp.MustCompile("(?s)```[ \\t]*\\n(.*?)```")
)

// HunkMismatchError reports a hunk whose context does not match the file.
type HunkMismatchError struct {
	Hunk     int // 1-based index in the diff
	Line     int // 1-based file line where the mismatch was found
	Expected string
	Actual   string
}

func (e *HunkMismatchError) Error() string {
	if e.Line <= 0 {
		return fmt.Sprintf("hunk %d does not match file content: expected %q past end of file", e.Hunk, e.Expected)
	}
	return fmt.Sprintf("hunk %d does not match file content at line %d: expected %q, found %q",
		e.Hunk, e.Line, e.Expected, e.Actual)
}

// Hunk is one block of a unified diff.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []string // body lines including their ' ', '-', '+' prefix
}

// Header renders the @@ line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// String renders the hunk as diff text.
func (h Hunk) String() string {
	var sb strings.Builder
	sb.WriteString(h.Header())
	sb.WriteByte('\n')
	for _, l := range h.Lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// OldLines returns the context and removed lines the hunk expects in the file.
func (h Hunk) OldLines() []string {
	var out []string
	for _, l := range h.Lines {
		switch {
		case l == "":
			out = append(out, "")
		case l[0] == ' ' || l[0] == '-':
			out = append(out, l[1:])
		}
	}
	return out
}

// NewLines returns the context and added lines that replace OldLines.
func (h Hunk) NewLines() []string {
	var out []string
	for _, l := range h.Lines {
		switch {
		case l == "":
			out = append(out, "")
		case l[0] == ' ' || l[0] == '+':
			out = append(out, l[1:])
		}
	}
	return out
}

// Added counts '+' lines.
func (h Hunk) Added() int {
	return countPrefix(h.Lines, '+')
}

// Removed counts '-' lines.
func (h Hunk) Removed() int {
	return countPrefix(h.Lines, '-')
}

func countPrefix(lines []string, p byte) int {
	n := 0
	for _, l := range lines {
		if l != "" && l[0] == p {
			n++
		}
	}
	return n
}

// FileDiff is the parsed diff for a single file.
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// Path returns the path the diff applies to, preferring the new name.
func (d *FileDiff) Path() string {
	if d.NewPath != "" && d.NewPath != "/dev/null" {
		return d.NewPath
	}
	if d.OldPath == "/dev/null" {
		return ""
	}
	return d.OldPath
}

// Stats returns the total added and removed line counts.
func (d *FileDiff) Stats() (added, removed int) {
	for _, h := range d.Hunks {
		added += h.Added()
		removed += h.Removed()
	}
	return added, removed
}

// ExtractDiff returns the diff inside a ```diff fence, or a bare fence whose
// body looks like a diff. Text without a fence is returned trimmed.
func ExtractDiff(text string) string {
	if m := diffFenceRe.FindStringSubmatch(text); m != nil {
		return strings.Trim(m[1], "\n")
	}
	if m := plainFenceRe.FindStringSubmatch(text); m != nil {
		body := strings.TrimLeft(m[1], "\n")
		if strings.HasPrefix(body, "---") || strings.HasPrefix(body, "@@") || strings.HasPrefix(body, "diff ") {
			return strings.Trim(body, "\n")
		}
	}
	return strings.Trim(text, "\n")
}

// ParseDiff parses diff text and returns the first file's diff. Hunks that
// appear before any file header belong to an unnamed file.
func ParseDiff(text string) (*FileDiff, error) {
	diffs, err := ParseDiffs(text)
	if err != nil {
		return nil, err
	}
	return &diffs[0], nil
}

// ParseDiffs parses diff text into one FileDiff per file header.
func ParseDiffs(text string) ([]FileDiff, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(text, "\n \t"), "\n")

	var diffs []FileDiff
	cur := &FileDiff{}
	flush := func() {
		if len(cur.Hunks) > 0 {
			diffs = append(diffs, *cur)
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			cur = &FileDiff{}
		case strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			if len(cur.Hunks) > 0 {
				flush()
				cur = &FileDiff{}
			}
			cur.OldPath = headerPath(line[4:])
			cur.NewPath = headerPath(lines[i+1][4:])
			i++
		case strings.HasPrefix(line, "@@"):
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			h := Hunk{
				OldStart: atoi(m[1], 0),
				OldCount: atoi(m[2], 1),
				NewStart: atoi(m[3], 0),
				NewCount: atoi(m[4], 1),
			}
			for i+1 < len(lines) && isBodyLine(lines, i+1) {
				i++
				if strings.HasPrefix(lines[i], `\`) {
					continue
				}
				h.Lines = append(h.Lines, lines[i])
			}
			if len(h.Lines) > 0 {
				cur.Hunks = append(cur.Hunks, h)
			}
		}
	}
	flush()

	if len(diffs) == 0 {
		return nil, ErrNoHunks
	}
	return diffs, nil
}

// isBodyLine reports whether lines[i] continues a hunk body.
func isBodyLine(lines []string, i int) bool {
	line := lines[i]
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "diff --git ") {
		return false
	}
	if strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ") {
		return false
	}
	switch line[0] {
	case ' ', '+', '-', '\\':
		return true
	}
	return false
}

func headerPath(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		s = s[2:]
	}
	return s
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ApplyHunks applies hunks to lines and returns the new lines. Hunks are
// applied from the highest start line to the lowest so earlier line numbers
// stay valid. Each hunk's context and removed lines must match the file at
// its stated position, or within a small drift of it; otherwise a
// *HunkMismatchError is returned and lines is left untouched.
func ApplyHunks(lines []string, hunks []Hunk) ([]string, error) {
	if len(hunks) == 0 {
		return nil, ErrNoHunks
	}

	type indexed struct {
		hunk Hunk
		n    int
	}
	order := make([]indexed, len(hunks))
	for i, h := range hunks {
		order[i] = indexed{h, i + 1}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].hunk.OldStart > order[b].hunk.OldStart
	})

	out := append([]string(nil), lines...)
	for _, ih := range order {
		h := ih.hunk
		old := h.OldLines()

		pos := h.OldStart - 1
		if len(old) == 0 {
			// pure insertion: "-N,0" means after line N
			pos = h.OldStart
		}
		if pos < 0 {
			pos = 0
		}
		if pos > len(out) {
			pos = len(out)
		}

		at, err := locate(out, old, pos, ih.n)
		if err != nil {
			return nil, err
		}

		next := make([]string, 0, len(out)-len(old)+len(h.NewLines()))
		next = append(next, out[:at]...)
		next = append(next, h.NewLines()...)
		next = append(next, out[at+len(old):]...)
		out = next
	}
	return out, nil
}

// locate finds where old occurs in lines, starting at pos and searching
// outward up to maxDrift lines.
func locate(lines, old []string, pos, hunkNum int) (int, error) {
	if len(old) == 0 {
		return pos, nil
	}
	if matchesAt(lines, old, pos) {
		return pos, nil
	}
	for d := 1; d <= maxDrift; d++ {
		if matchesAt(lines, old, pos-d) {
			return pos - d, nil
		}
		if matchesAt(lines, old, pos+d) {
			return pos + d, nil
		}
	}

	// report the first differing line at the stated position
	for i, want := range old {
		if pos+i >= len(lines) {
			return 0, &HunkMismatchError{Hunk: hunkNum, Expected: want}
		}
		if !sameLine(lines[pos+i], want) {
			return 0, &HunkMismatchError{Hunk: hunkNum, Line: pos + i + 1, Expected: want, Actual: lines[pos+i]}
		}
	}
	return 0, &HunkMismatchError{Hunk: hunkNum, Line: pos + 1}
}

func matchesAt(lines, old []string, pos int) bool {
	if pos < 0 || pos+len(old) > len(lines) {
		return false
	}
	for i, want := range old {
		if !sameLine(lines[pos+i], want) {
			return false
		}
	}
	return true
}

// sameLine compares ignoring trailing whitespace.
func sameLine(a, b string) bool {
	return strings.TrimRight(a, " \t\r") == strings.TrimRight(b, " \t\r")
}

// splitLines splits content into lines and reports whether it ended with a newline.
func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n"), trailing
}

// joinLines is the inverse of splitLines.
func joinLines(lines []string, trailing bool) string {
	if len(lines) == 0 {
		return ""
	}
	s := strings.Join(lines, "\n")
	if trailing {
		s += "\n"
	}
	return s
}
