package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainLeavesTextAlone(t *testing.T) {
	h := New("monokai", false)
	assert.True(t, h.Plain())

	code := "package main\n\nfunc main() {}\n"
	assert.Equal(t, code, h.Highlight(code, "go"))

	diff := "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-old\n+new"
	assert.Equal(t, diff, h.Diff(diff))
}

func TestHighlightEmitsEscapes(t *testing.T) {
	h := New("", true)
	out := h.Highlight("func main() {}", "go")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "main")

	// unknown styles and languages fall back instead of failing
	assert.Contains(t, New("no-such-style", true).Highlight("x = 1", "no-such-lang"), "x")
}

func TestFileNumbersLines(t *testing.T) {
	h := New("monokai", false)
	lines := make([]byte, 0)
	for i := 0; i < 10; i++ {
		lines = append(lines, "x\n"...)
	}
	out := h.File("notes.txt", string(lines))
	assert.Contains(t, out, " 1 │ x\n")
	assert.Contains(t, out, "10 │ x")
	assert.NotContains(t, out, "11 │")
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"main.go":         "go",
		"app/models.PY":   "python",
		"Dockerfile":      "docker",
		"sub/go.mod":      "gomod",
		"fix.patch":       "diff",
		"data.unknownext": "text",
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectLanguage(name), name)
	}
}
