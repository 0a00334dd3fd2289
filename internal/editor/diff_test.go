package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDiff(t *testing.T) {
	fenced := "Here is the change:\n```diff\n--- a/x.go\n+++ b/x.go\n@@ -1 +1 @@\n-a\n+b\n```\nDone."
	assert.Equal(t, "--- a/x.go\n+++ b/x.go\n@@ -1 +1 @@\n-a\n+b", ExtractDiff(fenced))

	bare := "```\n@@ -1 +1 @@\n-a\n+b\n```"
	assert.Equal(t, "@@ -1 +1 @@\n-a\n+b", ExtractDiff(bare))

	code := "```\nfmt.Println()\n```"
	assert.Equal(t, code, ExtractDiff(code))

	assert.Equal(t, "@@ -1 +1 @@\n-a\n+b", ExtractDiff("\n@@ -1 +1 @@\n-a\n+b\n\n"))
}

func TestParseDiff(t *testing.T) {
	text := `--- a/main.go
+++ b/main.go
@@ -2,3 +2,4 @@ func main() {
 one
-two
+TWO
+three
 four
\ No newline at end of file
@@ -10 +11,0 @@
-gone
`
	fd, err := ParseDiff(text)
	require.NoError(t, err)
	assert.Equal(t, "main.go", fd.OldPath)
	assert.Equal(t, "main.go", fd.Path())
	require.Len(t, fd.Hunks, 2)

	h := fd.Hunks[0]
	assert.Equal(t, 2, h.OldStart)
	assert.Equal(t, 3, h.OldCount)
	assert.Equal(t, 4, h.NewCount)
	assert.Equal(t, []string{"one", "two", "four"}, h.OldLines())
	assert.Equal(t, []string{"one", "TWO", "three", "four"}, h.NewLines())

	// counts default to 1
	assert.Equal(t, 10, fd.Hunks[1].OldStart)
	assert.Equal(t, 1, fd.Hunks[1].OldCount)
	assert.Equal(t, 0, fd.Hunks[1].NewCount)

	added, removed := fd.Stats()
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, removed)
}

func TestParseDiffsMultipleFiles(t *testing.T) {
	text := "diff --git a/a.txt b/a.txt\n--- a/a.txt\n+++ b/a.txt\n@@ -1 +1 @@\n-a\n+A\n" +
		"diff --git a/b.txt b/b.txt\n--- a/b.txt\n+++ b/b.txt\n@@ -1 +1 @@\n-b\n+B\n"
	diffs, err := ParseDiffs(text)
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, "a.txt", diffs[0].Path())
	assert.Equal(t, "b.txt", diffs[1].Path())
}

func TestParseDiffNoHunks(t *testing.T) {
	for _, text := range []string{"", "just prose", "--- a/x\n+++ b/x\n", "@@ bogus @@\n+x"} {
		_, err := ParseDiff(text)
		assert.ErrorIs(t, err, ErrNoHunks, "text %q", text)
	}
}

func TestApplyHunksHighestFirst(t *testing.T) {
	lines := []string{"1", "2", "3", "4", "5", "6"}
	hunks := []Hunk{
		{OldStart: 2, OldCount: 1, Lines: []string{"-2", "+two", "+TWO"}},
		{OldStart: 5, OldCount: 2, Lines: []string{" 5", "-6"}},
	}

	out, err := ApplyHunks(lines, hunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "two", "TWO", "3", "4", "5"}, out)
	// input untouched
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, lines)
}

func TestApplyHunksPureInsertion(t *testing.T) {
	out, err := ApplyHunks([]string{"a", "b"}, []Hunk{{OldStart: 1, OldCount: 0, Lines: []string{"+x"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x", "b"}, out)

	out, err = ApplyHunks(nil, []Hunk{{OldStart: 0, OldCount: 0, Lines: []string{"+first"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, out)
}

func TestApplyHunksToleratesDrift(t *testing.T) {
	lines := []string{"header", "extra", "a", "b", "c"}
	// stated at line 2 but the context now starts at line 3
	out, err := ApplyHunks(lines, []Hunk{{OldStart: 2, Lines: []string{" a", "-b", "+B", " c"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "extra", "a", "B", "c"}, out)
}

func TestApplyHunksContextMismatch(t *testing.T) {
	lines := []string{"a", "b", "c"}
	_, err := ApplyHunks(lines, []Hunk{{OldStart: 2, Lines: []string{" a", "-x", "+y"}}})

	var mismatch *HunkMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Hunk)
	assert.Equal(t, "a", mismatch.Expected)
	assert.Contains(t, err.Error(), "does not match")
}

func TestApplyHunksLineCountProperty(t *testing.T) {
	base := make([]string, 40)
	for i := range base {
		base[i] = "line " + strings.Repeat("x", i)
	}

	tests := []struct {
		name  string
		hunks []Hunk
		k, m  int
	}{
		{"insert three", []Hunk{{OldStart: 10, Lines: []string{" " + base[9], "+n1", "+n2", "+n3"}}}, 3, 0},
		{"remove two", []Hunk{{OldStart: 5, Lines: []string{"-" + base[4], "-" + base[5]}}}, 0, 2},
		{"mixed", []Hunk{
			{OldStart: 1, Lines: []string{"-" + base[0], "+a", "+b"}},
			{OldStart: 30, Lines: []string{" " + base[29], "-" + base[30], "-" + base[31], "-" + base[32], "+c"}},
		}, 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ApplyHunks(base, tt.hunks)
			require.NoError(t, err)
			assert.Equal(t, len(base)+tt.k-tt.m, len(out))
		})
	}
}

func TestSplitJoinLines(t *testing.T) {
	lines, trailing := splitLines("a\nb\n")
	assert.Equal(t, []string{"a", "b"}, lines)
	assert.True(t, trailing)
	assert.Equal(t, "a\nb\n", joinLines(lines, trailing))

	lines, trailing = splitLines("a")
	assert.False(t, trailing)
	assert.Equal(t, "a", joinLines(lines, trailing))

	lines, _ = splitLines("")
	assert.Empty(t, lines)
}
