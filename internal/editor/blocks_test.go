package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlocks(t *testing.T) {
	response := "Sure.\n```diff\n--- a/src/x.go\n+++ b/src/x.go\n@@ -1 +1 @@\n-a\n+b\n```\n" +
		"```file:new.txt\nhello\n```\n```delete: old.txt```\n```go\nfmt.Println()\n```"

	blocks, prose := ParseBlocks(response)
	require.Len(t, blocks, 3)

	assert.Equal(t, BlockDiff, blocks[0].Kind)
	assert.Equal(t, "src/x.go", blocks[0].Path)
	assert.Contains(t, blocks[0].Content, "@@ -1 +1 @@")

	assert.Equal(t, BlockFile, blocks[1].Kind)
	assert.Equal(t, "new.txt", blocks[1].Path)
	assert.Equal(t, "hello\n", blocks[1].Content)

	assert.Equal(t, BlockDelete, blocks[2].Kind)
	assert.Equal(t, "old.txt", blocks[2].Path)

	assert.Equal(t, "Sure.\n\n\n\n```go\nfmt.Println()\n```", prose)
}

func TestParseBlocksDiffWithoutPath(t *testing.T) {
	blocks, prose := ParseBlocks("```diff\n@@ -1 +1 @@\n-a\n+b\n```")
	assert.Empty(t, blocks)
	assert.Contains(t, prose, "@@ -1 +1 @@")
}

func TestIsLikelyFalsePositive(t *testing.T) {
	one := []Block{{Kind: BlockFile, Path: "a.txt"}}

	tests := []struct {
		name   string
		prose  string
		blocks []Block
		prompt string
		want   bool
	}{
		{"no blocks", "for example", nil, "explain", false},
		{"example phrase", "For example, a file looks like this", one, "create a file", true},
		{"question without action", "", one, "what is a diff?", true},
		{"question with action", "", one, "how do I create hello.txt?", false},
		{"plain action", "Done.", one, "create hello.txt", false},
		{"long chatter", "This file defines the entry point of the program and wires it all up.", one, "hello there", true},
		{"action allows longer text", "This file defines the entry point of the program and wires it all up.", one, "write main.go", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLikelyFalsePositive(tt.prose, tt.blocks, tt.prompt))
		})
	}
}

func TestPreview(t *testing.T) {
	text, added, removed := Preview("a.txt", "one\ntwo\nthree\n", "one\n2\nthree\nfour\n")
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "--- a/a.txt\n+++ b/a.txt\n one\n-two\n+2\n three\n+four\n", text)

	text, added, _ = Preview("n.txt", "", "x\n")
	assert.Equal(t, 1, added)
	assert.Contains(t, text, "--- /dev/null")
}

func TestCompactPreview(t *testing.T) {
	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	next := "1\n2\n3\n4\n5\n6\n7\n8\n9\nten\n"
	out := CompactPreview("n.txt", old, next, 2)
	assert.Contains(t, out, "@@ 7 unchanged lines @@")
	assert.Contains(t, out, " 8\n 9\n-10\n+ten\n")
}
