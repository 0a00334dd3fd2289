package semantic

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// Chunk is a contiguous excerpt of a source file used as a retrieval unit.
type Chunk struct {
	ID          string
	FilePath    string // project-relative, slash separated
	StartLine   int    // 1-based, inclusive
	EndLine     int    // 1-based, inclusive
	Language    string
	ChunkType   string
	ContentHash string
	Content     string
}

// Chunk types.
const (
	ChunkFunction    = "function"
	ChunkClass       = "class"
	ChunkDeclaration = "declaration"
	ChunkBlock       = "block"
	ChunkWindow      = "window"
)

// ContentHash returns the md5 hex digest of content.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives the stable identifier of a chunk. It changes iff the path,
// the line range or the content changes.
func ChunkID(path string, start, end int, contentHash string) string {
	return ContentHash(fmt.Sprintf("%s:%d:%d:%s", path, start, end, contentHash))
}

// newChunk fills in the hash and ID.
func newChunk(path string, start, end int, lang, kind, content string) Chunk {
	hash := ContentHash(content)
	return Chunk{
		ID:          ChunkID(path, start, end, hash),
		FilePath:    path,
		StartLine:   start,
		EndLine:     end,
		Language:    lang,
		ChunkType:   kind,
		ContentHash: hash,
		Content:     content,
	}
}

// EstimateTokens approximates the token count of text as ceil(len/4).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

var languages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
}

// DetectLanguage maps a file extension to a language name, "text" if unknown.
func DetectLanguage(path string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}

// ProjectID derives the on-disk index name for a project root.
func ProjectID(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return hex.EncodeToString(sum[:8])
}
