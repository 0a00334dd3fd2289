package undo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the operation that produced a change.
type Kind string

const (
	KindWrite  Kind = "write"
	KindDiff   Kind = "diff"
	KindCreate Kind = "create"
	KindDelete Kind = "delete"
)

// FileChange represents a single file modification.
type FileChange struct {
	ID         string    `json:"id"`
	FilePath   string    `json:"file_path"`
	Kind       Kind      `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	OldContent []byte    `json:"old_content"` // nil for new files
	NewContent []byte    `json:"new_content"` // nil for deletions
	WasNew     bool      `json:"was_new"`     // file did not exist before
	Backup     string    `json:"backup,omitempty"`
}

// NewFileChange creates a FileChange with a generated ID.
func NewFileChange(filePath string, kind Kind, oldContent, newContent []byte, wasNew bool) *FileChange {
	return &FileChange{
		ID:         uuid.New().String()[:8],
		FilePath:   filePath,
		Kind:       kind,
		Timestamp:  time.Now(),
		OldContent: oldContent,
		NewContent: newContent,
		WasNew:     wasNew,
	}
}

// Summary returns a human-readable summary of the change.
func (c *FileChange) Summary() string {
	switch {
	case c.Kind == KindDelete:
		return "deleted " + c.FilePath
	case c.WasNew:
		return "created " + c.FilePath
	default:
		return fmt.Sprintf("modified %s (%+d bytes)", c.FilePath, c.SizeChange())
	}
}

// SizeChange returns the size difference in bytes.
func (c *FileChange) SizeChange() int {
	return len(c.NewContent) - len(c.OldContent)
}
