package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfile(t *testing.T) {
	tests := []struct {
		model  string
		family string
		small  bool
		coding bool
	}{
		{"qwen2.5-coder", "qwen", false, true},
		{"qwen2.5-coder:1.5b", "qwen", true, true},
		{"llama3.2:latest", "llama", true, false},
		{"llama3.1:8b", "llama", true, false},
		{"llama3.1:70b", "llama", false, false},
		{"gemini-2.5-flash", "gemini", false, false},
		{"models/gemini-2.5-pro", "gemini", false, false},
		{"my-finetune", "unknown", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p := Profile(tt.model)
			assert.Equal(t, tt.family, p.Family)
			assert.Equal(t, tt.small, p.IsSmall)
			assert.Equal(t, tt.coding, p.IsCoding)
			assert.Greater(t, p.ContextWindow, 0)
		})
	}
}

func TestPromptHints(t *testing.T) {
	assert.Empty(t, PromptHints("gemini-2.5-pro"))
	assert.Contains(t, PromptHints("qwen2.5-coder"), "Prefer diff")
	assert.Contains(t, PromptHints("phi3"), "Keep replies short")
}
