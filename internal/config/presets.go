package config

import "sort"

// ModelPreset defines a model preset configuration.
type ModelPreset struct {
	Provider          string
	Name              string
	Temperature       float32
	MaxOutputTokens   int32
	EmbeddingProvider string
	EmbeddingModel    string
}

// ModelPresets contains predefined model configurations.
var ModelPresets = map[string]ModelPreset{
	"local": {
		Provider:          ProviderOllama,
		Name:              DefaultModel,
		Temperature:       0.7,
		MaxOutputTokens:   DefaultMaxTokens,
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    DefaultEmbeddingModel,
	},
	"local-small": {
		Provider:          ProviderOllama,
		Name:              "qwen2.5-coder:1.5b",
		Temperature:       0.5,
		MaxOutputTokens:   DefaultMaxTokens,
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    DefaultEmbeddingModel,
	},
	"gemini-flash": {
		Provider:          ProviderGemini,
		Name:              "gemini-2.5-flash",
		Temperature:       1.0,
		MaxOutputTokens:   8192,
		EmbeddingProvider: ProviderGemini,
		EmbeddingModel:    "text-embedding-004",
	},
	"gemini-pro": {
		Provider:          ProviderGemini,
		Name:              "gemini-2.5-pro",
		Temperature:       1.0,
		MaxOutputTokens:   8192,
		EmbeddingProvider: ProviderGemini,
		EmbeddingModel:    "text-embedding-004",
	},
}

// ApplyPreset applies a preset to the configuration. It returns false for
// an unknown preset.
func (c *Config) ApplyPreset(preset string) bool {
	p, ok := ModelPresets[preset]
	if !ok {
		return false
	}
	c.Model.Provider = p.Provider
	c.Model.Name = p.Name
	c.Model.Temperature = p.Temperature
	c.Model.MaxTokens = p.MaxOutputTokens
	c.RAG.EmbeddingProvider = p.EmbeddingProvider
	c.RAG.EmbeddingModel = p.EmbeddingModel
	return true
}

// IsValidPreset checks if a preset name is valid.
func IsValidPreset(preset string) bool {
	_, ok := ModelPresets[preset]
	return ok
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(ModelPresets))
	for name := range ModelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
