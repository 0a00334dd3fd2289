package config

import (
	"fmt"
	"strings"
)

// DetectProvider determines the provider from a model name. Anything that
// is not a Gemini model is served by Ollama.
func DetectProvider(modelName string) string {
	lower := strings.ToLower(modelName)
	if strings.HasPrefix(lower, "gemini") || strings.HasPrefix(lower, "models/gemini") {
		return ProviderGemini
	}
	return ProviderOllama
}

// NormalizeConfig ensures configuration is consistent: the preset is applied,
// provider names are lower case and an empty provider is derived from the
// model name.
func NormalizeConfig(cfg *Config) error {
	if cfg.Model.Preset != "" {
		if !cfg.ApplyPreset(cfg.Model.Preset) {
			return fmt.Errorf("unknown preset: %s (available: %s)",
				cfg.Model.Preset, strings.Join(ListPresets(), ", "))
		}
	}

	cfg.Model.Provider = strings.ToLower(strings.TrimSpace(cfg.Model.Provider))
	if cfg.Model.Provider == "" || cfg.Model.Provider == "auto" {
		cfg.Model.Provider = DetectProvider(cfg.Model.Name)
	}
	cfg.RAG.EmbeddingProvider = strings.ToLower(strings.TrimSpace(cfg.RAG.EmbeddingProvider))
	if cfg.RAG.EmbeddingProvider == "" {
		cfg.RAG.EmbeddingProvider = cfg.Model.Provider
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return nil
}
