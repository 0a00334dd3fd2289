package client

import (
	"context"
	"fmt"

	"azul/internal/config"
	"azul/internal/logging"
)

// NewClient creates a client for the configured provider.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	logging.Debug("creating client",
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Name)

	switch cfg.Model.Provider {
	case config.ProviderOllama, "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:     cfg.Model.OllamaHost,
			APIKey:      cfg.Model.OllamaKey,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
			HTTPTimeout: cfg.Model.HTTPTimeout,
			MaxRetries:  cfg.Model.MaxRetries,
			RetryDelay:  cfg.Model.RetryDelay,
		})
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.Model.APIKey,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
			MaxRetries:  cfg.Model.MaxRetries,
			RetryDelay:  cfg.Model.RetryDelay,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q: expected %s or %s",
			cfg.Model.Provider, config.ProviderOllama, config.ProviderGemini)
	}
}
