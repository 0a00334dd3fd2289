package app

import (
	"context"
	"fmt"

	"azul/internal/client"
	"azul/internal/config"
	"azul/internal/semantic"

	"google.golang.org/genai"
)

// newEmbedder creates the embedding backend. When the chat client talks to
// the same provider its API client is shared.
func newEmbedder(ctx context.Context, cfg *config.Config, chat client.Client) (semantic.Embedder, error) {
	model := cfg.RAG.EmbeddingModel

	switch cfg.RAG.EmbeddingProvider {
	case config.ProviderOllama, "":
		if oc, ok := chat.(*client.OllamaClient); ok {
			return semantic.NewOllamaEmbedder(oc.API(), model), nil
		}
		if model == "" {
			model = semantic.DefaultOllamaEmbeddingModel
		}
		oc, err := client.NewOllamaClient(client.OllamaConfig{
			BaseURL:     cfg.Model.OllamaHost,
			APIKey:      cfg.Model.OllamaKey,
			Model:       model,
			HTTPTimeout: cfg.Model.HTTPTimeout,
		})
		if err != nil {
			return nil, err
		}
		return semantic.NewOllamaEmbedder(oc.API(), model), nil

	case config.ProviderGemini:
		if gc, ok := chat.(*client.GeminiClient); ok {
			return semantic.NewGeminiEmbedder(gc.API(), model), nil
		}
		if cfg.Model.APIKey == "" {
			return nil, config.ErrMissingAPIKey
		}
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  cfg.Model.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return semantic.NewGeminiEmbedder(gc, model), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.RAG.EmbeddingProvider)
	}
}
