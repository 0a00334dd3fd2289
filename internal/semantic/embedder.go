package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"
)

// ErrNoEmbedding is returned when the provider answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one entry per input. A nil entry means that
	// text could not be embedded; err is set only when the whole call failed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

const (
	DefaultOllamaEmbeddingModel = "nomic-embed-text"
	DefaultGeminiEmbeddingModel = "text-embedding-004"
)

// OllamaEmbedder generates embeddings with a local Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder creates an embedder on an existing Ollama API client.
func NewOllamaEmbedder(client *api.Client, model string) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaEmbeddingModel
	}
	return &OllamaEmbedder{client: client, model: model}
}

func (e *OllamaEmbedder) Model() string {
	return e.model
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed (%s): %w", e.model, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, ErrNoEmbedding
	}
	return resp.Embeddings[0], nil
}

// EmbedBatch embeds texts in one request and falls back to one request per
// text when the batch call fails, so a single bad input only loses itself.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: texts})
	if err == nil && len(resp.Embeddings) == len(texts) {
		return resp.Embeddings, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := make([][]float32, len(texts))
	failed := 0
	var lastErr error
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			lastErr = err
			continue
		}
		out[i] = vec
	}
	if failed == len(texts) {
		return nil, lastErr
	}
	return out, nil
}

// GeminiEmbedder generates embeddings using the Gemini API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder on an existing genai client.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	return &GeminiEmbedder{
		client: client,
		model:  model,
	}
}

func (e *GeminiEmbedder) Model() string {
	return e.model
}

// Embed generates an embedding for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, ErrNoEmbedding
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
// Splits into groups of maxBatchSize items to avoid API limits.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const maxBatchSize = 20

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		embeddings, err := e.embedBatchSingle(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end, err)
		}
		all = append(all, embeddings...)
	}
	return all, nil
}

// embedBatchSingle sends a single batch of texts to the embedding API.
func (e *GeminiEmbedder) embedBatchSingle(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: text}},
		}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding API error: %w", err)
	}

	// keep the 1:1 pairing even if the API returns fewer vectors
	embeddings := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if i < len(embeddings) && emb != nil {
			embeddings[i] = emb.Values
		}
	}
	return embeddings, nil
}
