package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"azul/internal/logging"

	"google.golang.org/genai"
)

// GeminiConfig holds configuration for the Gemini API client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
	MaxRetries  int
	RetryDelay  time.Duration
}

// GeminiClient wraps the Google Gemini API.
type GeminiClient struct {
	client         *genai.Client
	model          string
	config         GeminiConfig
	statusCallback StatusCallback
	mu             sync.RWMutex
}

// streamIdleTimeout fails a stream that stops producing data.
const streamIdleTimeout = 60 * time.Second

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key required.\n\nGet your API key at: https://aistudio.google.com/apikey\n\nThen set GEMINI_API_KEY or model.api_key in config.yaml")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 1 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logging.Debug("created Gemini client", "model", config.Model)

	return &GeminiClient{
		client: client,
		model:  config.Model,
		config: config,
	}, nil
}

// API returns the underlying genai client (shared with the embedder).
func (c *GeminiClient) API() *genai.Client {
	return c.client
}

// SetStatusCallback sets the callback for status updates during operations.
func (c *GeminiClient) SetStatusCallback(cb StatusCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCallback = cb
}

// Stream sends the conversation and returns a streaming response.
func (c *GeminiClient) Stream(ctx context.Context, messages []Message, opts Options) (*StreamingResponse, error) {
	contents, system := toGeminiContents(messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	genConfig := c.generateConfig(opts)
	if system != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	cfg := RetryConfig{MaxRetries: c.config.MaxRetries, RetryDelay: c.config.RetryDelay, MaxDelay: 30 * time.Second}
	resp, err := withRetry(ctx, cfg, "gemini", IsRetryableError, c.notifyRetry, func() (*StreamingResponse, error) {
		return c.doGenerateContentStream(ctx, contents, genConfig)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Complete sends the conversation and waits for the full response text.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	return completeVia(ctx, c, messages, opts)
}

func (c *GeminiClient) generateConfig(opts Options) *genai.GenerateContentConfig {
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     Ptr(temperature),
		MaxOutputTokens: maxTokens,
	}
	if len(opts.Stop) > 0 {
		genConfig.StopSequences = opts.Stop
	}
	return genConfig
}

func (c *GeminiClient) notifyRetry(attempt int, delay time.Duration, err error) {
	c.mu.RLock()
	cb := c.statusCallback
	c.mu.RUnlock()
	if cb != nil {
		cb.OnRetry(attempt, c.config.MaxRetries, delay, retryReason(err))
	}
}

// toGeminiContents maps provider-neutral messages onto Gemini roles.
// System messages are folded into the system instruction; observations are
// sent as user turns. Consecutive turns with the same role are merged.
func toGeminiContents(messages []Message) ([]*genai.Content, string) {
	var system []string
	var contents []*genai.Content
	var lastRole genai.Role

	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		var role genai.Role
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
			continue
		case RoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}

		if len(contents) > 0 && role == lastRole {
			prev := contents[len(contents)-1]
			prev.Parts = append(prev.Parts, genai.NewPartFromText("\n\n"+m.Content))
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
		lastRole = role
	}

	return contents, strings.Join(system, "\n\n")
}

// doGenerateContentStream performs a single streaming request attempt.
func (c *GeminiClient) doGenerateContentStream(ctx context.Context, contents []*genai.Content, genConfig *genai.GenerateContentConfig) (*StreamingResponse, error) {
	c.mu.RLock()
	model := c.model
	statusCb := c.statusCallback
	c.mu.RUnlock()

	iter := c.client.Models.GenerateContentStream(ctx, model, contents, genConfig)

	raw := make(chan ResponseChunk, 10)

	go func() {
		defer close(raw)

		type iterResult struct {
			resp *genai.GenerateContentResponse
			err  error
		}
		iterCh := make(chan iterResult)

		go func() {
			defer close(iterCh)
			for resp, err := range iter {
				select {
				case iterCh <- iterResult{resp, err}:
				case <-ctx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}()

		idleTimer := time.NewTimer(streamIdleTimeout)
		defer idleTimer.Stop()

		for {
			select {
			case <-ctx.Done():
				select {
				case raw <- ResponseChunk{Error: ctx.Err(), Done: true}:
				default:
				}
				return

			case <-idleTimer.C:
				logging.Warn("stream idle timeout exceeded", "timeout", streamIdleTimeout)
				select {
				case raw <- ResponseChunk{
					Error: fmt.Errorf("stream idle timeout: no data received for %v", streamIdleTimeout),
					Done:  true,
				}:
				case <-ctx.Done():
				}
				return

			case result, ok := <-iterCh:
				resetTimer(idleTimer, streamIdleTimeout)

				if !ok {
					return
				}

				if result.err != nil {
					if statusCb != nil && IsRetryableError(result.err) {
						statusCb.OnError(result.err, true)
					}
					select {
					case raw <- ResponseChunk{Error: wrapGeminiError(result.err), Done: true}:
					case <-ctx.Done():
					}
					return
				}
				if result.resp == nil {
					return
				}

				chunk := processResponse(result.resp)
				select {
				case raw <- chunk:
				case <-ctx.Done():
					return
				}
				if chunk.Done {
					return
				}
			}
		}
	}()

	return primeStream(ctx, raw)
}

// resetTimer safely resets a timer to a new duration.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// processResponse converts a Gemini response to a ResponseChunk.
func processResponse(resp *genai.GenerateContentResponse) ResponseChunk {
	chunk := ResponseChunk{}

	if resp.UsageMetadata != nil {
		chunk.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		chunk.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 {
		chunk.Done = true
		return chunk
	}

	candidate := resp.Candidates[0]
	chunk.FinishReason = string(candidate.FinishReason)

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Thought {
				continue
			}
			chunk.Text += part.Text
		}
	}

	if candidate.FinishReason != "" {
		chunk.Done = true
	}

	return chunk
}

// wrapGeminiError adds a hint for the most common configuration mistake.
func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400, 401, 403:
			if strings.Contains(strings.ToLower(apiErr.Message), "api key") {
				return fmt.Errorf("Gemini rejected the API key; check GEMINI_API_KEY: %w", err)
			}
		case 404:
			return fmt.Errorf("Gemini model not found; run /model to list available models: %w", err)
		}
		return &APIError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return err
}

// GetModel returns the model name.
func (c *GeminiClient) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel changes the model for this client.
func (c *GeminiClient) SetModel(modelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = modelName
}

// ListModels lists models that support content generation.
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	for m, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, wrapGeminiError(err)
		}
		for _, action := range m.SupportedActions {
			if action == "generateContent" {
				models = append(models, strings.TrimPrefix(m.Name, "models/"))
				break
			}
		}
	}
	return models, nil
}

// Healthcheck verifies the API key and model by fetching the model metadata.
func (c *GeminiClient) Healthcheck(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.GetModel(), nil); err != nil {
		return wrapGeminiError(err)
	}
	return nil
}

// Close closes the client connection.
func (c *GeminiClient) Close() error {
	// The genai client doesn't have an explicit close method
	return nil
}
