package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"azul/internal/logging"
)

// OllamaConfig configures an Ollama backend. Zero values get defaults.
type OllamaConfig struct {
	BaseURL     string
	APIKey      string // bearer token for servers behind an auth proxy
	Model       string
	Temperature float32
	MaxTokens   int32
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

func (c *OllamaConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 120 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
}

// OllamaClient talks to a local or remote Ollama server.
type OllamaClient struct {
	api *api.Client
	cfg OllamaConfig

	mu     sync.RWMutex
	model  string
	status StatusCallback
}

type bearerTransport struct {
	next  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(r)
}

func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	cfg.applyDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "http" && !isLoopback(base.Hostname()) {
		logging.Warn("Ollama traffic to a remote host is not encrypted", "host", base.Hostname())
	}

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.APIKey != "" {
		hc.Transport = &bearerTransport{next: http.DefaultTransport, token: cfg.APIKey}
	}

	return &OllamaClient{
		api:   api.NewClient(base, hc),
		cfg:   cfg,
		model: cfg.Model,
	}, nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// API exposes the underlying client so the embedder can share it.
func (c *OllamaClient) API() *api.Client { return c.api }

func (c *OllamaClient) SetStatusCallback(cb StatusCallback) {
	c.mu.Lock()
	c.status = cb
	c.mu.Unlock()
}

func (c *OllamaClient) statusCallback() StatusCallback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *OllamaClient) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *OllamaClient) SetModel(name string) {
	c.mu.Lock()
	c.model = name
	c.mu.Unlock()
}

// Close does nothing; the HTTP client owns no long-lived resources.
func (c *OllamaClient) Close() error { return nil }

func (c *OllamaClient) Stream(ctx context.Context, messages []Message, opts Options) (*StreamingResponse, error) {
	req := &api.ChatRequest{
		Model:    c.GetModel(),
		Messages: toOllamaMessages(messages),
		Stream:   Ptr(true),
		Options:  c.sampling(opts),
	}

	policy := RetryConfig{MaxRetries: c.cfg.MaxRetries, RetryDelay: c.cfg.RetryDelay, MaxDelay: 30 * time.Second}
	resp, err := withRetry(ctx, policy, "ollama", ollamaRetryable, c.onRetry, func() (*StreamingResponse, error) {
		return c.chat(ctx, req)
	})
	if err == nil {
		return resp, nil
	}
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		return nil, fmt.Errorf("max retries (%d) exceeded: %w", exhausted.Attempts, c.explain(exhausted.Err))
	}
	return nil, c.explain(err)
}

func (c *OllamaClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	return completeVia(ctx, c, messages, opts)
}

// toOllamaMessages sends tool observations as user turns since not every
// model template understands the tool role.
func toOllamaMessages(messages []Message) []api.Message {
	out := make([]api.Message, len(messages))
	for i, m := range messages {
		role := m.Role
		if role == RoleTool {
			role = RoleUser
		}
		out[i] = api.Message{Role: role, Content: m.Content}
	}
	return out
}

func (c *OllamaClient) sampling(opts Options) map[string]any {
	out := map[string]any{
		"num_predict": orDefault(opts.MaxTokens, c.cfg.MaxTokens),
	}
	if t := orDefault(opts.Temperature, c.cfg.Temperature); t > 0 {
		out["temperature"] = t
	}
	if len(opts.Stop) > 0 {
		out["stop"] = opts.Stop
	}
	return out
}

// orDefault returns v unless it is the zero value.
func orDefault[T int32 | float32 | string](v, fallback T) T {
	var zero T
	if v != zero {
		return v
	}
	return fallback
}

func (c *OllamaClient) onRetry(attempt int, delay time.Duration, err error) {
	if cb := c.statusCallback(); cb != nil {
		cb.OnRetry(attempt, c.cfg.MaxRetries, delay, retryReason(err))
	}
}

// chat runs one streaming request. The first chunk is awaited so that
// connection failures surface as an error the retry loop can see.
func (c *OllamaClient) chat(ctx context.Context, req *api.ChatRequest) (*StreamingResponse, error) {
	raw := make(chan ResponseChunk, 10)
	cb := c.statusCallback()

	go func() {
		defer close(raw)
		err := c.api.Chat(ctx, req, func(r api.ChatResponse) error {
			chunk := ResponseChunk{Text: r.Message.Content}
			if r.Done {
				chunk.Done = true
				chunk.FinishReason = orDefault(r.DoneReason, "stop")
				chunk.InputTokens = r.PromptEvalCount
				chunk.OutputTokens = r.EvalCount
			}
			select {
			case raw <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil {
			return
		}
		if cb != nil && ollamaRetryable(err) {
			cb.OnError(err, true)
		}
		select {
		case raw <- ResponseChunk{Error: c.explain(err), Done: true}:
		case <-ctx.Done():
		}
	}()

	return primeStream(ctx, raw)
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, c.explain(err)
	}
	names := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		names[i] = m.Name
	}
	return names, nil
}

// Healthcheck fails when the server is down or the model has not been
// pulled.
func (c *OllamaClient) Healthcheck(ctx context.Context) error {
	installed, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	model := c.GetModel()
	if !hasModel(installed, model) {
		return errModelMissing(model, nil)
	}
	return nil
}

// hasModel accepts "name", "name:latest" and any tag of name.
func hasModel(installed []string, name string) bool {
	return slices.ContainsFunc(installed, func(m string) bool {
		return m == name || strings.HasPrefix(m, name+":")
	})
}

func ollamaRetryable(err error) bool {
	var se api.StatusError
	if errors.As(err, &se) {
		return retryableStatus(se.StatusCode)
	}
	return IsRetryableError(err)
}

// IsModelNotFoundError reports whether err means the model is not pulled.
func IsModelNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var se api.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "is not installed") ||
		(strings.Contains(msg, "model") && strings.Contains(msg, "not found"))
}

func errModelMissing(model string, cause error) error {
	msg := fmt.Sprintf("Model '%s' is not installed.\n\nTo fix this:\n"+
		"  1. Pull the model: ollama pull %s\n"+
		"  2. Or list available models: ollama list", model, model)
	if cause == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s\n\nOriginal error: %w", msg, cause)
}

// explain adds a remedy to the failures users hit most often.
func (c *OllamaClient) explain(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Ollama server is not running"), strings.Contains(msg, "is not installed"):
		return err
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("Ollama server is not running.\n\nTo fix this:\n"+
			"  1. Start Ollama: ollama serve\n"+
			"  2. Or check if it's running: ollama list\n\nOriginal error: %w", err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("Ollama request timed out. The model may still be loading "+
			"or be too large for this machine. Try again or use a smaller model.\n\nOriginal error: %w", err)
	case IsModelNotFoundError(err):
		return errModelMissing(c.GetModel(), err)
	}
	return err
}
