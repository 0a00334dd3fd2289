package client

import (
	"context"
	"strings"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single request. Zero values defer to the client config.
type Options struct {
	Temperature float32
	MaxTokens   int32
	Stop        []string
}

// Client is a chat model backend.
type Client interface {
	Stream(ctx context.Context, messages []Message, opts Options) (*StreamingResponse, error)
	// Complete is Stream collected into one string.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)

	GetModel() string
	SetModel(name string)
	ListModels(ctx context.Context) ([]string, error)
	// Healthcheck fails when the backend is unreachable or the model is
	// not usable.
	Healthcheck(ctx context.Context) error
	Close() error
}

// StreamingResponse delivers a reply piece by piece. Chunks is closed
// after the last chunk and Done once the producer has exited.
type StreamingResponse struct {
	Chunks <-chan ResponseChunk
	Done   <-chan struct{}
}

// ResponseChunk is one piece of a streamed reply. The final chunk has Done
// set and carries the finish reason and token usage when the provider
// reports them. A chunk with Error ends the stream.
type ResponseChunk struct {
	Text         string
	Error        error
	Done         bool
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// Response is a fully collected reply.
type Response struct {
	Text         string
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// Collect drains the stream into a Response. It stops at the first error.
func (sr *StreamingResponse) Collect() (*Response, error) {
	var (
		text strings.Builder
		resp Response
	)
	for chunk := range sr.Chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		text.WriteString(chunk.Text)
		if chunk.Done {
			resp.FinishReason = chunk.FinishReason
		}
		if chunk.InputTokens > 0 {
			resp.InputTokens = chunk.InputTokens
		}
		resp.OutputTokens += chunk.OutputTokens
	}
	resp.Text = text.String()
	return &resp, nil
}

// Ptr returns a pointer to v, for SDK fields that are optional.
func Ptr[T any](v T) *T {
	return &v
}
