package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOllama struct {
	failures atomic.Int32 // chat requests to reject with 503 first
	models   []string

	mu       sync.Mutex
	lastChat api.ChatRequest
}

func (f *fakeOllama) chat() api.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastChat
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/tags":
		var resp api.ListResponse
		for _, m := range f.models {
			resp.Models = append(resp.Models, api.ListModelResponse{Name: m})
		}
		json.NewEncoder(w).Encode(resp)
	case "/api/chat":
		if f.failures.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, `{"error":"busy"}`)
			return
		}
		f.mu.Lock()
		json.NewDecoder(r.Body).Decode(&f.lastChat)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":true,"done_reason":"stop","prompt_eval_count":7,"eval_count":2}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestOllama(t *testing.T, f *fakeOllama) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewOllamaClient(OllamaConfig{
		BaseURL:    srv.URL,
		Model:      "qwen2.5-coder",
		MaxTokens:  128,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

type retryRecorder struct {
	retries atomic.Int32
}

func (r *retryRecorder) OnRetry(int, int, time.Duration, string) { r.retries.Add(1) }
func (r *retryRecorder) OnError(error, bool)                     {}

func TestOllamaStreamCollectsReply(t *testing.T) {
	f := &fakeOllama{}
	c := newTestOllama(t, f)

	sr, err := c.Stream(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleTool, Content: "Observation: ok"},
	}, Options{})
	require.NoError(t, err)

	resp, err := sr.Collect()
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 7, resp.InputTokens)
	assert.Equal(t, 2, resp.OutputTokens)

	req := f.chat()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleUser, req.Messages[1].Role)
	assert.EqualValues(t, 128, req.Options["num_predict"])
}

func TestOllamaStreamRetriesUnavailable(t *testing.T) {
	f := &fakeOllama{}
	f.failures.Store(2)
	c := newTestOllama(t, f)
	rec := &retryRecorder{}
	c.SetStatusCallback(rec)

	text, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.EqualValues(t, 2, rec.retries.Load())
}

func TestOllamaHealthcheck(t *testing.T) {
	f := &fakeOllama{models: []string{"llama3.2:latest", "qwen2.5-coder:7b"}}
	c := newTestOllama(t, f)
	require.NoError(t, c.Healthcheck(context.Background()))

	c.SetModel("mistral")
	err := c.Healthcheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull mistral")
}

func TestHasModel(t *testing.T) {
	installed := []string{"llama3.2:latest", "qwen2.5-coder:7b"}
	assert.True(t, hasModel(installed, "llama3.2"))
	assert.True(t, hasModel(installed, "qwen2.5-coder"))
	assert.True(t, hasModel(installed, "qwen2.5-coder:7b"))
	assert.False(t, hasModel(installed, "qwen2.5"))
}

func TestIsModelNotFoundError(t *testing.T) {
	assert.True(t, IsModelNotFoundError(api.StatusError{StatusCode: http.StatusNotFound}))
	assert.True(t, IsModelNotFoundError(errors.New(`model "x" not found, try pulling it first`)))
	assert.False(t, IsModelNotFoundError(errors.New("connection refused")))
	assert.False(t, IsModelNotFoundError(nil))
}
