package client

import (
	"context"
)

// StreamHandler provides callbacks for handling streaming responses.
type StreamHandler struct {
	// OnText is called for each text chunk received. Returning false stops
	// reading the stream early; the caller is expected to cancel its context.
	OnText func(text string) bool

	// OnError is called when an error occurs.
	OnError func(err error)

	// OnComplete is called when the response is complete.
	OnComplete func(response *Response)
}

// ProcessStream processes a streaming response with the given handler.
func ProcessStream(ctx context.Context, sr *StreamingResponse, handler *StreamHandler) (*Response, error) {
	resp := &Response{}

	for {
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case chunk, ok := <-sr.Chunks:
			if !ok {
				if handler.OnComplete != nil {
					handler.OnComplete(resp)
				}
				return resp, nil
			}

			if chunk.Error != nil {
				if handler.OnError != nil {
					handler.OnError(chunk.Error)
				}
				return resp, chunk.Error
			}

			if chunk.InputTokens > 0 {
				resp.InputTokens = chunk.InputTokens
			}
			if chunk.OutputTokens > 0 {
				resp.OutputTokens += chunk.OutputTokens
			}

			if chunk.Text != "" {
				resp.Text += chunk.Text
				if handler.OnText != nil && !handler.OnText(chunk.Text) {
					resp.FinishReason = "stopped"
					if handler.OnComplete != nil {
						handler.OnComplete(resp)
					}
					return resp, nil
				}
			}

			if chunk.Done {
				resp.FinishReason = chunk.FinishReason
				if handler.OnComplete != nil {
					handler.OnComplete(resp)
				}
				return resp, nil
			}
		}
	}
}

// primeStream waits for the first chunk of raw so that connection failures
// surface as an error (and can be retried) instead of as a chunk mid-stream.
func primeStream(ctx context.Context, raw <-chan ResponseChunk) (*StreamingResponse, error) {
	var first ResponseChunk
	select {
	case <-ctx.Done():
		go drain(raw)
		return nil, ctx.Err()
	case c, ok := <-raw:
		if !ok {
			return closedStream(), nil
		}
		first = c
	}

	if first.Error != nil && first.Text == "" {
		go drain(raw)
		return nil, first.Error
	}

	chunks := make(chan ResponseChunk, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(chunks)

		select {
		case chunks <- first:
		case <-ctx.Done():
			drain(raw)
			return
		}
		for c := range raw {
			select {
			case chunks <- c:
			case <-ctx.Done():
				drain(raw)
				return
			}
		}
	}()

	return &StreamingResponse{Chunks: chunks, Done: done}, nil
}

func drain(ch <-chan ResponseChunk) {
	for range ch {
	}
}

func closedStream() *StreamingResponse {
	chunks := make(chan ResponseChunk)
	done := make(chan struct{})
	close(chunks)
	close(done)
	return &StreamingResponse{Chunks: chunks, Done: done}
}

// completeVia streams a request and collects the full text.
func completeVia(ctx context.Context, c Client, messages []Message, opts Options) (string, error) {
	sr, err := c.Stream(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	resp, err := sr.Collect()
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
