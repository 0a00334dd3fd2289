package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// APIError is a provider response with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// RetryExhaustedError wraps the last failure once every attempt is used.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("max retries (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// retryableStatus covers throttling and transient server failures.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transientMarkers catch untyped errors from provider SDKs.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"rate limit",
	"eof",
	"tls handshake",
	"no such host",
}

// IsRetryableError reports whether another attempt might succeed. A
// cancelled context never qualifies.
func IsRetryableError(err error) bool {
	var (
		apiErr *APIError
		netErr net.Error
	)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return true
	case errors.As(err, &apiErr):
		return retryableStatus(apiErr.StatusCode)
	}
	return containsAny(err.Error(), transientMarkers...)
}

// containsAny matches case-insensitively; subs must be lower case.
func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
