package tools

import (
	"context"
	"fmt"
	"strings"
)

// ErrorPrefix starts every failed observation.
const ErrorPrefix = "Error: "

// Tool is one action the model can invoke from a <tool_code> block.
type Tool interface {
	Name() string
	// Description is the one-liner listed in the system prompt.
	Description() string
	// Usage is an example call, e.g. `read('main.go')`.
	Usage() string
	// Validate rejects malformed arguments before anything runs.
	Validate(args map[string]any) error
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// ToolResult is the outcome of one tool call. Content is what the model
// sees on success, Error on failure. Data carries the structured value
// behind Content for callers other than the model.
type ToolResult struct {
	Content string
	Data    any
	Error   string
	Success bool
}

func NewSuccessResult(content string) ToolResult {
	return ToolResult{Content: content, Success: true}
}

func NewSuccessResultWithData(content string, data any) ToolResult {
	return ToolResult{Content: content, Data: data, Success: true}
}

func NewErrorResult(msg string) ToolResult {
	return ToolResult{Error: msg}
}

func NewErrorResultf(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Sprintf(format, args...)}
}

// Observation is the text fed back to the model. Failures always carry
// ErrorPrefix exactly once.
func (r ToolResult) Observation() string {
	switch {
	case r.Success:
		return r.Content
	case r.Error == "":
		return ErrorPrefix + "tool failed without a message"
	case strings.HasPrefix(r.Error, ErrorPrefix):
		return r.Error
	default:
		return ErrorPrefix + r.Error
	}
}

// IsErrorObservation reports whether obs describes a failed call.
func IsErrorObservation(obs string) bool {
	return strings.HasPrefix(obs, ErrorPrefix)
}

// ValidationError names the argument that was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// GetString returns args[key] when it is a string.
func GetString(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

// GetBool returns args[key] as a boolean. Models often quote flags, so
// "true", "yes" and "1" count as well as their negatives.
func GetBool(args map[string]any, key string) (bool, bool) {
	switch v := args[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}

func GetBoolDefault(args map[string]any, key string, def bool) bool {
	if v, ok := GetBool(args, key); ok {
		return v
	}
	return def
}

// requireString rejects a missing, non-string or blank argument.
func requireString(args map[string]any, key string) error {
	v, present := args[key]
	if !present {
		return NewValidationError(key, "is required")
	}
	s, ok := v.(string)
	switch {
	case !ok:
		return NewValidationError(key, fmt.Sprintf("must be a string, got %T", v))
	case strings.TrimSpace(s) == "":
		return NewValidationError(key, "must not be empty")
	}
	return nil
}
