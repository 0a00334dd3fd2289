package client

import "time"

// StatusCallback lets the terminal show what a client is doing while the
// user waits: retries and errors it can recover from.
type StatusCallback interface {
	// OnRetry is called before attempt (1-based) of maxAttempts.
	OnRetry(attempt, maxAttempts int, delay time.Duration, reason string)
	OnError(err error, recoverable bool)
}

const maxReasonLen = 50

// retryReason turns err into a short phrase for a status line.
func retryReason(err error) string {
	if err == nil {
		return "API error"
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "connection refused"):
		return "server not reachable"
	case containsAny(msg, "timeout", "deadline exceeded"):
		return "timeout"
	case len(msg) > maxReasonLen:
		return msg[:maxReasonLen-3] + "..."
	}
	return msg
}
