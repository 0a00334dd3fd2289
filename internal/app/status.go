package app

import (
	"fmt"
	"time"

	"azul/internal/client"
	"azul/internal/ui"
)

// retryReporter shows provider retries while the user waits.
type retryReporter struct {
	renderer *ui.Renderer
}

func (r *retryReporter) OnRetry(attempt, maxAttempts int, delay time.Duration, reason string) {
	r.renderer.Status(fmt.Sprintf("%s, retrying in %s (%d/%d)", reason, delay.Round(100*time.Millisecond), attempt, maxAttempts))
}

func (r *retryReporter) OnError(err error, recoverable bool) {
	if !recoverable {
		return
	}
	r.renderer.Warning(err.Error())
}

type statusReporter interface {
	SetStatusCallback(cb client.StatusCallback)
}
