package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"azul/internal/logging"
)

// ForcedShutdownTimeout is the time after which a second signal forces exit.
const ForcedShutdownTimeout = 15 * time.Second

// setupSignalHandler makes Ctrl+C cancel the running task, or leave the
// REPL when idle. SIGTERM always leaves. The returned function stops
// the handler.
func (a *App) setupSignalHandler() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigChan:
				logging.Debug("received signal", "signal", sig)
				if sig == os.Interrupt && a.cancelTask() {
					a.renderer.Warning("Interrupted")
					continue
				}
				a.cancel()

				// shutdown can hang on a stuck provider call
				time.AfterFunc(ForcedShutdownTimeout, func() {
					logging.Warn("forced shutdown due to timeout")
					os.Exit(1)
				})
				return

			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

// shutdown releases everything the App holds. It is safe to call twice.
func (a *App) shutdown() {
	a.closeOnce.Do(func() {
		logging.Debug("starting shutdown")

		a.cancelTask()
		if a.signalCleanup != nil {
			a.signalCleanup()
		}

		a.closeProject(a.currentProject())

		if a.runner != nil {
			a.runner.Manager().CancelAll()
		}
		if a.client != nil {
			a.client.Close()
		}
		a.cancel()

		logging.Debug("shutdown complete")
	})
}

// Close releases resources of an App whose Run was never called.
func (a *App) Close() {
	a.shutdown()
}
