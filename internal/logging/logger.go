// Package logging is the process-wide structured logger. Output is
// discarded until EnableFileLogging is called so that log records never
// interleave with the REPL.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// LogFileName is created inside the config directory.
const LogFileName = "azul.log"

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	current atomic.Pointer[slog.Logger]

	fileMu sync.Mutex
	file   *os.File
)

func init() {
	current.Store(discard())
}

func discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ParseLevel maps a config string to a Level. Unknown strings mean info.
func ParseLevel(s string) Level {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelWarn, LevelError:
		return l
	case "warning":
		return LevelWarn
	}
	return LevelInfo
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// EnableFileLogging appends JSON records at level or above to
// configDir/azul.log.
func EnableFileLogging(configDir string, level Level) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(configDir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	fileMu.Lock()
	defer fileMu.Unlock()
	if file != nil {
		file.Close()
	}
	file = f
	current.Store(newLogger(f, level))
	return nil
}

// SetOutput logs to w instead of the file. Tests use it to capture records.
func SetOutput(w io.Writer, level Level) {
	current.Store(newLogger(w, level))
}

func newLogger(w io.Writer, level Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.slog()}))
}

// Close releases the log file and goes back to discarding.
func Close() {
	fileMu.Lock()
	defer fileMu.Unlock()
	current.Store(discard())
	if file != nil {
		file.Close()
		file = nil
	}
}

func Debug(msg string, args ...any) { current.Load().Debug(msg, args...) }
func Info(msg string, args ...any)  { current.Load().Info(msg, args...) }
func Warn(msg string, args ...any)  { current.Load().Warn(msg, args...) }
func Error(msg string, args ...any) { current.Load().Error(msg, args...) }
