package tasks

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// passthroughEnv lists the variables a command inherits. Everything else,
// API keys included, stays out of the child environment.
var passthroughEnv = []string{
	"PATH", "HOME", "USER", "SHELL", "TERM", "LANG", "LC_ALL", "LC_CTYPE",
	"TMPDIR", "TMP", "TEMP", "EDITOR", "VISUAL", "PAGER",
	"XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME", "XDG_RUNTIME_DIR",
	"GOPATH", "GOROOT", "GOPROXY", "GOPRIVATE", "GOFLAGS", "GOCACHE", "GOMODCACHE",
	"CARGO_HOME", "RUSTUP_HOME", "JAVA_HOME", "NODE_PATH", "NPM_CONFIG_PREFIX",
	"PYTHONPATH", "VIRTUAL_ENV",
	"GIT_AUTHOR_NAME", "GIT_AUTHOR_EMAIL", "GIT_COMMITTER_NAME", "GIT_COMMITTER_EMAIL",
}

var envFallbacks = map[string]string{
	"PATH": "/usr/local/bin:/usr/bin:/bin",
	"TERM": "xterm-256color",
}

func buildSafeEnv() []string {
	env := make([]string, 0, len(passthroughEnv))
	for _, key := range passthroughEnv {
		val := os.Getenv(key)
		if val == "" {
			val = envFallbacks[key]
		}
		if val != "" {
			env = append(env, key+"="+val)
		}
	}
	return env
}

// killGrace bounds how long Wait waits for output pipes after a kill.
const killGrace = 2 * time.Second

// newCommand prepares `sh -c command` in its own process group, so that
// cancelling ctx kills everything the shell spawned.
func newCommand(ctx context.Context, command, dir string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = buildSafeEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killGrace
	return cmd
}

// exitCode is 0 for success, the status for a normal exit and -1 when
// the process never ran or died from a signal.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() >= 0 {
		return ee.ExitCode()
	}
	return -1
}
