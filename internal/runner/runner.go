// Package runner launches external executables, feeds them their input,
// captures stdout and stderr, and enforces a deadline.
//
// Run never returns an error. Every outcome, including a process that could
// not be started or was killed on timeout, is reported as a Result so callers
// can always show whatever output was produced.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Exit sentinels used when the process did not report an exit status itself.
const (
	// ExitSpawnFailed means the executable could not be started at all.
	ExitSpawnFailed = -1
	// ExitTimeout means the process was terminated because it outlived its deadline.
	ExitTimeout = -2
	// ExitTerminated means the process died from a signal it was not sent
	// by the timeout path (including caller context cancellation).
	ExitTerminated = -3
)

const (
	// DefaultKillGrace is how long a process gets between SIGTERM and SIGKILL.
	DefaultKillGrace = 5 * time.Second

	// waitDelay bounds how long Wait keeps draining pipes after the process exits.
	// Grandchildren that inherit stdout would otherwise hold Wait open forever.
	waitDelay = 2 * time.Second
)

// Command describes one subprocess invocation.
type Command struct {
	// Name is the executable; it is resolved through PATH when it has no separator.
	Name string

	// Args are passed verbatim, without a shell.
	Args []string

	// Input is written to stdin, which is then closed.
	Input string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string

	// Env entries are merged over the inherited environment.
	Env map[string]string

	// Timeout <= 0 disables the deadline.
	Timeout time.Duration

	// KillGrace overrides DefaultKillGrace.
	KillGrace time.Duration

	// MaxOutputBytes caps each of stdout and stderr. Zero keeps everything.
	MaxOutputBytes int
}

// Result is the immutable outcome of a Command.
type Result struct {
	Succeeded bool
	Stdout    string
	Stderr    string
	ExitCode  int

	// TimedOut is set when the deadline fired and the process was terminated.
	TimedOut bool

	// SpawnError describes why the process could not start (ExitCode == ExitSpawnFailed).
	SpawnError string

	StdoutTruncated bool
	StderrTruncated bool

	Duration time.Duration
}

// Runner executes Commands. The zero value logs nothing.
type Runner struct {
	log zerolog.Logger
}

// New returns a Runner that logs through log.
func New(log zerolog.Logger) *Runner {
	return &Runner{log: log.With().Str("component", "runner").Logger()}
}

// LookPath reports the resolved path of name, or an error if it cannot be run.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run starts c and blocks until the process exits, its deadline fires, or ctx
// is canceled. The deadline timer is stopped on every path.
func (r *Runner) Run(ctx context.Context, c Command) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	cmd.Stdin = strings.NewReader(c.Input)
	cmd.WaitDelay = waitDelay

	stdout := newOutputBuffer(c.MaxOutputBytes)
	stderr := newOutputBuffer(c.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		r.log.Warn().Err(err).Str("executable", c.Name).Msg("failed to start process")
		return Result{
			ExitCode:   ExitSpawnFailed,
			SpawnError: fmt.Sprintf("executable not found or not executable: %v", err),
			Duration:   time.Since(start),
		}
	}
	r.log.Debug().Str("executable", c.Name).Strs("args", c.Args).Int("pid", cmd.Process.Pid).Msg("process started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	grace := c.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	var (
		waitErr  error
		timedOut bool
		canceled bool
	)
	select {
	case waitErr = <-done:
	case <-deadline:
		timedOut = true
		r.log.Warn().Str("executable", c.Name).Dur("timeout", c.Timeout).Msg("process timeout, terminating")
		waitErr = terminate(cmd, done, grace)
	case <-ctx.Done():
		canceled = true
		r.log.Warn().Str("executable", c.Name).Err(ctx.Err()).Msg("context canceled, terminating")
		waitErr = terminate(cmd, done, grace)
	}

	res := Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		TimedOut:        timedOut,
		Duration:        time.Since(start),
	}
	switch {
	case timedOut:
		res.ExitCode = ExitTimeout
	case canceled:
		res.ExitCode = ExitTerminated
	default:
		res.ExitCode = exitCode(waitErr)
	}
	res.Succeeded = res.ExitCode == 0

	r.log.Debug().
		Str("executable", c.Name).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration).
		Int("stdout_bytes", len(res.Stdout)).
		Int("stderr_bytes", len(res.Stderr)).
		Msg("process finished")
	return res
}

// terminate asks the process tree to stop, escalating to SIGKILL after grace.
func terminate(cmd *exec.Cmd, done <-chan error, grace time.Duration) error {
	signalProcessTree(cmd)
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		killProcessTree(cmd)
		return <-done
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return ExitTerminated
	}
	// ErrWaitDelay after a clean exit still carries the real status.
	if errors.Is(err, exec.ErrWaitDelay) {
		return 0
	}
	return ExitTerminated
}

// mergeEnv overlays overrides onto base, replacing existing keys.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
