// Package agent runs the external AI coding agent for one prompt at a time and
// classifies how the run ended.
package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
	"github.com/pseudocoder/devbridge/internal/runner"
)

// Defaults for Config fields left empty.
const (
	DefaultExecutable     = "claude"
	DefaultDisplayName    = "Claude"
	DefaultPermissionMode = "bypassPermissions"
	DefaultBaseURLEnv     = "ANTHROPIC_BASE_URL"
	DefaultTimeout        = 100 * time.Second
)

// promptLogLimit bounds how much of a prompt reaches the log.
const promptLogLimit = 100

// Config describes how the agent is launched.
type Config struct {
	// Executable is looked up on PATH unless it contains a separator.
	Executable string

	// DisplayName is used in user-facing messages ("Claude command not found").
	DisplayName string

	// ProjectRoot is both the working directory and the -p argument.
	ProjectRoot string

	// PermissionMode is passed as --permission-mode. Empty omits the flag.
	PermissionMode string

	// BaseURL is exported to the agent under BaseURLEnv. Empty skips the override.
	BaseURL    string
	BaseURLEnv string

	// ExtraArgs are appended after the standard arguments.
	ExtraArgs []string

	Timeout        time.Duration
	KillGrace      time.Duration
	MaxOutputBytes int
}

// Request is one prompt submission.
type Request struct {
	Prompt    string
	FocusPath string
}

// Outcome is a finished invocation.
type Outcome struct {
	ID        string
	Prompt    string // as sent to the agent, focus hint included
	FocusPath string
	StartedAt time.Time
	Result    runner.Result

	// Err is the classified failure, nil when the agent exited 0.
	Err error
}

// Runner is the subset of runner.Runner the invoker needs.
type Runner interface {
	Run(ctx context.Context, c runner.Command) runner.Result
}

// Flag records that an invocation was attempted.
type Flag interface {
	MarkDirty()
}

// Observer is notified around every invocation that reaches the runner.
type Observer interface {
	InvocationStarted(o *Outcome)
	InvocationFinished(o *Outcome)
}

// Invoker launches the agent.
type Invoker struct {
	cfg      Config
	runner   Runner
	flag     Flag
	observer Observer
	lookPath func(string) (string, error)
	log      zerolog.Logger
}

// NewInvoker creates an Invoker. Empty Config fields take the package defaults.
func NewInvoker(cfg Config, r Runner, flag Flag, log zerolog.Logger) *Invoker {
	if cfg.Executable == "" {
		cfg.Executable = DefaultExecutable
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = DefaultDisplayName
	}
	if cfg.BaseURLEnv == "" {
		cfg.BaseURLEnv = DefaultBaseURLEnv
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Invoker{
		cfg:      cfg,
		runner:   r,
		flag:     flag,
		lookPath: runner.LookPath,
		log:      log.With().Str("component", "agent").Logger(),
	}
}

// SetObserver sets the optional invocation observer.
func (i *Invoker) SetObserver(o Observer) {
	i.observer = o
}

// SetLookPath replaces the PATH probe, for tests.
func (i *Invoker) SetLookPath(fn func(string) (string, error)) {
	i.lookPath = fn
}

// Config returns the effective configuration.
func (i *Invoker) Config() Config {
	return i.cfg
}

// Probe checks that the agent executable can be resolved.
func (i *Invoker) Probe() (string, error) {
	path, err := i.lookPath(i.cfg.Executable)
	if err != nil {
		return "", apperrors.AgentNotFound(i.cfg.DisplayName, i.cfg.Executable, err)
	}
	return path, nil
}

// Invoke runs the agent once for req.
//
// An empty prompt is rejected before anything else happens. Every other call
// marks the session dirty, including one whose probe fails. When the agent was
// started, the returned Outcome is non-nil even if err is set, so callers can
// show partial output.
func (i *Invoker) Invoke(ctx context.Context, req Request) (*Outcome, error) {
	if req.Prompt == "" {
		return nil, apperrors.MissingField("Prompt is required")
	}
	i.flag.MarkDirty()

	if _, err := i.Probe(); err != nil {
		i.log.Warn().Str("executable", i.cfg.Executable).Err(err).Msg("agent not resolvable")
		return nil, err
	}

	o := &Outcome{
		ID:        uuid.NewString(),
		Prompt:    BuildPrompt(req.Prompt, req.FocusPath),
		FocusPath: req.FocusPath,
		StartedAt: time.Now(),
	}
	i.log.Info().
		Str("invocation_id", o.ID).
		Str("prompt", truncate(req.Prompt, promptLogLimit)).
		Str("focus_path", req.FocusPath).
		Msg("invoking agent")
	if i.observer != nil {
		i.observer.InvocationStarted(o)
	}

	o.Result = i.runner.Run(ctx, i.command(o.Prompt))
	o.Err = i.classify(o.Result)

	ev := i.log.Info()
	if o.Err != nil {
		ev = i.log.Warn().Err(o.Err)
	}
	ev.Str("invocation_id", o.ID).
		Int("exit_code", o.Result.ExitCode).
		Dur("duration", o.Result.Duration).
		Msg("agent finished")

	if i.observer != nil {
		i.observer.InvocationFinished(o)
	}
	return o, o.Err
}

func (i *Invoker) command(prompt string) runner.Command {
	args := []string{"-p", i.cfg.ProjectRoot}
	if i.cfg.PermissionMode != "" {
		args = append(args, "--permission-mode", i.cfg.PermissionMode)
	}
	args = append(args, i.cfg.ExtraArgs...)

	var env map[string]string
	if i.cfg.BaseURL != "" {
		env = map[string]string{i.cfg.BaseURLEnv: i.cfg.BaseURL}
	}

	return runner.Command{
		Name:           i.cfg.Executable,
		Args:           args,
		Input:          prompt,
		Dir:            i.cfg.ProjectRoot,
		Env:            env,
		Timeout:        i.cfg.Timeout,
		KillGrace:      i.cfg.KillGrace,
		MaxOutputBytes: i.cfg.MaxOutputBytes,
	}
}

func (i *Invoker) classify(res runner.Result) error {
	switch {
	case res.Succeeded:
		return nil
	case res.SpawnError != "":
		return apperrors.New(apperrors.CodeAgentNotFound,
			fmt.Sprintf("Failed to start %s: %s", i.cfg.DisplayName, res.SpawnError))
	case res.TimedOut:
		return apperrors.AgentTimeout(int(math.Ceil(i.cfg.Timeout.Seconds())))
	case strings.TrimSpace(res.Stderr) != "":
		return apperrors.AgentExecutionFailed(res.Stderr)
	default:
		return apperrors.AgentExecutionFailed(fmt.Sprintf("Process exited with code %d", res.ExitCode))
	}
}

// BuildPrompt appends the focus path hint when one is given.
func BuildPrompt(prompt, focusPath string) string {
	if focusPath == "" {
		return prompt
	}
	return prompt + "\n\nFocus path: " + focusPath
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
