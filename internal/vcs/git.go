// Package vcs drives the version-control command line tool for change
// inspection and rollback.
package vcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
	"github.com/pseudocoder/devbridge/internal/runner"
)

// DefaultTimeout bounds a single VCS subcommand.
const DefaultTimeout = 30 * time.Second

// Runner is the subset of runner.Runner the client needs.
type Runner interface {
	Run(ctx context.Context, c runner.Command) runner.Result
}

// CommandError describes a VCS subcommand that did not exit cleanly.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("git %s exited with code %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// Options configures a Client.
type Options struct {
	// Executable defaults to "git".
	Executable string
	// Dir is the work tree every command runs in.
	Dir string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client runs VCS subcommands in one work tree.
type Client struct {
	runner     Runner
	executable string
	dir        string
	timeout    time.Duration
	log        zerolog.Logger
}

// NewClient creates a Client that executes through r.
func NewClient(r Runner, opts Options, log zerolog.Logger) *Client {
	if opts.Executable == "" {
		opts.Executable = "git"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		runner:     r,
		executable: opts.Executable,
		dir:        opts.Dir,
		timeout:    opts.Timeout,
		log:        log.With().Str("component", "vcs").Logger(),
	}
}

// Dir returns the work tree the client operates on.
func (c *Client) Dir() string {
	return c.dir
}

// ListChanges returns the files that differ from the index, in the order the
// tool printed them.
func (c *Client) ListChanges(ctx context.Context) ([]Change, error) {
	out, err := c.run(ctx, "diff", "--name-status")
	if err != nil {
		return nil, apperrors.VCSFailed(failureMessage(err, "Git diff command failed"), err)
	}
	return ParseNameStatus(out), nil
}

// FileDiff returns the unified diff of path against the last commit.
func (c *Client) FileDiff(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, "diff", "HEAD", "--", path)
	if err != nil {
		return "", apperrors.VCSFailed(failureMessage(err, "Git diff command failed"), err)
	}
	return out, nil
}

// Restore discards working tree changes to path by checking it out from the
// last commit.
func (c *Client) Restore(ctx context.Context, path string) error {
	_, err := c.run(ctx, "checkout", "HEAD", "--", path)
	if err != nil {
		fallback := fmt.Sprintf("Failed to revert file with exit code %d", err.ExitCode)
		return apperrors.VCSFailed(failureMessage(err, fallback), err)
	}
	return nil
}

// IsWorkTree reports whether the client's directory is inside a work tree.
func (c *Client) IsWorkTree(ctx context.Context) bool {
	out, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// globalArgs precede every subcommand. With quotePath off git prints
// non-ASCII paths verbatim instead of C-quoting them, so listed names can be
// passed back as pathspecs.
var globalArgs = []string{"-c", "core.quotePath=false"}

// run executes one subcommand and returns stdout untouched.
func (c *Client) run(ctx context.Context, args ...string) (string, *CommandError) {
	res := c.runner.Run(ctx, runner.Command{
		Name:    c.executable,
		Args:    append(append([]string{}, globalArgs...), args...),
		Dir:     c.dir,
		Timeout: c.timeout,
	})
	if res.Succeeded {
		return res.Stdout, nil
	}

	stderr := res.Stderr
	switch {
	case res.SpawnError != "":
		stderr = res.SpawnError
	case res.TimedOut && strings.TrimSpace(stderr) == "":
		stderr = fmt.Sprintf("git %s timed out after %s", args[0], c.timeout)
	}
	cmdErr := &CommandError{Args: args, ExitCode: res.ExitCode, Stderr: stderr}
	c.log.Warn().Strs("args", args).Int("exit_code", res.ExitCode).Str("stderr", strings.TrimSpace(stderr)).Msg("git command failed")
	return "", cmdErr
}

// failureMessage prefers the tool's own stderr, which is what the UI shows.
func failureMessage(err *CommandError, fallback string) string {
	if err.Stderr != "" {
		return err.Stderr
	}
	return fallback
}
