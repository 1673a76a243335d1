package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
	"github.com/pseudocoder/devbridge/internal/runner"
	"github.com/pseudocoder/devbridge/internal/session"
)

const fakeAgentEnv = "DEVBRIDGE_FAKE_AGENT"

// TestMain lets the test binary act as the agent executable.
func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeAgentEnv); mode != "" {
		os.Exit(runFakeAgent(mode))
	}
	os.Exit(m.Run())
}

func runFakeAgent(mode string) int {
	prompt, _ := io.ReadAll(os.Stdin)
	switch mode {
	case "ok":
		fmt.Fprintf(os.Stdout, "args=%s\n", strings.Join(os.Args[1:], " "))
		fmt.Fprintf(os.Stdout, "base=%s\n", os.Getenv("ANTHROPIC_BASE_URL"))
		fmt.Fprintf(os.Stdout, "prompt=%s", prompt)
		return 0
	case "fail":
		fmt.Fprint(os.Stdout, "started")
		fmt.Fprint(os.Stderr, "model refused")
		return 2
	case "silent-fail":
		return 7
	case "hang":
		fmt.Fprint(os.Stdout, "thinking")
		time.Sleep(30 * time.Second)
		return 0
	}
	return 99
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []*Outcome
}

func (r *recordingObserver) InvocationStarted(o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, o.ID)
}

func (r *recordingObserver) InvocationFinished(o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, o)
}

func newFakeInvoker(t *testing.T, mode string, cfg Config) (*Invoker, *session.Tracker) {
	t.Helper()
	t.Setenv(fakeAgentEnv, mode)
	cfg.Executable = os.Args[0]
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = t.TempDir()
	}
	tracker := session.NewTracker()
	return NewInvoker(cfg, runner.New(zerolog.Nop()), tracker, zerolog.Nop()), tracker
}

func TestInvoke_Success(t *testing.T) {
	root := t.TempDir()
	inv, tracker := newFakeInvoker(t, "ok", Config{
		ProjectRoot:    root,
		PermissionMode: DefaultPermissionMode,
		BaseURL:        "https://proxy.example/api",
	})
	obs := &recordingObserver{}
	inv.SetObserver(obs)

	o, err := inv.Invoke(context.Background(), Request{Prompt: "add a button", FocusPath: "src/App.jsx"})

	require.NoError(t, err)
	require.NotNil(t, o)
	assert.True(t, o.Result.Succeeded)
	assert.Equal(t, 0, o.Result.ExitCode)
	assert.Contains(t, o.Result.Stdout, "args=-p "+root+" --permission-mode bypassPermissions")
	assert.Contains(t, o.Result.Stdout, "base=https://proxy.example/api")
	assert.Contains(t, o.Result.Stdout, "prompt=add a button\n\nFocus path: src/App.jsx")
	assert.NotEmpty(t, o.ID)
	assert.True(t, tracker.IsDirty())

	assert.Equal(t, []string{o.ID}, obs.started)
	require.Len(t, obs.finished, 1)
	assert.Same(t, o, obs.finished[0])
}

func TestInvoke_EmptyPromptRejectedWithoutMarking(t *testing.T) {
	inv, tracker := newFakeInvoker(t, "ok", Config{})
	probed := false
	inv.SetLookPath(func(string) (string, error) {
		probed = true
		return "", nil
	})

	o, err := inv.Invoke(context.Background(), Request{Prompt: ""})

	assert.Nil(t, o)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationMissingField))
	assert.Equal(t, "Prompt is required", apperrors.GetMessage(err))
	assert.False(t, tracker.IsDirty())
	assert.False(t, probed)
}

func TestInvoke_WhitespacePromptIsPassedThrough(t *testing.T) {
	inv, tracker := newFakeInvoker(t, "ok", Config{})

	o, err := inv.Invoke(context.Background(), Request{Prompt: "   "})

	require.NoError(t, err)
	require.NotNil(t, o)
	assert.True(t, o.Result.Succeeded)
	assert.True(t, tracker.IsDirty())
}

func TestInvoke_ProbeFailureStillMarksDirty(t *testing.T) {
	tracker := session.NewTracker()
	inv := NewInvoker(Config{}, runner.New(zerolog.Nop()), tracker, zerolog.Nop())
	inv.SetLookPath(func(string) (string, error) { return "", errors.New("not in PATH") })
	obs := &recordingObserver{}
	inv.SetObserver(obs)

	o, err := inv.Invoke(context.Background(), Request{Prompt: "hi"})

	assert.Nil(t, o)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAgentNotFound))
	assert.Equal(t, "Claude command not found. Please ensure claude is installed and available in PATH.", apperrors.GetMessage(err))
	assert.True(t, tracker.IsDirty())
	assert.Empty(t, obs.started)
}

func TestInvoke_SpawnFailureAfterProbe(t *testing.T) {
	tracker := session.NewTracker()
	inv := NewInvoker(Config{Executable: "/nonexistent/devbridge-agent", ProjectRoot: t.TempDir()},
		runner.New(zerolog.Nop()), tracker, zerolog.Nop())
	inv.SetLookPath(func(name string) (string, error) { return name, nil })

	o, err := inv.Invoke(context.Background(), Request{Prompt: "hi"})

	require.NotNil(t, o)
	assert.Equal(t, runner.ExitSpawnFailed, o.Result.ExitCode)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAgentNotFound))
	assert.True(t, strings.HasPrefix(apperrors.GetMessage(err), "Failed to start Claude: "))
}

func TestInvoke_NonZeroExit(t *testing.T) {
	inv, tracker := newFakeInvoker(t, "fail", Config{})

	o, err := inv.Invoke(context.Background(), Request{Prompt: "break it"})

	require.NotNil(t, o)
	assert.False(t, o.Result.Succeeded)
	assert.Equal(t, 2, o.Result.ExitCode)
	assert.Equal(t, "started", o.Result.Stdout)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAgentExecutionFailed))
	assert.Equal(t, "model refused", apperrors.GetMessage(err))
	assert.Equal(t, err, o.Err)
	assert.True(t, tracker.IsDirty())
}

func TestInvoke_NonZeroExitWithoutStderr(t *testing.T) {
	inv, _ := newFakeInvoker(t, "silent-fail", Config{})

	_, err := inv.Invoke(context.Background(), Request{Prompt: "x"})

	assert.Equal(t, "Process exited with code 7", apperrors.GetMessage(err))
}

func TestInvoke_Timeout(t *testing.T) {
	inv, tracker := newFakeInvoker(t, "hang", Config{
		Timeout:   300 * time.Millisecond,
		KillGrace: 200 * time.Millisecond,
	})

	o, err := inv.Invoke(context.Background(), Request{Prompt: "slow"})

	require.NotNil(t, o)
	assert.True(t, o.Result.TimedOut)
	assert.Equal(t, runner.ExitTimeout, o.Result.ExitCode)
	assert.Equal(t, "thinking", o.Result.Stdout)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAgentTimeout))
	assert.Equal(t, "Process timeout after 1 seconds", apperrors.GetMessage(err))
	assert.True(t, tracker.IsDirty())
}

func TestNewInvoker_Defaults(t *testing.T) {
	inv := NewInvoker(Config{}, runner.New(zerolog.Nop()), session.NewTracker(), zerolog.Nop())
	cfg := inv.Config()

	assert.Equal(t, DefaultExecutable, cfg.Executable)
	assert.Equal(t, DefaultDisplayName, cfg.DisplayName)
	assert.Equal(t, DefaultBaseURLEnv, cfg.BaseURLEnv)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestCommand_OmitsEmptyOptions(t *testing.T) {
	inv := NewInvoker(Config{ProjectRoot: "/work", ExtraArgs: []string{"--verbose"}},
		runner.New(zerolog.Nop()), session.NewTracker(), zerolog.Nop())

	c := inv.command("p")

	assert.Equal(t, []string{"-p", "/work", "--verbose"}, c.Args)
	assert.Nil(t, c.Env)
	assert.Equal(t, "/work", c.Dir)
	assert.Equal(t, "p", c.Input)
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "do it", BuildPrompt("do it", ""))
	assert.Equal(t, "do it\n\nFocus path: a/b.go", BuildPrompt("do it", "a/b.go"))
}

func TestMockOutput(t *testing.T) {
	assert.Equal(t, "Mock response for prompt: \"short...\"\nInspected path: src",
		MockOutput("short", "src"))

	long := strings.Repeat("a", 80)
	assert.Equal(t, "Mock response for prompt: \""+strings.Repeat("a", 50)+"...\"\nInspected path: ",
		MockOutput(long, ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
