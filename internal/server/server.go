// Package server exposes the bridge over HTTP: prompt submission, change
// inspection, file revert, invocation history and a live event stream.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pseudocoder/devbridge/internal/agent"
	"github.com/pseudocoder/devbridge/internal/diff"
	"github.com/pseudocoder/devbridge/internal/metrics"
	"github.com/pseudocoder/devbridge/internal/storage"
)

// DefaultPrefix is where the bridge endpoints are mounted.
const DefaultPrefix = "/_ai_coding"

// eventPromptLimit bounds the prompt text carried by events.
const eventPromptLimit = 100

// Submitter runs the agent. *agent.Invoker implements it.
type Submitter interface {
	Invoke(ctx context.Context, req agent.Request) (*agent.Outcome, error)
}

// DiffCollector builds change reports. *diff.Aggregator implements it.
type DiffCollector interface {
	Collect(ctx context.Context) (*diff.Report, error)
}

// FileReverter restores single files. *actions.Reverter implements it.
type FileReverter interface {
	Revert(ctx context.Context, filename string) error
}

// SessionFlag exposes the change-tracking flag. *session.Tracker implements it.
type SessionFlag interface {
	IsDirty() bool
	DirtySince() time.Time
}

// Deps are the collaborators a Server dispatches to. Agent, Diff, Revert and
// Flag are required; the rest are optional.
type Deps struct {
	Agent   Submitter
	Diff    DiffCollector
	Revert  FileReverter
	Flag    SessionFlag
	History storage.InvocationStore
	Hub     *Hub
	Metrics metrics.Recorder

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Options configures routing and limits.
type Options struct {
	// Prefix is where the bridge endpoints are mounted. Default DefaultPrefix.
	Prefix string

	// ProjectRoot is reported by the status endpoint.
	ProjectRoot string

	// RatePerMinute limits real-mode submissions. 0 disables the limiter.
	RatePerMinute int
	// Burst defaults to 1 when the limiter is enabled.
	Burst int
}

// Server is the HTTP request dispatcher.
type Server struct {
	deps      Deps
	prefix    string
	root      string
	limiter   *rate.Limiter
	metrics   metrics.Recorder
	startTime time.Time
	log       zerolog.Logger

	handlerOnce sync.Once
	handler     http.Handler
}

// New creates a Server.
func New(deps Deps, opts Options, log zerolog.Logger) *Server {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	s := &Server{
		deps:      deps,
		prefix:    opts.Prefix,
		root:      opts.ProjectRoot,
		metrics:   rec,
		startTime: time.Now(),
		log:       log.With().Str("component", "server").Logger(),
	}
	if opts.RatePerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), burst)
	}
	if deps.Hub != nil && deps.Flag != nil {
		deps.Hub.SetGreeting(func() Message {
			return NewSessionStatusMessage(deps.Flag.IsDirty(), deps.Flag.DirtySince())
		})
	}
	return s
}

// Prefix returns the mount point of the bridge endpoints.
func (s *Server) Prefix() string {
	return s.prefix
}

// Handler returns the router. It is built once.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.createRouter()
	})
	return s.handler
}

// InvocationStarted implements agent.Observer.
func (s *Server) InvocationStarted(o *agent.Outcome) {
	s.broadcast(NewInvocationStartedMessage(o.ID, truncate(o.Prompt, eventPromptLimit), o.FocusPath))
}

// InvocationFinished implements agent.Observer. It records the run in the
// history store and metrics and announces it to subscribers.
func (s *Server) InvocationFinished(o *agent.Outcome) {
	code := ""
	errMsg := ""
	if o.Err != nil {
		code, errMsg = errorCodeAndMessage(o.Err)
	}
	res := o.Result

	s.metrics.ObserveInvocation(code, res.Duration)

	if s.deps.History != nil {
		inv := &storage.Invocation{
			ID:          o.ID,
			Prompt:      o.Prompt,
			FocusPath:   o.FocusPath,
			StartedAt:   o.StartedAt,
			Duration:    res.Duration,
			ExitCode:    res.ExitCode,
			Succeeded:   res.Succeeded,
			TimedOut:    res.TimedOut,
			StdoutBytes: len(res.Stdout),
			StderrBytes: len(res.Stderr),
			ErrorCode:   code,
		}
		// History is best effort; the caller still gets its result.
		if err := s.deps.History.SaveInvocation(inv); err != nil {
			s.log.Error().Err(err).Str("invocation_id", o.ID).Msg("failed to save invocation")
		}
	}

	s.broadcast(NewInvocationFinishedMessage(InvocationFinishedPayload{
		InvocationID: o.ID,
		Success:      res.Succeeded,
		Code:         res.ExitCode,
		TimedOut:     res.TimedOut,
		DurationMs:   res.Duration.Milliseconds(),
		Error:        errMsg,
		ErrorCode:    code,
	}))
}

// NotifyFileReverted announces a restored file. Install it with
// actions.Reverter.SetRevertedCallback.
func (s *Server) NotifyFileReverted(file string) {
	s.broadcast(NewFileRevertedMessage(file))
}

var _ agent.Observer = (*Server)(nil)

func (s *Server) broadcast(msg Message) {
	if s.deps.Hub != nil {
		s.deps.Hub.Broadcast(msg)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
