package server

import (
	"context"
	"net/http"

	"github.com/pseudocoder/devbridge/internal/agent"
	apperrors "github.com/pseudocoder/devbridge/internal/errors"
	"github.com/pseudocoder/devbridge/internal/runner"
)

// submitRequest is the body of POST {prefix}. inspPath and test are the
// field names older UI builds send.
type submitRequest struct {
	Prompt    string `json:"prompt"`
	FocusPath string `json:"focusPath"`
	InspPath  string `json:"inspPath"`
	TestMode  bool   `json:"testMode"`
	Test      bool   `json:"test"`
}

func (r submitRequest) focusPath() string {
	if r.FocusPath != "" {
		return r.FocusPath
	}
	return r.InspPath
}

func (r submitRequest) testMode() bool {
	return r.TestMode || r.Test
}

// submitResponse mirrors the agent's result.
type submitResponse struct {
	Success      bool   `json:"success"`
	Output       string `json:"output"`
	Error        string `json:"error,omitempty"`
	Code         int    `json:"code"`
	Test         bool   `json:"test,omitempty"`
	InvocationID string `json:"invocationId,omitempty"`
}

// runResponse is the body of a completed agent run. error always carries the
// agent's stderr, even when it is empty.
type runResponse struct {
	Success      bool   `json:"success"`
	Output       string `json:"output"`
	Error        string `json:"error"`
	Code         int    `json:"code"`
	InvocationID string `json:"invocationId"`
}

// handleSubmit runs the agent for one prompt.
//
// The prompt is validated before anything else. Test mode answers with a mock
// without starting a process. Otherwise the agent runs detached from the
// request context, so a client that disconnects does not kill it; only the
// agent timeout does.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}
	if req.Prompt == "" {
		writeJSONError(w, apperrors.MissingField("Prompt is required"))
		return
	}

	focus := req.focusPath()
	if req.testMode() {
		s.log.Info().Str("prompt", truncate(req.Prompt, eventPromptLimit)).Msg("test mode submit")
		writeJSON(w, http.StatusOK, submitResponse{
			Success: true,
			Output:  agent.MockOutput(req.Prompt, focus),
			Code:    0,
			Test:    true,
		})
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.IncRateLimited()
		writeJSONError(w, apperrors.RateLimited())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	outcome, err := s.deps.Agent.Invoke(ctx, agent.Request{Prompt: req.Prompt, FocusPath: focus})
	if outcome == nil {
		// Rejected before the agent started: validation or probe failure.
		resp := errorResponse{Error: failureMessage(err)}
		if apperrors.IsCode(err, apperrors.CodeAgentNotFound) {
			resp.Code = intPtr(runner.ExitSpawnFailed)
		}
		writeJSON(w, apperrors.HTTPStatus(err), resp)
		return
	}

	res := outcome.Result
	if err == nil {
		writeJSON(w, http.StatusOK, runResponse{
			Success:      true,
			Output:       res.Stdout,
			Error:        res.Stderr,
			Code:         res.ExitCode,
			InvocationID: outcome.ID,
		})
		return
	}

	writeJSON(w, apperrors.HTTPStatus(err), submitResponse{
		Success:      false,
		Output:       res.Stdout,
		Error:        failureMessage(err),
		Code:         res.ExitCode,
		InvocationID: outcome.ID,
	})
}

// failureMessage is the user-facing text for err.
func failureMessage(err error) string {
	_, msg := errorCodeAndMessage(err)
	return msg
}
