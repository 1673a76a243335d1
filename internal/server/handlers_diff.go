package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/pseudocoder/devbridge/internal/diff"
	apperrors "github.com/pseudocoder/devbridge/internal/errors"
	"github.com/pseudocoder/devbridge/internal/vcs"
)

// noChangesMessage accompanies every empty diff response.
const noChangesMessage = "No changes detected"

// diffResponse is the body of GET {prefix}/diff.
type diffResponse struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message,omitempty"`
	Files         []diff.File   `json:"files"`
	HasChanges    bool          `json:"hasChanges"`
	NeedCheckDiff *bool         `json:"needCheckDiff,omitempty"`
	Summary       *diff.Summary `json:"summary,omitempty"`
}

// handleDiff reports every changed file with its diff.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report, err := s.deps.Diff.Collect(r.Context())
	if err != nil {
		s.metrics.ObserveDiff("error", 0, 0, time.Since(start))
		s.log.Error().Err(err).Msg("diff listing failed")

		_, msg := errorCodeAndMessage(err)
		resp := errorResponse{Error: msg}
		if cmdErr := commandError(err); cmdErr != nil {
			resp.Code = intPtr(cmdErr.ExitCode)
		}
		writeJSON(w, apperrors.HTTPStatus(err), resp)
		return
	}

	switch report.Marker {
	case diff.MarkerNotChecked:
		s.metrics.ObserveDiff(string(report.Marker), 0, 0, 0)
		needCheck := false
		writeJSON(w, http.StatusOK, diffResponse{
			Success:       true,
			Message:       noChangesMessage,
			Files:         report.Files,
			NeedCheckDiff: &needCheck,
		})
		return
	case diff.MarkerNoChanges:
		s.metrics.ObserveDiff(string(report.Marker), 0, 0, time.Since(start))
		writeJSON(w, http.StatusOK, diffResponse{
			Success: true,
			Message: noChangesMessage,
			Files:   report.Files,
		})
		return
	}

	s.metrics.ObserveDiff(string(report.Marker), len(report.Files), report.Failed(), time.Since(start))
	writeJSON(w, http.StatusOK, diffResponse{
		Success:    true,
		Files:      report.Files,
		HasChanges: report.HasChanges(),
		Summary:    &report.Summary,
	})
}

// commandError returns the failed VCS command behind err, if any.
func commandError(err error) *vcs.CommandError {
	var cmdErr *vcs.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return nil
}
