package server

import (
	"net/http"

	"github.com/pseudocoder/devbridge/internal/actions"
	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

type revertRequest struct {
	Filename string `json:"filename"`
}

type revertResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleRevert restores one file from the last commit.
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req revertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := s.deps.Revert.Revert(r.Context(), req.Filename); err != nil {
		// Validation failures never reached the VCS.
		if !apperrors.IsCode(err, apperrors.CodeValidationMissingField) &&
			!apperrors.IsCode(err, apperrors.CodeValidationInvalidPath) {
			s.metrics.IncRevert(false)
		}
		writeJSONError(w, err)
		return
	}

	s.metrics.IncRevert(true)
	writeJSON(w, http.StatusOK, revertResponse{
		Success: true,
		Message: actions.RevertedMessage(req.Filename),
	})
}
