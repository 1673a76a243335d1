package server

import (
	"net/http"
	"strconv"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
	"github.com/pseudocoder/devbridge/internal/storage"
)

// maxHistoryLimit caps ?limit= on the history endpoint.
const maxHistoryLimit = 200

type historyResponse struct {
	Success     bool                  `json:"success"`
	Invocations []*storage.Invocation `json:"invocations"`
}

// handleHistory lists recent invocations, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, historyResponse{Success: true, Invocations: []*storage.Invocation{}})
		return
	}

	limit := storage.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, apperrors.InvalidParam("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	invs, err := s.deps.History.ListInvocations(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list invocations")
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, Invocations: invs})
}
