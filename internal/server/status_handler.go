package server

import (
	"net/http"
	"time"
)

// StatusResponse is the body of GET {prefix}/status.
type StatusResponse struct {
	Success     bool   `json:"success"`
	Dirty       bool   `json:"dirty"`
	DirtySince  int64  `json:"dirtySince,omitempty"`
	Subscribers int    `json:"subscribers"`
	ProjectRoot string `json:"projectRoot"`
	Uptime      string `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Success:     true,
		ProjectRoot: s.root,
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.deps.Flag != nil && s.deps.Flag.IsDirty() {
		resp.Dirty = true
		if since := s.deps.Flag.DirtySince(); !since.IsZero() {
			resp.DirtySince = since.UnixMilli()
		}
	}
	if s.deps.Hub != nil {
		resp.Subscribers = s.deps.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
