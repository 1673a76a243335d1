package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// createRouter builds the HTTP routes.
//
//	GET  /health
//	GET  /metrics            when a metrics handler is configured
//	POST {prefix}            submit a prompt
//	GET  {prefix}/diff       list changed files with diffs
//	POST {prefix}/revert     restore one file
//	GET  {prefix}/history    recent invocations
//	GET  {prefix}/status     session state
//	GET  {prefix}/events     WebSocket event stream, when a hub is configured
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.MetricsHandler)
	}

	r.Route(s.prefix, func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/diff", s.handleDiff)
		r.Post("/revert", s.handleRevert)
		r.Get("/history", s.handleHistory)
		r.Get("/status", s.handleStatus)
		if s.deps.Hub != nil {
			r.Method(http.MethodGet, "/events", s.deps.Hub)
		}
	})

	return r
}

// requestLogger logs each request and records its latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		// Unmatched paths share one label.
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.ObserveHTTP(route, r.Method, status, elapsed)

		ev := s.log.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
