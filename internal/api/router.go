package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/trackers", func(r chi.Router) {
			r.Get("/", s.handleListTrackers)
			r.Get("/{id}", s.handleGetTracker)
		})
	})

	return r
}

// handleHealth returns the bridge health status including stream liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"status":        "ok",
		"version":       s.version,
		"stream_status": string(s.devices.StreamStatus()),
		"trackers":      len(s.devices.Devices()),
	}
	if hb := s.devices.LastHeartbeat(); !hb.IsZero() {
		doc["heartbeat_age_seconds"] = time.Since(hb).Seconds()
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleListTrackers returns the state of every managed tracker.
func (s *Server) handleListTrackers(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	out := make([]any, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{"trackers": out})
}

// handleGetTracker returns the state of one tracker.
func (s *Server) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d := s.devices.Device(id)
	if d == nil {
		writeError(w, http.StatusNotFound, "tracker not found")
		return
	}
	writeJSON(w, http.StatusOK, d.State())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
