package server

import (
	"net/http"

	"github.com/ayusman/campuswatch/internal/liveview"
)

type liveResponse struct {
	Snapshot liveview.Snapshot    `json:"snapshot"`
	Busy     []string             `json:"busy"`
	Alerts   liveview.AlertCounts `json:"alert_counts"`
}

// handleLive returns the open live view's snapshot. 503 when nobody is
// watching.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, ok := s.config.App.CurrentView()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "No live view open"})
		return
	}

	snap := v.Snapshot()
	writeJSON(w, http.StatusOK, liveResponse{
		Snapshot: snap,
		Busy:     v.Commands().Busy(),
		Alerts:   liveview.CountAlerts(snap.Alerts),
	})
}

// handleTasks returns per-task polling status.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, ok := s.config.App.CurrentView()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "No live view open"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"generation": v.Scheduler().Generation(),
		"tasks":      v.Scheduler().Tasks(),
	})
}
