package api

import (
	"net/http"
	"time"

	"github.com/ayusman/campuswatch/internal/store"
)

// JournalHandler serves GET /api/journal?limit=N.
type JournalHandler struct {
	store *store.Store
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(s *store.Store) *JournalHandler {
	return &JournalHandler{store: s}
}

// failureWindow is the period RecentFailures counts over.
const failureWindow = 24 * time.Hour

type journalResponse struct {
	Notifications  []*store.Notification `json:"notifications"`
	Commands       []*store.CommandEntry `json:"commands"`
	RecentFailures int                   `json:"recent_failures"`
}

func (h *JournalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, ok := queryInt(r, "limit", store.DefaultListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	notifications, err := h.store.Notifications().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}
	commands, err := h.store.Commands().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commands")
		return
	}

	failures, err := h.store.Commands().CountFailures(time.Now().Add(-failureWindow))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count failures")
		return
	}

	writeJSON(w, http.StatusOK, journalResponse{
		Notifications:  notifications,
		Commands:       commands,
		RecentFailures: failures,
	})
}
