package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/liveview"
)

// AlertsHandler lists and acknowledges alerts.
//
//	GET  /api/alerts?filter=all|unacknowledged
//	POST /api/alerts/{id}/acknowledge
type AlertsHandler struct {
	app *app.App
}

// NewAlertsHandler creates a new AlertsHandler.
func NewAlertsHandler(a *app.App) *AlertsHandler {
	return &AlertsHandler{app: a}
}

type listAlertsResponse struct {
	Filter liveview.AlertFilter `json:"filter"`
	Alerts []liveview.Alert     `json:"alerts"`
	Counts liveview.AlertCounts `json:"counts"`
	Live   bool                 `json:"live"`
}

func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/alerts"), "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	// Item endpoint: /api/alerts/{id}/acknowledge
	idPart, action, ok := strings.Cut(path, "/")
	if !ok || action != "acknowledge" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id")
		return
	}
	h.acknowledge(w, r, id)
}

// list serves the live view's alerts when one is open, otherwise it asks
// the backend directly.
func (h *AlertsHandler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := liveview.ParseAlertFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter")
		return
	}

	var alerts []liveview.Alert
	live := false
	if v, ok := h.app.CurrentView(); ok {
		alerts = v.Snapshot().Alerts
		live = true
	} else {
		remote, err := h.app.Gateway().Alerts(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "Failed to fetch alerts")
			return
		}
		alerts = make([]liveview.Alert, 0, len(remote))
		for _, a := range remote {
			alerts = append(alerts, liveview.Alert{Alert: a})
		}
	}

	writeJSON(w, http.StatusOK, listAlertsResponse{
		Filter: filter,
		Alerts: liveview.FilterAlerts(alerts, filter),
		Counts: liveview.CountAlerts(alerts),
		Live:   live,
	})
}

func (h *AlertsHandler) acknowledge(w http.ResponseWriter, r *http.Request, id int64) {
	res, err := h.app.Commands().AcknowledgeAlert(r.Context(), id)
	writeCommandResult(w, string(liveview.CommandAcknowledgeAlert), res, err)
}
