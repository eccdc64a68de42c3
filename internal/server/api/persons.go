package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/frame"
	"github.com/ayusman/campuswatch/internal/gateway"
	"github.com/ayusman/campuswatch/internal/liveview"
)

// PersonsHandler manages known persons.
//
//	GET    /api/persons
//	POST   /api/persons
//	DELETE /api/persons/{id}
type PersonsHandler struct {
	app *app.App
}

// NewPersonsHandler creates a new PersonsHandler.
func NewPersonsHandler(a *app.App) *PersonsHandler {
	return &PersonsHandler{app: a}
}

type createPersonRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
	Image string `json:"image"`
}

type listPersonsResponse struct {
	Persons []gateway.Person `json:"persons"`
}

func (h *PersonsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/persons"), "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid person id")
		return
	}
	h.delete(w, r, id)
}

func (h *PersonsHandler) list(w http.ResponseWriter, r *http.Request) {
	persons, err := h.app.Gateway().Persons(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to load persons")
		return
	}
	writeJSON(w, http.StatusOK, listPersonsResponse{Persons: persons})
}

func (h *PersonsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if _, err := frame.Inspect(req.Image); err != nil {
		writeError(w, http.StatusBadRequest, "A face image is required")
		return
	}

	res, err := h.app.Commands().AddPerson(r.Context(), gateway.NewPerson{
		Name:  strings.TrimSpace(req.Name),
		Notes: req.Notes,
		Image: req.Image,
	})
	writeCommandResult(w, string(liveview.CommandAddPerson), res, err)
}

func (h *PersonsHandler) delete(w http.ResponseWriter, r *http.Request, id int64) {
	res, err := h.app.Commands().DeletePerson(r.Context(), id)
	writeCommandResult(w, string(liveview.CommandDeletePerson), res, err)
}
