package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/gateway"
	"github.com/ayusman/campuswatch/internal/liveview"
)

// CommandsHandler runs camera commands: POST /api/commands/{name}.
type CommandsHandler struct {
	app *app.App
}

// NewCommandsHandler creates a new CommandsHandler.
func NewCommandsHandler(a *app.App) *CommandsHandler {
	return &CommandsHandler{app: a}
}

type commandResponse struct {
	Command  string `json:"command"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func (h *CommandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/commands"), "/")
	cmd, err := liveview.ParseCommandName(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown command")
		return
	}

	res, err := h.app.Commands().Run(r.Context(), cmd)
	writeCommandResult(w, string(cmd), res, err)
}

// writeCommandResult maps a command outcome to a response: 409 while the
// same command is outstanding, 422 when the backend refused it and 502 when
// the backend could not be reached.
func writeCommandResult(w http.ResponseWriter, cmd string, res gateway.CommandResult, err error) {
	resp := commandResponse{
		Command:  cmd,
		Success:  res.Success,
		Message:  res.Message,
		Filename: res.Filename,
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, liveview.ErrCommandBusy):
		writeError(w, http.StatusConflict, "Command already in progress")
	case errors.Is(err, liveview.ErrViewClosed):
		writeError(w, http.StatusServiceUnavailable, "Live view closed")
	case errors.Is(err, liveview.ErrCommandRejected):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		writeError(w, http.StatusBadGateway, "Backend unavailable")
	}
}
