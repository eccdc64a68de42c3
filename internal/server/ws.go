package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/liveview"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// snapshotMessage is pushed to websocket clients on every store change.
type snapshotMessage struct {
	Type     string            `json:"type"`
	Snapshot liveview.Snapshot `json:"snapshot"`
	Busy     []string          `json:"busy"`
}

// LiveHandler pushes live view snapshots and notifications over a
// websocket. Each connection is a viewer: the live view stays open while at
// least one is connected.
type LiveHandler struct {
	app    *app.App
	logger zerolog.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(a *app.App, l zerolog.Logger) *LiveHandler {
	return &LiveHandler{app: a, logger: l}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	view, release, err := h.app.AcquireView()
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "live view unavailable"),
			time.Now().Add(writeWait))
		return
	}
	defer release()

	snapshots, cancelSnapshots := view.Store().Subscribe()
	defer cancelSnapshots()
	events, cancelEvents := h.app.Broadcaster().Subscribe()
	defer cancelEvents()

	// Reads only detect the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("Live viewer connected")
	defer h.logger.Debug().Str("remote", r.RemoteAddr).Msg("Live viewer disconnected")

	for {
		var msg any
		select {
		case <-gone:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			msg = snapshotMessage{Type: "snapshot", Snapshot: snap, Busy: view.Commands().Busy()}
		case e, ok := <-events:
			if !ok {
				return
			}
			msg = e
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
