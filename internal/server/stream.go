package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/frame"
)

// StreamHandler serves the live view's current frame as MJPEG. A stream is
// a viewer and keeps the live view open.
type StreamHandler struct {
	app    *app.App
	logger zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(a *app.App, l zerolog.Logger) *StreamHandler {
	return &StreamHandler{app: a, logger: l}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view, release, err := h.app.AcquireView()
	if err != nil {
		http.Error(w, "Live view unavailable", http.StatusServiceUnavailable)
		return
	}
	defer release()

	snapshots, cancel := view.Store().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var last string
	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if snap.Frame == nil || snap.Frame.Data == last {
				continue
			}
			last = snap.Frame.Data

			jpeg, err := frame.JPEG(*snap.Frame)
			if err != nil {
				h.logger.Debug().Err(err).Msg("Skipping undecodable frame")
				continue
			}

			// Write MJPEG frame
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
			if _, err := w.Write(jpeg); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
