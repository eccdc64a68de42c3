// Package gatewaytest provides an in-process detection backend for tests.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/campuswatch/internal/gateway"
)

const timeLayout = "2006-01-02T15:04:05"

// Backend is a fake detection backend speaking the backend's REST dialect.
// Fields are guarded by the backend's lock; change them with Update.
type Backend struct {
	server *httptest.Server

	mu        sync.Mutex
	Camera    gateway.CameraStatus
	FrameData string
	Stats     gateway.Statistics
	Alerts    []gateway.Alert
	Persons   []gateway.Person
	Activity  map[string]gateway.PersonActivity
	Intruders []gateway.Intruder
	// Delay is applied to every request before it is answered.
	Delay time.Duration

	calls    map[string]int
	failures map[string]int
	nextID   int64
}

// NewBackend starts a backend that is shut down when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		Activity: make(map[string]gateway.PersonActivity),
		calls:    make(map[string]int),
		failures: make(map[string]int),
		nextID:   100,
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the API base URL for gateway.New.
func (b *Backend) URL() string {
	return b.server.URL + "/api"
}

// Update changes backend state under its lock.
func (b *Backend) Update(fn func(b *Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// Fail makes every request to pattern answer with status. Zero clears it.
func (b *Backend) Fail(pattern string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, pattern)
		return
	}
	b.failures[pattern] = status
}

// Calls returns how many requests matched pattern, e.g. "GET /api/alerts".
func (b *Backend) Calls(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[pattern]
}

// Alert returns one alert by id.
func (b *Backend) Alert(id int64) (gateway.Alert, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.Alerts {
		if a.ID == id {
			return a, true
		}
	}
	return gateway.Alert{}, false
}

type handler func(w http.ResponseWriter, r *http.Request)

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h handler) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.calls[pattern]++
			status := b.failures[pattern]
			delay := b.Delay
			b.mu.Unlock()

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}
			if status != 0 {
				reply(w, status, map[string]any{"success": false, "message": http.StatusText(status)})
				return
			}
			h(w, r)
		})
	}

	handle("GET /api/health", b.health)
	handle("GET /api/config", b.config)
	handle("GET /api/camera/status", b.cameraStatus)
	handle("GET /api/camera/frame", b.frame)
	handle("POST /api/camera/start", b.setCamera(true))
	handle("POST /api/camera/stop", b.setCamera(false))
	handle("POST /api/camera/snapshot", b.snapshot)
	handle("POST /api/recording/start", b.setRecording(true))
	handle("POST /api/recording/stop", b.setRecording(false))
	handle("GET /api/statistics", b.statistics)
	handle("GET /api/alerts", b.alerts)
	handle("POST /api/alerts/{id}/acknowledge", b.acknowledge)
	handle("GET /api/students", b.listPersons)
	handle("POST /api/students", b.addPerson)
	handle("DELETE /api/students/{id}", b.deletePerson)
	handle("GET /api/reports/daily", b.dailyReport)
	handle("GET /api/reports/intruders", b.intruders)
	handle("GET /api/detections/recent", b.recentDetections)
	return mux
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, body map[string]any) {
	body["success"] = true
	reply(w, http.StatusOK, body)
}

func fail(w http.ResponseWriter, status int, msg string) {
	reply(w, status, map[string]any{"success": false, "message": msg})
}

func (b *Backend) health(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	running := b.Camera.Running
	b.mu.Unlock()
	reply(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().Format(timeLayout),
		"camera_running": running,
	})
}

func (b *Backend) config(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, gateway.BackendSettings{
		CameraWidth:          640,
		CameraHeight:         480,
		DetectionConfidence:  0.5,
		RecognitionThreshold: 0.6,
		EnableRecording:      true,
		EnableAlerts:         true,
	})
}

func (b *Backend) cameraStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reply(w, http.StatusOK, b.Camera)
}

func (b *Backend) frame(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	running, data := b.Camera.Running, b.FrameData
	b.mu.Unlock()

	if !running || data == "" {
		fail(w, http.StatusNotFound, "No frame available")
		return
	}
	ok(w, map[string]any{"frame": data, "timestamp": time.Now().Format(timeLayout)})
}

func (b *Backend) setCamera(running bool) handler {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.Camera.Running = running
		if !running {
			b.Camera.Recording = false
		}
		b.mu.Unlock()

		if running {
			ok(w, map[string]any{"message": "Camera started"})
		} else {
			ok(w, map[string]any{"message": "Camera stopped"})
		}
	}
}

func (b *Backend) setRecording(recording bool) handler {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if recording && !b.Camera.Running {
			reply(w, http.StatusOK, map[string]any{"success": false, "message": "Camera is not running"})
			return
		}
		b.Camera.Recording = recording
		if recording {
			ok(w, map[string]any{"message": "Recording started"})
		} else {
			ok(w, map[string]any{"message": "Recording stopped"})
		}
	}
}

func (b *Backend) snapshot(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	running := b.Camera.Running
	b.mu.Unlock()

	if !running {
		reply(w, http.StatusOK, map[string]any{"success": false, "message": "Camera is not running"})
		return
	}
	ok(w, map[string]any{"message": "Snapshot saved", "filename": "snapshot_test.jpg"})
}

func (b *Backend) statistics(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok(w, map[string]any{"statistics": b.Stats})
}

func (b *Backend) alerts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]map[string]any, 0, len(b.Alerts))
	for _, a := range b.Alerts {
		acked := 0
		if a.Acknowledged {
			acked = 1
		}
		out = append(out, map[string]any{
			"id":           a.ID,
			"timestamp":    a.Timestamp.Format(timeLayout),
			"alert_type":   a.Type,
			"person_id":    a.PersonID,
			"person_name":  a.PersonName,
			"description":  a.Description,
			"acknowledged": acked,
		})
	}
	ok(w, map[string]any{"alerts": out})
}

func (b *Backend) acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid alert id")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Alerts {
		if b.Alerts[i].ID == id {
			b.Alerts[i].Acknowledged = true
			ok(w, map[string]any{"message": "Alert acknowledged"})
			return
		}
	}
	fail(w, http.StatusNotFound, "Alert not found")
}

func (b *Backend) listPersons(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]map[string]any, 0, len(b.Persons))
	for _, p := range b.Persons {
		out = append(out, map[string]any{
			"id":         p.ID,
			"name":       p.Name,
			"date_added": p.DateAdded.Format(timeLayout),
			"image_path": p.ImagePath,
			"notes":      p.Notes,
		})
	}
	ok(w, map[string]any{"students": out})
}

func (b *Backend) addPerson(w http.ResponseWriter, r *http.Request) {
	var req gateway.NewPerson
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Image == "" {
		fail(w, http.StatusBadRequest, "Name and image are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.Persons = append(b.Persons, gateway.Person{
		ID:        b.nextID,
		Name:      req.Name,
		Notes:     req.Notes,
		DateAdded: time.Now(),
	})
	b.Stats.KnownPersons = len(b.Persons)
	ok(w, map[string]any{"message": "Student " + req.Name + " added successfully"})
}

func (b *Backend) deletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.Persons {
		if p.ID == id {
			b.Persons = append(b.Persons[:i], b.Persons[i+1:]...)
			b.Stats.KnownPersons = len(b.Persons)
			ok(w, map[string]any{"message": "Student deleted successfully"})
			return
		}
	}
	fail(w, http.StatusNotFound, "Student not found")
}

func (b *Backend) intruderList() []map[string]any {
	out := make([]map[string]any, 0, len(b.Intruders))
	for _, in := range b.Intruders {
		out = append(out, map[string]any{
			"id":              in.ID,
			"timestamp":       in.Timestamp.Format(timeLayout),
			"person_id":       in.PersonID,
			"face_image_path": in.FaceImagePath,
		})
	}
	return out
}

func (b *Backend) dailyReport(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	students := make(map[string]any, len(b.Activity))
	total := len(b.Intruders)
	for name, a := range b.Activity {
		students[name] = map[string]any{
			"count":      a.Count,
			"first_seen": a.FirstSeen.Format(timeLayout),
			"last_seen":  a.LastSeen.Format(timeLayout),
		}
		total += a.Count
	}
	ok(w, map[string]any{
		"date":             r.URL.Query().Get("date"),
		"total_detections": total,
		"students":         students,
		"intruders":        b.intruderList(),
	})
}

func (b *Backend) intruders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok(w, map[string]any{"intruders": b.intruderList()})
}

func (b *Backend) recentDetections(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]map[string]any, 0, len(b.Intruders))
	for _, in := range b.Intruders {
		out = append(out, map[string]any{
			"id":          in.ID,
			"timestamp":   in.Timestamp.Format(timeLayout),
			"is_intruder": true,
		})
	}
	ok(w, map[string]any{"detections": out})
}
