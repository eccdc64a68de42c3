package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func serve(s http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Logger: zerolog.Nop()})

	t.Run("reports uptime without console fields", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/health")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, ok := response["uptime"]; !ok {
			t.Error("expected 'uptime' field in response")
		}
		for _, field := range []string{"viewers", "backend"} {
			if _, ok := response[field]; ok {
				t.Errorf("unexpected %q field without an app", field)
			}
		}
	})

	t.Run("rejects writes", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			if rec := serve(s, method, "/api/health"); rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_HealthWithApp(t *testing.T) {
	ts, a, backend := newTestConsole(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("failed to get health: %v", err)
	}
	defer resp.Body.Close()

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["backend"] != backend.URL() {
		t.Errorf("expected backend %s, got %v", backend.URL(), response["backend"])
	}
	if response["viewers"] != float64(a.Viewers()) {
		t.Errorf("expected viewers %d, got %v", a.Viewers(), response["viewers"])
	}
}

func TestServer_ConsoleRoutesRequireApp(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/live", "/api/live/ws", "/api/commands/start-camera", "/api/alerts", "/api/persons", "/api/journal"} {
		if rec := serve(s, http.MethodGet, path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticConsole(t *testing.T) {
	dir := t.TempDir()
	index := "<html><body>campuswatch</body></html>"
	script := "connectLive('/api/live/ws');"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644); err != nil {
		t.Fatalf("failed to write index: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "js"), 0755); err != nil {
		t.Fatalf("failed to create js dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "js", "live.js"), []byte(script), 0644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	s := New(Config{StaticDir: dir})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, index},
		{"/js/live.js", http.StatusOK, script},
		{"/missing.html", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := serve(s, http.MethodGet, tt.path)
		if rec.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, rec.Code)
			continue
		}
		if tt.body != "" && rec.Body.String() != tt.body {
			t.Errorf("%s: expected body %q, got %q", tt.path, tt.body, rec.Body.String())
		}
	}

	// API routes win over the static catch-all.
	if rec := serve(s, http.MethodGet, "/api/health"); rec.Code != http.StatusOK {
		t.Errorf("expected health to stay reachable, got %d", rec.Code)
	}
	if rec := serve(s, http.MethodGet, "/api/unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown api path, got %d", rec.Code)
	}
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	if rec := serve(s, http.MethodGet, "/"); rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_ListenAndServe(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
