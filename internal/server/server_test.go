package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	// Create a temporary directory with a static file
	tmpDir, err := os.MkdirTemp("", "mudra-server-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create a test HTML file
	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	// Create a CSS file for testing direct file access
	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	t.Run("root path returns 404 when no static dir configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)

		if s == nil {
			t.Fatal("expected non-nil server")
		}

		if s.config.StaticDir != cfg.StaticDir {
			t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
		}
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{})
		var _ http.Handler = s
	})
}

// stubPipeline is a fixed pipeline that records sinks.
type stubPipeline struct {
	mu    sync.Mutex
	state app.State
	sinks []app.StateSink
}

func (p *stubPipeline) Settings() config.Settings           { return config.Default() }
func (p *stubPipeline) ApplySettings(config.Settings) error { return nil }
func (p *stubPipeline) Running() bool                       { return p.state.Running }
func (p *stubPipeline) Start() error                        { return nil }
func (p *stubPipeline) Stop() error                         { return nil }
func (p *stubPipeline) Stats() app.Stats                    { return app.Stats{Converted: 7} }
func (p *stubPipeline) State() app.State                    { return p.state }
func (p *stubPipeline) LoadTemplates() error                { return nil }
func (p *stubPipeline) Adjust(config.Knob, int) (config.Settings, error) {
	return config.Default(), nil
}

func (p *stubPipeline) AddSink(s app.StateSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

func (p *stubPipeline) publish(s app.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sink := range p.sinks {
		sink.SetState(s)
	}
}

func dialState(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) app.State {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var s app.State
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("read state: %v", err)
	}
	return s
}

func TestServer_PipelineRoutes(t *testing.T) {
	p := &stubPipeline{state: app.State{Running: true, Hands: 2}}
	s := New(Config{Pipeline: p})

	if len(p.sinks) != 1 || s.Hub() == nil {
		t.Fatal("state hub not registered as a sink")
	}

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/settings", http.StatusOK},
		{http.MethodGet, "/api/stats", http.StatusOK},
		{http.MethodGet, "/api/state", http.StatusOK},
		{http.MethodGet, "/api/pipeline", http.StatusOK},
		// Templates and runs need a store
		{http.MethodGet, "/api/templates", http.StatusNotFound},
		{http.MethodGet, "/api/runs", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var health map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&health)
	if health["running"] != true {
		t.Errorf("health running = %v, want true", health["running"])
	}
}

func TestStateHub(t *testing.T) {
	p := &stubPipeline{state: app.State{Running: true}}
	s := New(Config{Pipeline: p})
	ts := httptest.NewServer(s)
	defer ts.Close()

	conn := dialState(t, ts)

	// The latest state arrives first
	if got := readState(t, conn); !got.Running || got.Pinching {
		t.Errorf("initial state = %+v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	p.publish(app.State{Running: true, Pinching: true, Metric: 1.5, HasMetric: true})
	if got := readState(t, conn); !got.Pinching || got.Metric != 1.5 {
		t.Errorf("published state = %+v", got)
	}

	s.Hub().Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after Close")
	}
	for s.Hub().Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after Close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStateHub_SlowClientDoesNotBlock(t *testing.T) {
	p := &stubPipeline{}
	s := New(Config{Pipeline: p})
	ts := httptest.NewServer(s)
	defer ts.Close()

	dialState(t, ts)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*sendBuffer; i++ {
			p.publish(app.State{Timestamp: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on an idle client")
	}
}
