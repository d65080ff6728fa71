package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mudra-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// reloadCounter counts classifier reloads.
type reloadCounter struct {
	n   int
	err error
}

func (r *reloadCounter) reload() error {
	r.n++
	return r.err
}

func palmPoints() []detector.Point3D {
	h := detector.OpenPalmLandmarks()
	return h.Points[:]
}

func storedTemplate(t *testing.T, s *store.Store, id, name string) *store.Template {
	t.Helper()
	h := detector.OpenPalmLandmarks()
	tmpl := &store.Template{
		ID:        id,
		Name:      name,
		Tolerance: 1.5,
		Landmarks: h.Normalize().Points[:],
	}
	if err := s.Templates().Create(tmpl); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	return tmpl
}

func TestTemplateHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewTemplateHandler(s, nil, nil)
	storedTemplate(t, s, "test-template-1", "open_palm")

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listTemplatesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Templates) != 1 {
		t.Fatalf("expected 1 template, got %d", len(response.Templates))
	}
	if response.Templates[0].ID != "test-template-1" || response.Templates[0].Name != "open_palm" {
		t.Errorf("unexpected template %+v", response.Templates[0])
	}
	if len(response.Templates[0].Landmarks) != detector.NumLandmarks {
		t.Errorf("expected %d landmarks, got %d", detector.NumLandmarks, len(response.Templates[0].Landmarks))
	}
}

func TestTemplateHandler_Create(t *testing.T) {
	s := newTestStore(t)
	counter := &reloadCounter{}
	handler := NewTemplateHandler(s, counter.reload, nil)

	body, _ := json.Marshal(templateRequest{Name: "palm", Tolerance: 0.8, Landmarks: palmPoints()})
	req := httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response templateResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID == "" {
		t.Error("expected non-empty ID in response")
	}
	if response.Tolerance != 0.8 {
		t.Errorf("expected tolerance 0.8, got %f", response.Tolerance)
	}
	// Stored relative to the wrist
	if w := response.Landmarks[detector.Wrist]; w != (detector.Point3D{}) {
		t.Errorf("wrist = %+v, want origin", w)
	}
	if counter.n != 1 {
		t.Errorf("expected 1 reload, got %d", counter.n)
	}

	created, err := s.Templates().GetByID(response.ID)
	if err != nil {
		t.Fatalf("failed to get created template: %v", err)
	}
	if created.Name != "palm" {
		t.Errorf("stored template name = %q, want palm", created.Name)
	}
}

func TestTemplateHandler_Create_DefaultTolerance(t *testing.T) {
	s := newTestStore(t)
	handler := NewTemplateHandler(s, nil, nil)

	body, _ := json.Marshal(templateRequest{Name: "palm", Landmarks: palmPoints()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewReader(body)))

	var response templateResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Tolerance != defaultTolerance {
		t.Errorf("expected tolerance %v, got %v", defaultTolerance, response.Tolerance)
	}
}

func TestTemplateHandler_Create_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "invalid json", http.StatusBadRequest},
		{"missing name", mustJSON(templateRequest{Landmarks: palmPoints()}), http.StatusBadRequest},
		{"short hand", mustJSON(templateRequest{Name: "x", Landmarks: palmPoints()[:5]}), http.StatusBadRequest},
		{"negative tolerance", mustJSON(templateRequest{Name: "x", Tolerance: -1, Landmarks: palmPoints()}), http.StatusBadRequest},
		{"duplicate name", mustJSON(templateRequest{Name: "taken", Landmarks: palmPoints()}), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			storedTemplate(t, s, "existing", "taken")
			counter := &reloadCounter{}
			handler := NewTemplateHandler(s, counter.reload, nil)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewBufferString(tt.body)))

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if counter.n != 0 {
				t.Error("rejected request reloaded the classifier")
			}
		})
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func TestTemplateHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewTemplateHandler(s, nil, nil)
	storedTemplate(t, s, "test-template-1", "open_palm")

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates/test-template-1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var response templateResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Name != "open_palm" {
			t.Errorf("expected name open_palm, got %q", response.Name)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates/nonexistent", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestTemplateHandler_Update(t *testing.T) {
	s := newTestStore(t)
	counter := &reloadCounter{err: errors.New("reload failed")}
	handler := NewTemplateHandler(s, counter.reload, nil)
	storedTemplate(t, s, "test-template-1", "open_palm")

	body := mustJSON(map[string]any{"name": "palm", "tolerance": 2.5})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/templates/test-template-1", bytes.NewBufferString(body)))

	// A failed reload is logged, the stored change stands
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if counter.n != 1 {
		t.Errorf("expected 1 reload, got %d", counter.n)
	}

	updated, err := s.Templates().GetByID("test-template-1")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "palm" || updated.Tolerance != 2.5 {
		t.Errorf("stored template = %q %v, want palm 2.5", updated.Name, updated.Tolerance)
	}
	if len(updated.Landmarks) != detector.NumLandmarks {
		t.Errorf("landmarks lost on update: %d", len(updated.Landmarks))
	}

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/templates/nonexistent", bytes.NewBufferString(body)))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("bad landmarks", func(t *testing.T) {
		bad := mustJSON(templateRequest{Landmarks: palmPoints()[:3]})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/templates/test-template-1", bytes.NewBufferString(bad)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}

func TestTemplateHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	counter := &reloadCounter{}
	handler := NewTemplateHandler(s, counter.reload, nil)
	storedTemplate(t, s, "test-template-1", "open_palm")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/templates/test-template-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if _, err := s.Templates().GetByID("test-template-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("template still stored: %v", err)
	}
	if counter.n != 1 {
		t.Errorf("expected 1 reload, got %d", counter.n)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/templates/test-template-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestTemplateHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	handler := NewTemplateHandler(s, nil, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/templates"},
		{http.MethodDelete, "/api/templates"},
		{http.MethodPatch, "/api/templates"},
		{http.MethodPost, "/api/templates/some-id"},
		{http.MethodPatch, "/api/templates/some-id"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
			}
		})
	}
}
