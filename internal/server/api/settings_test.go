package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
)

// fakePipeline records calls from the handlers.
type fakePipeline struct {
	settings config.Settings
	running  bool
	applied  int
	startErr error
	reloads  int
	stats    app.Stats
	state    app.State
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{settings: config.Default()}
}

func (p *fakePipeline) Settings() config.Settings { return p.settings }

func (p *fakePipeline) ApplySettings(next config.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	p.settings = next
	p.applied++
	return nil
}

func (p *fakePipeline) Adjust(k config.Knob, steps int) (config.Settings, error) {
	next, err := p.settings.Adjust(k, steps)
	if err != nil {
		return config.Settings{}, err
	}
	return next, p.ApplySettings(next)
}

func (p *fakePipeline) Running() bool { return p.running }

func (p *fakePipeline) Start() error {
	if p.startErr != nil {
		return p.startErr
	}
	p.running = true
	return nil
}

func (p *fakePipeline) Stop() error {
	p.running = false
	return nil
}

func (p *fakePipeline) Stats() app.Stats     { return p.stats }
func (p *fakePipeline) State() app.State     { return p.state }
func (p *fakePipeline) LoadTemplates() error { p.reloads++; return nil }

func TestSettingsHandler_Get(t *testing.T) {
	p := newFakePipeline()
	handler := NewSettingsHandler(p)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response settingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Settings.Equal(config.Default()) {
		t.Errorf("settings = %+v, want defaults", response.Settings)
	}
	if len(response.Knobs) != len(config.Knobs) {
		t.Fatalf("expected %d knobs, got %d", len(config.Knobs), len(response.Knobs))
	}
	for _, k := range response.Knobs {
		if k.Knob == config.KnobPinch && (k.Value != 2.0 || k.Min != 0.5 || k.Max != 10 || k.Step != 0.05) {
			t.Errorf("pinch knob = %+v", k)
		}
	}
}

func TestSettingsHandler_Put(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		applied int
	}{
		{"partial update", `{"pinch_threshold": 1.5}`, http.StatusOK, 1},
		{"delegate", `{"delegate": "gpu"}`, http.StatusOK, 1},
		{"invalid json", `{`, http.StatusBadRequest, 0},
		{"inverted thresholds", `{"pinch_threshold": 4, "pinch_release_threshold": 3}`, http.StatusUnprocessableEntity, 0},
		{"out of range", `{"max_hands": 5}`, http.StatusUnprocessableEntity, 0},
		{"bad color range", `{"color_range": "wide"}`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePipeline()
			handler := NewSettingsHandler(p)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if p.applied != tt.applied {
				t.Errorf("applied %d times, want %d", p.applied, tt.applied)
			}
		})
	}

	t.Run("keeps unnamed fields", func(t *testing.T) {
		p := newFakePipeline()
		handler := NewSettingsHandler(p)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(`{"delegate":"gpu"}`)))

		if p.settings.Delegate != detector.DelegateGPU {
			t.Errorf("delegate = %s, want gpu", p.settings.Delegate)
		}
		if p.settings.PinchThreshold != 2.0 || p.settings.MaxHands != 2 {
			t.Errorf("unnamed fields changed: %+v", p.settings)
		}
	})
}

func TestSettingsHandler_Adjust(t *testing.T) {
	tests := []struct {
		name string
		req  adjustRequest
		want int
	}{
		{"step down", adjustRequest{Knob: config.KnobPinch, Steps: -1}, http.StatusOK},
		{"clamped", adjustRequest{Knob: config.KnobMaxHands, Steps: 10}, http.StatusOK},
		{"unknown knob", adjustRequest{Knob: "volume", Steps: 1}, http.StatusBadRequest},
		{"crosses release", adjustRequest{Knob: config.KnobPinch, Steps: 40}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePipeline()
			handler := NewSettingsHandler(p)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/settings/adjust", bytes.NewBufferString(mustJSON(tt.req))))
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("applies step", func(t *testing.T) {
		p := newFakePipeline()
		handler := NewSettingsHandler(p)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/settings/adjust", bytes.NewBufferString(`{"knob":"pinch_threshold","steps":-1}`)))

		var response settingsResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatal(err)
		}
		if response.Settings.PinchThreshold != 1.95 {
			t.Errorf("pinch threshold = %v, want 1.95", response.Settings.PinchThreshold)
		}
	})
}

func TestSettingsHandler_Methods(t *testing.T) {
	handler := NewSettingsHandler(newFakePipeline())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/settings", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/settings", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/settings/adjust", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/settings/other", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}
}

func TestWriteSettingsError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSettingsError(rec, errors.New("restart failed"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}
