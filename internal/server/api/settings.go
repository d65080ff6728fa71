package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
)

// SettingsHandler serves /api/settings and /api/settings/adjust.
type SettingsHandler struct {
	pipeline Pipeline
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(p Pipeline) *SettingsHandler {
	return &SettingsHandler{pipeline: p}
}

type adjustRequest struct {
	Knob  config.Knob `json:"knob"`
	Steps int         `json:"steps"`
}

type knobResponse struct {
	Knob  config.Knob `json:"knob"`
	Value float64     `json:"value"`
	Min   float64     `json:"min"`
	Max   float64     `json:"max"`
	Step  float64     `json:"step"`
}

type settingsResponse struct {
	Settings config.Settings `json:"settings"`
	Knobs    []knobResponse  `json:"knobs"`
}

func newSettingsResponse(s config.Settings) settingsResponse {
	resp := settingsResponse{Settings: s, Knobs: make([]knobResponse, 0, len(config.Knobs))}
	for _, k := range config.Knobs {
		b, _ := k.Bounds()
		v, _ := s.Get(k)
		resp.Knobs = append(resp.Knobs, knobResponse{Knob: k, Value: v, Min: b.Min, Max: b.Max, Step: b.Step})
	}
	return resp
}

// ServeHTTP implements http.Handler.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/settings":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, newSettingsResponse(h.pipeline.Settings()))
		case http.MethodPut:
			h.put(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "/api/settings/adjust":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.adjust(w, r)
	default:
		http.NotFound(w, r)
	}
}

// put overlays the request body on the current settings, so a partial
// document changes only the fields it names.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	next := h.pipeline.Settings()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.pipeline.ApplySettings(next); err != nil {
		writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(h.pipeline.Settings()))
}

func (h *SettingsHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if _, ok := req.Knob.Bounds(); !ok {
		writeError(w, http.StatusBadRequest, "Unknown knob")
		return
	}
	if _, err := h.pipeline.Adjust(req.Knob, req.Steps); err != nil {
		writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(h.pipeline.Settings()))
}

// writeSettingsError maps rejected settings to 422 and anything else, such
// as a failed restart, to 500.
func writeSettingsError(w http.ResponseWriter, err error) {
	if errors.Is(err, config.ErrInvalid) || errors.Is(err, gesture.ErrInvalidThresholds) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
