// Package api provides HTTP API handlers for the mudra pipeline.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
)

// Pipeline is the part of the running application the handlers drive.
type Pipeline interface {
	Settings() config.Settings
	ApplySettings(next config.Settings) error
	Adjust(k config.Knob, steps int) (config.Settings, error)
	Running() bool
	Start() error
	Stop() error
	Stats() app.Stats
	State() app.State
	LoadTemplates() error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
