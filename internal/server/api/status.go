package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/mudra/internal/store"
)

// StatusHandler serves the pipeline counters, the latest state and the
// start/stop switch.
type StatusHandler struct {
	pipeline Pipeline
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(p Pipeline) *StatusHandler {
	return &StatusHandler{pipeline: p}
}

type pipelineRequest struct {
	Running *bool `json:"running"`
}

type pipelineResponse struct {
	Running bool `json:"running"`
}

// ServeHTTP routes /api/stats, /api/state and /api/pipeline.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/stats":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.pipeline.Stats())
	case "/api/state":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.pipeline.State())
	case "/api/pipeline":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, pipelineResponse{Running: h.pipeline.Running()})
		case http.MethodPost:
			h.toggle(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func (h *StatusHandler) toggle(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Running == nil {
		writeError(w, http.StatusBadRequest, "Field running is required")
		return
	}

	var err error
	if *req.Running {
		err = h.pipeline.Start()
	} else {
		err = h.pipeline.Stop()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pipelineResponse{Running: h.pipeline.Running()})
}

// RunsHandler serves the run history.
type RunsHandler struct {
	store *store.Store
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(s *store.Store) *RunsHandler {
	return &RunsHandler{store: s}
}

type listRunsResponse struct {
	Runs []*store.Run `json:"runs"`
}

// ServeHTTP handles GET /api/runs?limit=N and GET /api/runs/{id}.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/runs"), "/")
	if id != "" {
		run, err := h.store.Runs().GetByID(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Run not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to get run")
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs})
}
