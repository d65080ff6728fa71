// Package server provides the HTTP server for the mudra pipeline: settings,
// counters, run history, classifier templates and a WebSocket state stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Pipeline is the application surface the server exposes.
type Pipeline interface {
	api.Pipeline
	AddSink(s app.StateSink)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Pipeline  Pipeline
	Logger    *slog.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *StateHub
	mu     sync.Mutex
	http   *http.Server
	log    *slog.Logger
	start  time.Time
}

// New creates a new Server with the given configuration. When a pipeline
// is configured the state hub is registered as one of its sinks.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    logger.With("component", "server"),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if p := s.config.Pipeline; p != nil {
		s.hub = NewStateHub(p.State(), s.log)
		p.AddSink(s.hub)

		settings := api.NewSettingsHandler(p)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)

		status := api.NewStatusHandler(p)
		s.mux.Handle("/api/stats", status)
		s.mux.Handle("/api/pipeline", status)

		// Plain GET returns the latest state, an upgrade request subscribes
		s.mux.Handle("/api/state", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocket.IsWebSocketUpgrade(r) {
				s.hub.ServeHTTP(w, r)
				return
			}
			status.ServeHTTP(w, r)
		}))
	}

	if s.config.Store != nil {
		var reload func() error
		if s.config.Pipeline != nil {
			reload = s.config.Pipeline.LoadTemplates
		}
		templates := api.NewTemplateHandler(s.config.Store, reload, s.log)
		s.mux.Handle("/api/templates", templates)
		s.mux.Handle("/api/templates/", templates)

		runs := api.NewRunsHandler(s.config.Store)
		s.mux.Handle("/api/runs", runs)
		s.mux.Handle("/api/runs/", runs)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Hub returns the state hub, or nil without a pipeline.
func (s *Server) Hub() *StateHub {
	return s.hub
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Pipeline != nil {
		response["running"] = s.config.Pipeline.Running()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes WebSocket clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
