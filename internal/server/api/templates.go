package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

// defaultTolerance matches the builtin closed-fist template.
const defaultTolerance = 1.5

// TemplateHandler handles HTTP requests for classifier templates. Every
// change is followed by a classifier reload when a reloader is set.
type TemplateHandler struct {
	store  *store.Store
	reload func() error
	log    *slog.Logger
}

// NewTemplateHandler creates a new TemplateHandler. reload may be nil.
func NewTemplateHandler(s *store.Store, reload func() error, logger *slog.Logger) *TemplateHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TemplateHandler{store: s, reload: reload, log: logger}
}

// ServeHTTP routes /api/templates and /api/templates/{id}.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/templates")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// templateRequest carries raw landmarks in image coordinates, the same
// shape the detector reports. They are normalized before storing.
type templateRequest struct {
	Name      string             `json:"name"`
	Tolerance float64            `json:"tolerance"`
	Landmarks []detector.Point3D `json:"landmarks"`
}

type templateResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Tolerance float64            `json:"tolerance"`
	Landmarks []detector.Point3D `json:"landmarks"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
}

type listTemplatesResponse struct {
	Templates []templateResponse `json:"templates"`
}

func toResponse(t *store.Template) templateResponse {
	return templateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Tolerance: t.Tolerance,
		Landmarks: t.Landmarks,
		CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: t.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// normalizeLandmarks converts a full hand to the wrist-relative form the
// matcher compares against.
func normalizeLandmarks(points []detector.Point3D) ([]detector.Point3D, bool) {
	if len(points) != detector.NumLandmarks {
		return nil, false
	}
	var hand detector.HandLandmarks
	copy(hand.Points[:], points)
	hand.Count = detector.NumLandmarks
	n := hand.Normalize()
	out := make([]detector.Point3D, detector.NumLandmarks)
	copy(out, n.Points[:])
	return out, true
}

func (h *TemplateHandler) reloadTemplates() {
	if h.reload == nil {
		return
	}
	if err := h.reload(); err != nil {
		h.log.Error("reload templates", "err", err)
	}
}

// list handles GET /api/templates.
func (h *TemplateHandler) list(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.Templates().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	response := listTemplatesResponse{
		Templates: make([]templateResponse, 0, len(templates)),
	}
	for _, t := range templates {
		response.Templates = append(response.Templates, toResponse(t))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/templates/{id}.
func (h *TemplateHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(t))
}

// create handles POST /api/templates.
func (h *TemplateHandler) create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	landmarks, ok := normalizeLandmarks(req.Landmarks)
	if !ok {
		writeError(w, http.StatusBadRequest, "Exactly 21 landmarks are required")
		return
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must not be negative")
		return
	}

	if _, err := h.store.Templates().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Template name already exists")
		return
	}

	tolerance := req.Tolerance
	if tolerance == 0 {
		tolerance = defaultTolerance
	}

	t := &store.Template{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Tolerance: tolerance,
		Landmarks: landmarks,
	}
	if err := h.store.Templates().Create(t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}
	h.reloadTemplates()

	writeJSON(w, http.StatusCreated, toResponse(t))
}

// update handles PUT /api/templates/{id}. Omitted fields keep their value.
func (h *TemplateHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must not be negative")
		return
	}
	if req.Tolerance != 0 {
		t.Tolerance = req.Tolerance
	}
	if req.Landmarks != nil {
		landmarks, ok := normalizeLandmarks(req.Landmarks)
		if !ok {
			writeError(w, http.StatusBadRequest, "Exactly 21 landmarks are required")
			return
		}
		t.Landmarks = landmarks
	}

	if err := h.store.Templates().Update(t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}
	h.reloadTemplates()

	writeJSON(w, http.StatusOK, toResponse(t))
}

// delete handles DELETE /api/templates/{id}.
func (h *TemplateHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Templates().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}
	h.reloadTemplates()

	w.WriteHeader(http.StatusNoContent)
}
