package project

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"resource-manager/internal/availability"
	"resource-manager/internal/httputil"
	"resource-manager/internal/middleware"
	"resource-manager/internal/resource"
	"resource-manager/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/projects", h.CreateProject)
	r.Get("/api/projects", h.ListProjects)
	r.Get("/api/projects/available-resources", h.AvailableResources)
	r.Get("/api/projects/{id}", h.GetProject)
	r.Get("/api/projects/{id}/resources", h.ProjectResources)
	r.Put("/api/projects/{id}", h.UpdateProject)
	r.Delete("/api/projects/{id}", h.DeleteProject)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "creating project", "name", in.Name, "resources", len(in.ResourceIDs))
	result, err := h.service.CreateWithAssignments(r.Context(), middleware.ActorID(r.Context()), in)
	if err != nil {
		h.handleServiceError(w, r, err, &in, "Failed to create project. Please try again.")
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
	}

	projects, err := h.service.ListProjects(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err, nil, "Failed to list projects")
		return
	}
	if projects == nil {
		projects = []Project{}
	}

	httputil.RespondWithJSON(w, http.StatusOK, projects)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, nil, "Failed to load project")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, project)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "updating project", "project_id", id)
	result, err := h.service.UpdateWithAssignments(r.Context(), middleware.ActorID(r.Context()), id, in)
	if err != nil {
		h.handleServiceError(w, r, err, &in, "Failed to update project. Please try again.")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting project", "project_id", id)
	if _, err := h.service.Delete(r.Context(), middleware.ActorID(r.Context()), id); err != nil {
		h.handleServiceError(w, r, err, nil, "Failed to delete project.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AvailableResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.AvailableResources(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, nil, "Failed to load resources")
		return
	}
	if resources == nil {
		resources = []resource.Resource{}
	}

	httputil.RespondWithJSON(w, http.StatusOK, resources)
}

func (h *Handler) ProjectResources(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	statuses, err := h.service.ResourcesFor(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, nil, "Failed to load resources")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, statuses)
}

// handleServiceError maps coordinator errors to responses. Unexpected failures echo the
// submitted input so the form can be resubmitted.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, in *Input, failureMessage string) {
	var (
		verr     *validation.Error
		conflict *availability.ConflictError
	)

	switch {
	case errors.As(err, &verr):
		httputil.RespondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.As(err, &conflict):
		h.logger.InfoContext(r.Context(), "resource unavailable", "resource_id", conflict.ResourceID)
		httputil.RespondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    conflict.Error(),
			"fields":   map[string]string{"resource_ids": conflict.Error()},
			"conflict": conflict.Conflict,
		})
	case errors.Is(err, ErrProjectNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, resource.ErrResourceNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "project request failed", "error", err)
		body := map[string]interface{}{"error": failureMessage}
		if in != nil {
			body["input"] = in
		}
		httputil.RespondWithJSON(w, http.StatusInternalServerError, body)
	}
}
