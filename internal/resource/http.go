package resource

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"resource-manager/internal/httputil"
	"resource-manager/internal/middleware"
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
	r.Post("/api/resources", h.CreateResource)
	r.Get("/api/resources", h.GetAllResources)
	r.Get("/api/resources/{id}", h.GetResource)
	r.Put("/api/resources/{id}", h.UpdateResource)
	r.Delete("/api/resources/{id}", h.DeleteResource)
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "creating resource", "name", in.Name)
	resource, err := h.service.CreateResource(r.Context(), middleware.ActorID(r.Context()), in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, resource)
}

func (h *Handler) GetAllResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.GetAllResources(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if resources == nil {
		resources = []Resource{}
	}

	httputil.RespondWithJSON(w, http.StatusOK, resources)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid resource ID")
		return
	}

	resource, err := h.service.GetResourceByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, resource)
}

func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid resource ID")
		return
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "updating resource", "resource_id", id)
	resource, err := h.service.UpdateResource(r.Context(), middleware.ActorID(r.Context()), id, in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, resource)
}

func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid resource ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting resource", "resource_id", id)
	if err := h.service.DeleteResource(r.Context(), middleware.ActorID(r.Context()), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		httputil.RespondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, ErrResourceNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Resource not found")
	default:
		h.logger.ErrorContext(r.Context(), "resource request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to process resource, please try again")
	}
}
