package assignment

import (
	"errors"
	"log/slog"
	"net/http"

	"resource-manager/internal/httputil"
	"resource-manager/internal/middleware"

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
	r.Get("/api/assignments/{id}", h.GetAssignment)
	r.Post("/api/assignments/{id}/complete", h.CompleteAssignment)
}

func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid assignment ID")
		return
	}

	a, err := h.service.GetAssignment(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, a)
}

// CompleteAssignment answers 200 in both cases; alreadyInactive tells the caller to show a warning.
func (h *Handler) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid assignment ID")
		return
	}

	h.logger.InfoContext(r.Context(), "completing assignment", "assignment_id", id)
	outcome, _, err := h.service.Complete(r.Context(), middleware.ActorID(r.Context()), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrAssignmentNotFound) {
		httputil.RespondWithError(w, http.StatusNotFound, "Assignment not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "assignment request failed", "error", err)
	httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to update assignment, please try again")
}
