package dashboard

import (
	"log/slog"
	"net/http"

	"resource-manager/internal/httputil"

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
	r.Get("/api/dashboard", h.Overview)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build dashboard", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, overview)
}
