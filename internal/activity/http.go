package activity

import (
	"log/slog"
	"net/http"
	"strconv"

	"resource-manager/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/activity", h.ListActivity)
}

// ListActivity returns the newest events first, optionally narrowed by ?action= and capped by ?limit=.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := ListFilter{Action: Action(query.Get("action"))}
	if filter.Action != "" && !filter.Action.Valid() {
		httputil.RespondWithError(w, http.StatusBadRequest, "Unknown action: "+string(filter.Action))
		return
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	events, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list activity", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to load activity")
		return
	}
	if events == nil {
		events = []Event{}
	}

	httputil.RespondWithJSON(w, http.StatusOK, events)
}
