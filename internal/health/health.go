package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"resource-manager/internal/httputil"
	"resource-manager/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type Handler struct {
	checks  map[string]Check
	timeout time.Duration
	metrics *metrics.HealthMetrics
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		checks:  map[string]Check{},
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Add registers a readiness check under name.
func (h *Handler) Add(name string, check Check) *Handler {
	h.checks[name] = check
	return h
}

// WithMetrics records every check's status and latency on hm.
func (h *Handler) WithMetrics(hm *metrics.HealthMetrics) *Handler {
	h.metrics = hm
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
}

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, Response{Status: "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results, healthy := h.Run(ctx)
	if !healthy {
		httputil.RespondWithJSON(w, http.StatusServiceUnavailable, Response{Status: "unavailable", Checks: results})
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, Response{Status: "ready", Checks: results})
}

// Run executes every check and returns "ok" or the error text per dependency.
func (h *Handler) Run(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		start := time.Now()
		err := check(ctx)
		h.metrics.RecordDependencyCheck(ctx, name, time.Since(start), err)
		if err != nil {
			h.logger.WarnContext(ctx, "dependency check failed", "dependency", name, "error", err)
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}
