package handler

import (
	"net/http"
	"time"

	"github.com/predictstack/indexer/internal/service"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	queries   *service.QueryService
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(queries *service.QueryService) *HealthHandler {
	return &HealthHandler{queries: queries, startedAt: time.Now().UTC()}
}

// HealthCheck reports liveness plus projection counts.
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"rounds":    len(h.queries.ListRounds()),
		"pools":     len(h.queries.ListPools()),
	})
}
