package handler

import (
	"errors"
	"net/http"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/service"
)

// PoolHandler serves pool queries.
type PoolHandler struct {
	queries *service.QueryService
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(queries *service.QueryService) *PoolHandler {
	return &PoolHandler{queries: queries}
}

// ListPools returns all pools, newest first.
// GET /api/pools
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.ListPools())
}

// GetPool returns one pool.
// GET /api/pools/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	pool, err := h.queries.GetPool(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// ListPoolBets returns the bets for one pool.
// GET /api/pools/{id}/bets
func (h *PoolHandler) ListPoolBets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	bets, err := h.queries.BetsForPool(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if bets == nil {
		bets = []domain.PoolBet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// Stats returns aggregate pool statistics.
// GET /api/pools/stats/summary
func (h *PoolHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.PoolStats())
}
