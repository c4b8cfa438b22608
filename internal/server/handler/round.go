package handler

import (
	"errors"
	"net/http"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/service"
)

// RoundHandler serves round queries.
type RoundHandler struct {
	queries *service.QueryService
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(queries *service.QueryService) *RoundHandler {
	return &RoundHandler{queries: queries}
}

// ListRounds returns all rounds, newest first.
// GET /api/rounds
func (h *RoundHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.ListRounds())
}

// GetRound returns one round.
// GET /api/rounds/{id}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}

	round, err := h.queries.GetRound(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// ListClaims returns the winnings claims recorded for one round.
// GET /api/rounds/{id}/claims
func (h *RoundHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	claims := h.queries.ClaimsForRound(id)
	if claims == nil {
		claims = []domain.Claim{}
	}
	writeJSON(w, http.StatusOK, claims)
}
