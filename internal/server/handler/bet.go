package handler

import (
	"net/http"
	"strconv"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/service"
)

// BetHandler serves bet queries.
type BetHandler struct {
	queries *service.QueryService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(queries *service.QueryService) *BetHandler {
	return &BetHandler{queries: queries}
}

// ListBets filters by roundId and/or user. With both filters present the
// response is the user's single bet in that round, or null.
// GET /api/bets?roundId=&user=
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := q.Get("user")

	var roundID *uint64
	if raw := q.Get("roundId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid roundId")
			return
		}
		roundID = &id
	}

	switch {
	case roundID != nil && user != "":
		bet, ok := h.queries.FindBet(*roundID, user)
		if !ok {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, bet)
	case roundID != nil:
		writeJSON(w, http.StatusOK, nonNilBets(h.queries.BetsForRound(*roundID)))
	case user != "":
		writeJSON(w, http.StatusOK, nonNilBets(h.queries.BetsForUser(user)))
	default:
		writeJSON(w, http.StatusOK, nonNilBets(h.queries.ListBets()))
	}
}

// ListRoundBets returns the bets for one round.
// GET /api/bets/{roundId}
func (h *BetHandler) ListRoundBets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "roundId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	writeJSON(w, http.StatusOK, nonNilBets(h.queries.BetsForRound(id)))
}

func nonNilBets(bets []domain.Bet) []domain.Bet {
	if bets == nil {
		return []domain.Bet{}
	}
	return bets
}
