package service

import (
	"strings"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/projection"
)

// QueryService is the read-only facade over the projection used by the HTTP
// layer. It never mutates.
type QueryService struct {
	store *projection.Store
}

// NewQueryService creates a QueryService over the projection store.
func NewQueryService(store *projection.Store) *QueryService {
	return &QueryService{store: store}
}

// ListRounds returns all rounds, newest first.
func (s *QueryService) ListRounds() []domain.Round {
	return s.store.Rounds()
}

// GetRound returns one round or domain.ErrNotFound.
func (s *QueryService) GetRound(id uint64) (domain.Round, error) {
	r, ok := s.store.Round(id)
	if !ok {
		return domain.Round{}, domain.ErrNotFound
	}
	return r, nil
}

// ListBets returns every round bet.
func (s *QueryService) ListBets() []domain.Bet {
	return s.store.AllBets()
}

// BetsForRound returns the bets recorded for one round.
func (s *QueryService) BetsForRound(roundID uint64) []domain.Bet {
	return s.store.Bets(roundID)
}

// BetsForUser returns every bet placed by an address, compared
// case-insensitively.
func (s *QueryService) BetsForUser(user string) []domain.Bet {
	return s.store.BetsByUser(user)
}

// FindBet returns the bet a user placed in a round, or false when none
// exists. A user places at most one bet per round on chain; the first match
// wins if the log ever disagrees.
func (s *QueryService) FindBet(roundID uint64, user string) (domain.Bet, bool) {
	for _, b := range s.store.Bets(roundID) {
		if strings.EqualFold(b.User, user) {
			return b, true
		}
	}
	return domain.Bet{}, false
}

// ClaimsForRound returns the winnings claims recorded for one round.
func (s *QueryService) ClaimsForRound(roundID uint64) []domain.Claim {
	return s.store.Claims(roundID)
}

// ListPools returns all pools, newest first.
func (s *QueryService) ListPools() []domain.Pool {
	return s.store.Pools()
}

// GetPool returns one pool or domain.ErrNotFound.
func (s *QueryService) GetPool(id uint64) (domain.Pool, error) {
	p, ok := s.store.Pool(id)
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	return p, nil
}

// BetsForPool returns the bets recorded for one pool, or domain.ErrNotFound
// when the pool itself is unknown.
func (s *QueryService) BetsForPool(poolID uint64) ([]domain.PoolBet, error) {
	if _, ok := s.store.Pool(poolID); !ok {
		return nil, domain.ErrNotFound
	}
	return s.store.PoolBets(poolID), nil
}

// PoolStats aggregates counts and volumes across all pools. Volume is the
// sum of both outcome totals, bucketed by settlement token.
func (s *QueryService) PoolStats() domain.PoolStats {
	pools := s.store.Pools()

	stats := domain.PoolStats{
		TotalPools: len(pools),
		TotalBets:  s.store.PoolBetCount(),
	}
	for _, p := range pools {
		if p.Settled {
			stats.SettledPools++
		} else {
			stats.ActivePools++
		}
		volume := p.TotalA + p.TotalB
		if p.TokenType == domain.TokenUSDCx {
			stats.TotalVolumeUSDCx += volume
		} else {
			stats.TotalVolumeSTX += volume
		}
	}
	return stats
}
