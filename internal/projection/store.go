// Package projection holds the mutable in-memory read model: rounds, pools,
// and their append-only bet and claim logs. The store owns no merge policy —
// it offers atomic get/put/append primitives and leaves reconciliation rules
// to the caller. All mutation is expected to arrive through a single writer;
// reads return copies so callers never observe partial mutation.
package projection

import (
	"sort"
	"strings"
	"sync"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/metrics"
)

// Store is the RWMutex-guarded projection of chain state.
type Store struct {
	mu sync.RWMutex

	rounds map[uint64]domain.Round
	pools  map[uint64]domain.Pool

	bets     map[uint64][]domain.Bet
	poolBets map[uint64][]domain.PoolBet
	claims   map[uint64][]domain.Claim

	// betTx records every transaction hash that produced a bet record,
	// round and pool alike. A hash appears here at most once system-wide.
	betTx   map[string]struct{}
	claimTx map[string]struct{}
}

// NewStore creates an empty projection store.
func NewStore() *Store {
	return &Store{
		rounds:   make(map[uint64]domain.Round),
		pools:    make(map[uint64]domain.Pool),
		bets:     make(map[uint64][]domain.Bet),
		poolBets: make(map[uint64][]domain.PoolBet),
		claims:   make(map[uint64][]domain.Claim),
		betTx:    make(map[string]struct{}),
		claimTx:  make(map[string]struct{}),
	}
}

// Round returns a copy of the round, or false when unknown.
func (s *Store) Round(id uint64) (domain.Round, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[id]
	if !ok {
		return domain.Round{}, false
	}
	return cloneRound(r), true
}

// Rounds returns copies of all rounds ordered by descending id, newest first.
func (s *Store) Rounds() []domain.Round {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Round, 0, len(s.rounds))
	for _, r := range s.rounds {
		out = append(out, cloneRound(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// PutRound inserts or replaces a round.
func (s *Store) PutRound(r domain.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rounds[r.ID] = cloneRound(r)
	metrics.RoundsTracked.Set(float64(len(s.rounds)))
}

// Pool returns a copy of the pool, or false when unknown.
func (s *Store) Pool(id uint64) (domain.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[id]
	if !ok {
		return domain.Pool{}, false
	}
	return clonePool(p), true
}

// Pools returns copies of all pools ordered by descending id.
func (s *Store) Pools() []domain.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, clonePool(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// PutPool inserts or replaces a pool.
func (s *Store) PutPool(p domain.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pools[p.ID] = clonePool(p)
	metrics.PoolsTracked.Set(float64(len(s.pools)))
}

// HasBetTx reports whether a bet for the transaction hash is already
// recorded anywhere in the projection.
func (s *Store) HasBetTx(txHash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.betTx[txHash]
	return ok
}

// AppendBet records a round bet. It returns false without writing when a bet
// with the same transaction hash was already recorded, so the caller can
// skip the matching pool-total increment on replays.
func (s *Store) AppendBet(b domain.Bet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.betTx[b.TxHash]; seen {
		return false
	}
	s.betTx[b.TxHash] = struct{}{}
	s.bets[b.RoundID] = append(s.bets[b.RoundID], b)
	return true
}

// Bets returns copies of all bets for a round in insertion order.
func (s *Store) Bets(roundID uint64) []domain.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Bet(nil), s.bets[roundID]...)
}

// AllBets returns copies of every round bet, ordered by round id then
// insertion order.
func (s *Store) AllBets() []domain.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint64, 0, len(s.bets))
	for id := range s.bets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.Bet
	for _, id := range ids {
		out = append(out, s.bets[id]...)
	}
	return out
}

// BetsByUser returns copies of every round bet placed by the address,
// compared case-insensitively.
func (s *Store) BetsByUser(user string) []domain.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Bet
	for _, list := range s.bets {
		for _, b := range list {
			if strings.EqualFold(b.User, user) {
				out = append(out, b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundID < out[j].RoundID })
	return out
}

// AppendPoolBet records a pool bet with the same transaction-hash dedup as
// AppendBet; the shared hash set means a hash can never count as both a round
// bet and a pool bet.
func (s *Store) AppendPoolBet(b domain.PoolBet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.betTx[b.TxHash]; seen {
		return false
	}
	s.betTx[b.TxHash] = struct{}{}
	s.poolBets[b.PoolID] = append(s.poolBets[b.PoolID], b)
	return true
}

// PoolBets returns copies of all bets for a pool in insertion order.
func (s *Store) PoolBets(poolID uint64) []domain.PoolBet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.PoolBet(nil), s.poolBets[poolID]...)
}

// PoolBetCount returns the total number of pool bet records.
func (s *Store) PoolBetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, list := range s.poolBets {
		n += len(list)
	}
	return n
}

// AppendClaim records a winnings claim for a round, deduplicated by
// transaction hash. Claims keep their own hash set: a claim shares nothing
// with the bet log.
func (s *Store) AppendClaim(c domain.Claim) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.claimTx[c.TxHash]; seen {
		return false
	}
	s.claimTx[c.TxHash] = struct{}{}
	s.claims[c.RoundID] = append(s.claims[c.RoundID], c)
	return true
}

// Claims returns copies of all claims for a round in insertion order.
func (s *Store) Claims(roundID uint64) []domain.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Claim(nil), s.claims[roundID]...)
}

// cloneRound deep-copies a round so the pointer field never aliases stored
// state.
func cloneRound(r domain.Round) domain.Round {
	if r.WinningDirection != nil {
		d := *r.WinningDirection
		r.WinningDirection = &d
	}
	return r
}

// clonePool deep-copies a pool.
func clonePool(p domain.Pool) domain.Pool {
	if p.WinningOutcome != nil {
		o := *p.WinningOutcome
		p.WinningOutcome = &o
	}
	return p
}
