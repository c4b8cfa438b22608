package domain

import "time"

// TokenType identifies the settlement token of a pool.
type TokenType uint8

const (
	TokenSTX   TokenType = 0
	TokenUSDCx TokenType = 1
)

// Label returns the token symbol used in API responses.
func (t TokenType) Label() string {
	switch t {
	case TokenSTX:
		return "STX"
	case TokenUSDCx:
		return "USDCx"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the side of a two-outcome pool bet. The contract encodes
// outcome A as 1 and outcome B as 2.
type Outcome uint8

const (
	OutcomeA Outcome = 1
	OutcomeB Outcome = 2
)

// Pool is the projection of a user-created two-outcome prediction pool.
// Ids are assigned by the chain starting at 0 and are never reused.
// Title, description, outcomes, category, creator, expiry, and token type are
// immutable after creation.
type Pool struct {
	ID             uint64    `json:"poolId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	OutcomeA       string    `json:"outcomeA"`
	OutcomeB       string    `json:"outcomeB"`
	Category       string    `json:"category"`
	Creator        string    `json:"creator"`
	Expiry         uint64    `json:"expiry"`
	TotalA         uint64    `json:"totalA"`
	TotalB         uint64    `json:"totalB"`
	TokenType      TokenType `json:"tokenType"`
	Settled        bool      `json:"settled"`
	WinningOutcome *Outcome  `json:"winningOutcome,omitempty"`
	DepositClaimed bool      `json:"depositClaimed"`

	// CreatedAt is local wall-clock provenance, unknown to the chain; it is
	// preserved across reconciliation merges. UpdatedAt is refreshed on
	// every mutation.
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// PoolBet is an append-only record of a single pool bet, identified by
// (poolId, user, txHash).
type PoolBet struct {
	PoolID      uint64    `json:"poolId"`
	User        string    `json:"user"`
	Outcome     Outcome   `json:"outcome"`
	Amount      uint64    `json:"amount"`
	TxHash      string    `json:"txHash"`
	BlockHeight uint64    `json:"blockHeight"`
	Timestamp   time.Time `json:"timestamp"`
}

// PoolStats aggregates pool counts and volumes for the stats endpoint.
type PoolStats struct {
	TotalPools       int    `json:"totalPools"`
	ActivePools      int    `json:"activePools"`
	SettledPools     int    `json:"settledPools"`
	TotalVolumeSTX   uint64 `json:"totalVolumeSTX"`
	TotalVolumeUSDCx uint64 `json:"totalVolumeUSDCx"`
	TotalBets        int    `json:"totalBets"`
}
