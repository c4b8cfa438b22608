package domain

import "time"

// RoundStatus represents the lifecycle state of a prediction round.
type RoundStatus string

const (
	RoundStatusOpen     RoundStatus = "open"
	RoundStatusClosed   RoundStatus = "closed"
	RoundStatusResolved RoundStatus = "resolved"
)

// Rank returns the ordinal position of the status in the round lifecycle.
// Higher values supersede lower ones; a reconciliation read reporting a lower
// rank than the projection is evidence of a reorg, not fresh truth.
func (s RoundStatus) Rank() int {
	switch s {
	case RoundStatusOpen:
		return 1
	case RoundStatusClosed:
		return 2
	case RoundStatusResolved:
		return 3
	default:
		return 0
	}
}

// Direction is the side of an up/down round bet. The contract encodes UP as 1;
// any other value is treated as DOWN.
type Direction uint8

const (
	DirectionDown Direction = 0
	DirectionUp   Direction = 1
)

// Label returns the human-readable direction used in API responses.
func (d Direction) Label() string {
	if d == DirectionUp {
		return "UP"
	}
	return "DOWN"
}

// Round is the projection of a single up/down prediction round. Ids are
// assigned by the chain starting at 1 and are never reused.
type Round struct {
	ID               uint64      `json:"roundId"`
	Status           RoundStatus `json:"status"`
	StartPrice       uint64      `json:"startPrice,omitempty"`
	EndPrice         uint64      `json:"endPrice,omitempty"`
	PoolUp           uint64      `json:"poolUp"`
	PoolDown         uint64      `json:"poolDown"`
	WinningDirection *Direction  `json:"winningDirection,omitempty"`
	StartBlock       uint64      `json:"startBlock,omitempty"`
	EndBlock         uint64      `json:"endBlock,omitempty"`

	// StartTime is the wall-clock unix timestamp of the first local
	// observation of the round. The chain does not know it, so it must
	// survive every reconciliation merge.
	StartTime int64 `json:"startTime,omitempty"`
}

// Bet is an append-only record of a single round bet. Bets carry no chain id;
// they are identified by (roundId, user, txHash), and the same txHash must
// never be counted twice.
type Bet struct {
	RoundID        uint64    `json:"roundId"`
	User           string    `json:"user"`
	Direction      Direction `json:"direction"`
	DirectionLabel string    `json:"directionLabel"`
	Amount         uint64    `json:"amount"`
	TxHash         string    `json:"txHash"`
	BlockHeight    uint64    `json:"blockHeight"`
	Timestamp      time.Time `json:"timestamp"`
}

// Claim records a winnings payout for a resolved round.
type Claim struct {
	RoundID     uint64    `json:"roundId"`
	User        string    `json:"user"`
	Amount      uint64    `json:"amount"`
	TxHash      string    `json:"txHash"`
	BlockHeight uint64    `json:"blockHeight"`
	Timestamp   time.Time `json:"timestamp"`
}
