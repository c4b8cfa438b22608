package domain

// Command is a decoded contract print event, normalized into one of a closed
// set of typed values. Every command carries the transaction hash it was
// emitted from and the block height it was observed at; both drive
// idempotency in the reconciler.
type Command interface {
	// EventName returns the wire discriminator the command was decoded from.
	EventName() string
	// Tx returns the originating transaction hash.
	Tx() string
	// Height returns the block height the command was observed at.
	Height() uint64
}

// Origin carries the provenance common to every decoded command.
type Origin struct {
	TxHash      string
	BlockHeight uint64
}

func (o Origin) Tx() string     { return o.TxHash }
func (o Origin) Height() uint64 { return o.BlockHeight }

// RoundStarted opens a new round.
type RoundStarted struct {
	Origin
	RoundID    uint64
	StartPrice uint64
	StartBlock uint64
}

func (RoundStarted) EventName() string { return "round-started" }

// RoundEnded closes betting on an open round.
type RoundEnded struct {
	Origin
	RoundID  uint64
	EndBlock uint64
	PoolUp   uint64
	PoolDown uint64
}

func (RoundEnded) EventName() string { return "round-ended" }

// RoundResolved settles a closed round with its end price and winner.
type RoundResolved struct {
	Origin
	RoundID          uint64
	EndPrice         uint64
	WinningDirection Direction
}

func (RoundResolved) EventName() string { return "round-resolved" }

// BetPlaced credits a round pool with a user bet.
type BetPlaced struct {
	Origin
	RoundID   uint64
	User      string
	Direction Direction
	Amount    uint64
}

func (BetPlaced) EventName() string { return "bet-placed" }

// WinningsClaimed records a payout from a resolved round.
type WinningsClaimed struct {
	Origin
	RoundID uint64
	User    string
	Amount  uint64
}

func (WinningsClaimed) EventName() string { return "winnings-claimed" }

// PoolCreated registers a new prediction pool.
type PoolCreated struct {
	Origin
	PoolID      uint64
	Title       string
	Description string
	OutcomeA    string
	OutcomeB    string
	Category    string
	Creator     string
	Expiry      uint64
	TokenType   TokenType
}

func (PoolCreated) EventName() string { return "pool-created" }

// PoolBetPlaced credits a pool outcome with a user bet.
type PoolBetPlaced struct {
	Origin
	PoolID  uint64
	User    string
	Outcome Outcome
	Amount  uint64
}

func (PoolBetPlaced) EventName() string { return "pool-bet-placed" }

// PoolSettled marks a pool as settled with its winning outcome.
type PoolSettled struct {
	Origin
	PoolID         uint64
	WinningOutcome Outcome
}

func (PoolSettled) EventName() string { return "pool-settled" }

// PoolWinningsClaimed records a payout from a settled pool.
type PoolWinningsClaimed struct {
	Origin
	PoolID uint64
	User   string
	Amount uint64
}

func (PoolWinningsClaimed) EventName() string { return "pool-winnings-claimed" }

// PoolRefund records a refund from an expired, unsettled pool.
type PoolRefund struct {
	Origin
	PoolID uint64
	User   string
	Amount uint64
}

func (PoolRefund) EventName() string { return "pool-refund" }
