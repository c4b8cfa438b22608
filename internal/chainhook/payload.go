// Package chainhook parses push-delivered block payloads into normalized
// domain commands. Payload shapes follow the Chainhook webhook schema:
// "apply" blocks carrying transactions with receipt events, plus optional
// "rollback" blocks for chain reorganizations.
package chainhook

import "encoding/json"

// EventTypePrint is the receipt event type that carries contract print
// events. Everything else in a receipt is ignored.
const EventTypePrint = "print_event"

// Payload is the top-level push delivery body.
type Payload struct {
	Apply    []Block `json:"apply"`
	Rollback []Block `json:"rollback,omitempty"`
}

// RollbackHeights returns the block heights named by the rollback section.
func (p *Payload) RollbackHeights() []uint64 {
	if len(p.Rollback) == 0 {
		return nil
	}
	heights := make([]uint64, 0, len(p.Rollback))
	for _, b := range p.Rollback {
		heights = append(heights, b.BlockIdentifier.Index)
	}
	return heights
}

// Block is one applied or rolled-back block.
type Block struct {
	BlockIdentifier BlockIdentifier `json:"block_identifier"`
	Transactions    []Transaction   `json:"transactions"`
}

// BlockIdentifier names a block by height and hash.
type BlockIdentifier struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

// Transaction is a single transaction within an applied block.
type Transaction struct {
	TransactionIdentifier TransactionIdentifier `json:"transaction_identifier"`
	Metadata              TransactionMetadata   `json:"metadata"`
}

// TransactionIdentifier names a transaction by hash.
type TransactionIdentifier struct {
	Hash string `json:"hash"`
}

// TransactionMetadata carries the success flag and the receipt events.
type TransactionMetadata struct {
	Success bool    `json:"success"`
	Receipt Receipt `json:"receipt"`
}

// Receipt holds the events emitted during transaction execution.
type Receipt struct {
	Events []ReceiptEvent `json:"events"`
}

// ReceiptEvent is a single typed receipt entry.
type ReceiptEvent struct {
	Type string         `json:"type"`
	Data PrintEventData `json:"data"`
}

// PrintEventData is the payload of a print_event receipt entry. Value is kept
// raw so a malformed payload poisons only its own event.
type PrintEventData struct {
	ContractIdentifier string          `json:"contract_identifier"`
	Topic              string          `json:"topic"`
	Value              json.RawMessage `json:"value"`
}

// printValue is the union of fields across all recognized print events,
// discriminated by Event. Unknown discriminators are dropped upstream.
type printValue struct {
	Event string `json:"event"`

	// Round-domain fields.
	RoundID          *uint64 `json:"round-id"`
	User             string  `json:"user"`
	Direction        *uint64 `json:"direction"`
	DirectionLabel   string  `json:"direction-label"`
	Amount           *uint64 `json:"amount"`
	StartPrice       *uint64 `json:"start-price"`
	EndPrice         *uint64 `json:"end-price"`
	WinningDirection *uint64 `json:"winning-direction"`
	PoolUp           *uint64 `json:"pool-up"`
	PoolDown         *uint64 `json:"pool-down"`
	StartBlock       *uint64 `json:"start-block"`
	EndBlock         *uint64 `json:"end-block"`

	// Pool-domain fields.
	PoolID         *uint64 `json:"pool-id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	OutcomeA       string  `json:"outcome-a"`
	OutcomeB       string  `json:"outcome-b"`
	Category       string  `json:"category"`
	Creator        string  `json:"creator"`
	Expiry         *uint64 `json:"expiry"`
	TokenType      *uint64 `json:"token-type"`
	Outcome        *uint64 `json:"outcome"`
	WinningOutcome *uint64 `json:"winning-outcome"`
}
