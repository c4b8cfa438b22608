package chainhook

import (
	"encoding/json"
	"log/slog"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/metrics"
)

// Decoder turns apply blocks into an ordered sequence of domain commands.
// Only successful transactions contribute; unknown discriminators and
// malformed payloads are logged and dropped so new contract event kinds never
// crash ingestion.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger.With(slog.String("component", "decoder"))}
}

// Decode walks every apply block in order and returns the recognized commands
// in input order. It never fails: each undecodable event costs only itself.
func (d *Decoder) Decode(p *Payload) []domain.Command {
	var commands []domain.Command

	for _, block := range p.Apply {
		height := block.BlockIdentifier.Index

		for _, tx := range block.Transactions {
			if !tx.Metadata.Success {
				continue
			}

			for _, ev := range tx.Metadata.Receipt.Events {
				if ev.Type != EventTypePrint || len(ev.Data.Value) == 0 {
					continue
				}

				var value printValue
				if err := json.Unmarshal(ev.Data.Value, &value); err != nil {
					d.logger.Warn("malformed print event payload",
						slog.Uint64("block", height),
						slog.String("tx", tx.TransactionIdentifier.Hash),
						slog.String("error", err.Error()),
					)
					continue
				}
				if value.Event == "" {
					continue
				}

				cmd, ok := d.command(value, tx.TransactionIdentifier.Hash, height)
				if !ok {
					continue
				}
				commands = append(commands, cmd)
			}
		}
	}

	return commands
}

// command maps one print value to its typed command. The second return is
// false when the discriminator is unknown or a required id is missing.
func (d *Decoder) command(v printValue, txHash string, height uint64) (domain.Command, bool) {
	origin := domain.Origin{TxHash: txHash, BlockHeight: height}

	switch v.Event {
	case "round-started":
		id, ok := required(v.RoundID)
		if !ok {
			return d.dropMissing(v.Event, "round-id", txHash)
		}
		startBlock := deref(v.StartBlock)
		if startBlock == 0 {
			startBlock = height
		}
		return domain.RoundStarted{
			Origin:     origin,
			RoundID:    id,
			StartPrice: deref(v.StartPrice),
			StartBlock: startBlock,
		}, true

	case "round-ended":
		id, ok := required(v.RoundID)
		if !ok {
			return d.dropMissing(v.Event, "round-id", txHash)
		}
		return domain.RoundEnded{
			Origin:   origin,
			RoundID:  id,
			EndBlock: deref(v.EndBlock),
			PoolUp:   deref(v.PoolUp),
			PoolDown: deref(v.PoolDown),
		}, true

	case "round-resolved":
		id, ok := required(v.RoundID)
		if !ok {
			return d.dropMissing(v.Event, "round-id", txHash)
		}
		return domain.RoundResolved{
			Origin:           origin,
			RoundID:          id,
			EndPrice:         deref(v.EndPrice),
			WinningDirection: direction(deref(v.WinningDirection)),
		}, true

	case "bet-placed":
		id, ok := required(v.RoundID)
		if !ok {
			return d.dropMissing(v.Event, "round-id", txHash)
		}
		return domain.BetPlaced{
			Origin:    origin,
			RoundID:   id,
			User:      v.User,
			Direction: direction(deref(v.Direction)),
			Amount:    deref(v.Amount),
		}, true

	case "winnings-claimed":
		id, ok := required(v.RoundID)
		if !ok {
			return d.dropMissing(v.Event, "round-id", txHash)
		}
		return domain.WinningsClaimed{
			Origin:  origin,
			RoundID: id,
			User:    v.User,
			Amount:  deref(v.Amount),
		}, true

	case "pool-created":
		id, ok := required(v.PoolID)
		if !ok {
			return d.dropMissing(v.Event, "pool-id", txHash)
		}
		return domain.PoolCreated{
			Origin:      origin,
			PoolID:      id,
			Title:       v.Title,
			Description: v.Description,
			OutcomeA:    v.OutcomeA,
			OutcomeB:    v.OutcomeB,
			Category:    v.Category,
			Creator:     v.Creator,
			Expiry:      deref(v.Expiry),
			TokenType:   domain.TokenType(deref(v.TokenType)),
		}, true

	case "pool-bet-placed":
		id, ok := required(v.PoolID)
		if !ok {
			return d.dropMissing(v.Event, "pool-id", txHash)
		}
		return domain.PoolBetPlaced{
			Origin:  origin,
			PoolID:  id,
			User:    v.User,
			Outcome: outcome(deref(v.Outcome)),
			Amount:  deref(v.Amount),
		}, true

	case "pool-settled":
		id, ok := required(v.PoolID)
		if !ok {
			return d.dropMissing(v.Event, "pool-id", txHash)
		}
		return domain.PoolSettled{
			Origin:         origin,
			PoolID:         id,
			WinningOutcome: outcome(deref(v.WinningOutcome)),
		}, true

	case "pool-winnings-claimed":
		id, ok := required(v.PoolID)
		if !ok {
			return d.dropMissing(v.Event, "pool-id", txHash)
		}
		return domain.PoolWinningsClaimed{
			Origin: origin,
			PoolID: id,
			User:   v.User,
			Amount: deref(v.Amount),
		}, true

	case "pool-refund":
		id, ok := required(v.PoolID)
		if !ok {
			return d.dropMissing(v.Event, "pool-id", txHash)
		}
		return domain.PoolRefund{
			Origin: origin,
			PoolID: id,
			User:   v.User,
			Amount: deref(v.Amount),
		}, true

	default:
		metrics.UnknownEventsTotal.Inc()
		d.logger.Debug("unknown print event discriminator",
			slog.String("event", v.Event),
			slog.String("tx", txHash),
		)
		return nil, false
	}
}

func (d *Decoder) dropMissing(event, field, txHash string) (domain.Command, bool) {
	d.logger.Warn("print event missing required field",
		slog.String("event", event),
		slog.String("field", field),
		slog.String("tx", txHash),
	)
	return nil, false
}

// required distinguishes an absent id from an explicit zero: round ids start
// at 1 and pool ids at 0, so only nil is rejected.
func required(p *uint64) (uint64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func deref(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

// direction mirrors the contract encoding: 1 is UP, anything else is DOWN.
func direction(n uint64) domain.Direction {
	if n == 1 {
		return domain.DirectionUp
	}
	return domain.DirectionDown
}

// outcome mirrors the contract encoding: 2 is outcome B, anything else A.
func outcome(n uint64) domain.Outcome {
	if n == 2 {
		return domain.OutcomeB
	}
	return domain.OutcomeA
}
