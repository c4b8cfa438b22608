package stacks

import (
	"context"
	"fmt"

	"github.com/predictstack/indexer/internal/domain"
)

// Contract read-only function names.
const (
	fnCurrentRoundID = "get-current-round-id"
	fnGetRound       = "get-round"
	fnPoolCount      = "get-pool-count"
	fnGetPool        = "get-pool"
)

// ReaderConfig names the contracts the reader pulls state from.
type ReaderConfig struct {
	Address        string // deployer principal
	RoundsContract string // e.g. "prediction-market-v2"
	PoolsContract  string // e.g. "prediction-pools"
}

// ContractReader fetches authoritative round and pool state via read-only
// calls and maps the decoded tuples into domain entities. Stateless.
type ContractReader struct {
	client *Client
	cfg    ReaderConfig
}

// NewContractReader creates a ContractReader over the given call client.
func NewContractReader(client *Client, cfg ReaderConfig) *ContractReader {
	return &ContractReader{client: client, cfg: cfg}
}

// CurrentRoundID returns the round counter. Rounds occupy ids 1..counter.
func (r *ContractReader) CurrentRoundID(ctx context.Context) (uint64, error) {
	v, err := r.client.CallReadOnly(ctx, r.cfg.Address, r.cfg.RoundsContract, fnCurrentRoundID)
	if err != nil {
		return 0, err
	}
	n, err := v.AsUint()
	if err != nil {
		return 0, fmt.Errorf("stacks: %s: %w", fnCurrentRoundID, err)
	}
	return n, nil
}

// Round fetches one round's authoritative state. A none result maps to
// domain.ErrNotFound. StartTime and EndBlock are local provenance and are
// left zero; the reconciler owns them.
func (r *ContractReader) Round(ctx context.Context, id uint64) (domain.Round, error) {
	v, err := r.client.CallReadOnly(ctx, r.cfg.Address, r.cfg.RoundsContract, fnGetRound, EncodeUint(id))
	if err != nil {
		return domain.Round{}, err
	}
	if v.IsNone() {
		return domain.Round{}, domain.ErrNotFound
	}

	status, err := v.UintField("status")
	if err != nil {
		return domain.Round{}, fmt.Errorf("stacks: round %d: %w", id, err)
	}
	startPrice, err := v.UintField("start-price")
	if err != nil {
		return domain.Round{}, fmt.Errorf("stacks: round %d: %w", id, err)
	}
	endPrice, err := v.UintField("end-price")
	if err != nil {
		return domain.Round{}, fmt.Errorf("stacks: round %d: %w", id, err)
	}
	poolUp, err := v.UintField("pool-up")
	if err != nil {
		return domain.Round{}, fmt.Errorf("stacks: round %d: %w", id, err)
	}
	poolDown, err := v.UintField("pool-down")
	if err != nil {
		return domain.Round{}, fmt.Errorf("stacks: round %d: %w", id, err)
	}
	startBlock, err := v.UintField("start-block")
	if err != nil {
		return domain.Round{}, fmt.Errorf("stacks: round %d: %w", id, err)
	}

	round := domain.Round{
		ID:         id,
		Status:     roundStatus(status),
		StartPrice: startPrice,
		EndPrice:   endPrice,
		PoolUp:     poolUp,
		PoolDown:   poolDown,
		StartBlock: startBlock,
	}

	// winning-direction is meaningless until the round resolves.
	if round.Status == domain.RoundStatusResolved {
		if win, ok, err := v.OptUintField("winning-direction"); err != nil {
			return domain.Round{}, fmt.Errorf("stacks: round %d: %w", id, err)
		} else if ok {
			dir := domain.Direction(win)
			round.WinningDirection = &dir
		}
	}

	return round, nil
}

// PoolCount returns the number of pools. Pools occupy ids 0..count-1.
func (r *ContractReader) PoolCount(ctx context.Context) (uint64, error) {
	v, err := r.client.CallReadOnly(ctx, r.cfg.Address, r.cfg.PoolsContract, fnPoolCount)
	if err != nil {
		return 0, err
	}
	n, err := v.AsUint()
	if err != nil {
		return 0, fmt.Errorf("stacks: %s: %w", fnPoolCount, err)
	}
	return n, nil
}

// Pool fetches one pool's authoritative state. A none result maps to
// domain.ErrNotFound. CreatedAt/UpdatedAt are local provenance and are left
// zero; the reconciler owns them.
func (r *ContractReader) Pool(ctx context.Context, id uint64) (domain.Pool, error) {
	v, err := r.client.CallReadOnly(ctx, r.cfg.Address, r.cfg.PoolsContract, fnGetPool, EncodeUint(id))
	if err != nil {
		return domain.Pool{}, err
	}
	if v.IsNone() {
		return domain.Pool{}, domain.ErrNotFound
	}

	pool := domain.Pool{ID: id}

	strFields := []struct {
		name string
		dst  *string
	}{
		{"title", &pool.Title},
		{"description", &pool.Description},
		{"outcome-a", &pool.OutcomeA},
		{"outcome-b", &pool.OutcomeB},
		{"category", &pool.Category},
		{"creator", &pool.Creator},
	}
	for _, f := range strFields {
		s, err := v.StringField(f.name)
		if err != nil {
			return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
		}
		*f.dst = s
	}

	expiry, err := v.UintField("expiry")
	if err != nil {
		return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
	}
	totalA, err := v.UintField("total-a")
	if err != nil {
		return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
	}
	totalB, err := v.UintField("total-b")
	if err != nil {
		return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
	}
	tokenType, err := v.UintField("token-type")
	if err != nil {
		return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
	}
	settled, err := v.BoolField("settled")
	if err != nil {
		return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
	}
	depositClaimed, err := v.BoolField("deposit-claimed")
	if err != nil {
		return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
	}

	pool.Expiry = expiry
	pool.TotalA = totalA
	pool.TotalB = totalB
	pool.TokenType = domain.TokenType(tokenType)
	pool.Settled = settled
	pool.DepositClaimed = depositClaimed

	if win, ok, err := v.OptUintField("winning-outcome"); err != nil {
		return domain.Pool{}, fmt.Errorf("stacks: pool %d: %w", id, err)
	} else if ok {
		outcome := domain.Outcome(win)
		pool.WinningOutcome = &outcome
	}

	return pool, nil
}

// roundStatus maps the contract's numeric status to the domain enum.
// Contract constants: STATUS_OPEN=1, STATUS_CLOSED=2, STATUS_RESOLVED=3.
func roundStatus(n uint64) domain.RoundStatus {
	switch n {
	case 2:
		return domain.RoundStatusClosed
	case 3:
		return domain.RoundStatusResolved
	default:
		return domain.RoundStatusOpen
	}
}
