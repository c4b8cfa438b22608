package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/metrics"
	"github.com/predictstack/indexer/internal/projection"
)

// fakeChain serves canned round/pool state and records which ids were
// fetched.
type fakeChain struct {
	mu         sync.Mutex
	counter    uint64
	counterErr error
	rounds     map[uint64]domain.Round
	pools      map[uint64]domain.Pool
	errIDs     map[uint64]error
	fetched    []uint64

	// hold, when set, makes CurrentRoundID announce itself and then wait
	// for a second receive before returning.
	hold chan struct{}
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		rounds: make(map[uint64]domain.Round),
		pools:  make(map[uint64]domain.Pool),
		errIDs: make(map[uint64]error),
	}
}

func (f *fakeChain) CurrentRoundID(context.Context) (uint64, error) {
	if f.hold != nil {
		f.hold <- struct{}{}
		<-f.hold
	}
	if f.counterErr != nil {
		return 0, f.counterErr
	}
	return f.counter, nil
}

func (f *fakeChain) Round(_ context.Context, id uint64) (domain.Round, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()

	if err, ok := f.errIDs[id]; ok {
		return domain.Round{}, err
	}
	r, ok := f.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeChain) PoolCount(context.Context) (uint64, error) {
	return uint64(len(f.pools)), nil
}

func (f *fakeChain) Pool(_ context.Context, id uint64) (domain.Pool, error) {
	p, ok := f.pools[id]
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	return p, nil
}

func newTestReconciler(chain ChainReader, cfg Config) (*Reconciler, *projection.Store) {
	store := projection.NewStore()
	r := New(store, chain, nil, nil, cfg, slog.New(slog.DiscardHandler))
	return r, store
}

func origin(tx string, height uint64) domain.Origin {
	return domain.Origin{TxHash: tx, BlockHeight: height}
}

func TestBetPlacedIdempotent(t *testing.T) {
	r, store := newTestReconciler(newFakeChain(), Config{})
	ctx := context.Background()

	r.ApplyEvents(ctx, []domain.Command{
		domain.RoundStarted{Origin: origin("0x0", 10), RoundID: 1, StartPrice: 95_000, StartBlock: 10},
	})

	bet := domain.BetPlaced{Origin: origin("0xabc", 11), RoundID: 1, User: "ST2U", Direction: domain.DirectionUp, Amount: 5_000_000}
	r.ApplyEvents(ctx, []domain.Command{bet})
	r.ApplyEvents(ctx, []domain.Command{bet}) // at-least-once redelivery

	round, ok := store.Round(1)
	require.True(t, ok)
	assert.Equal(t, uint64(5_000_000), round.PoolUp, "duplicate delivery must not double-count")
	assert.Equal(t, uint64(0), round.PoolDown)
	assert.Len(t, store.Bets(1), 1)
}

func TestRoundLifecycleMonotonic(t *testing.T) {
	r, store := newTestReconciler(newFakeChain(), Config{})
	ctx := context.Background()

	r.ApplyEvents(ctx, []domain.Command{
		domain.RoundStarted{Origin: origin("0x1", 10), RoundID: 1, StartBlock: 10},
		domain.RoundEnded{Origin: origin("0x2", 20), RoundID: 1, EndBlock: 20},
		domain.RoundResolved{Origin: origin("0x3", 21), RoundID: 1, EndPrice: 97_000, WinningDirection: domain.DirectionUp},
	})

	// Replays of earlier lifecycle events are silent no-ops.
	r.ApplyEvents(ctx, []domain.Command{
		domain.RoundEnded{Origin: origin("0x2", 20), RoundID: 1, EndBlock: 20},
	})

	round, ok := store.Round(1)
	require.True(t, ok)
	assert.Equal(t, domain.RoundStatusResolved, round.Status)
	assert.Equal(t, uint64(97_000), round.EndPrice)
	require.NotNil(t, round.WinningDirection)
	assert.Equal(t, domain.DirectionUp, *round.WinningDirection)
}

func TestConservation(t *testing.T) {
	r, store := newTestReconciler(newFakeChain(), Config{})
	ctx := context.Background()

	r.ApplyEvents(ctx, []domain.Command{
		domain.RoundStarted{Origin: origin("0x0", 5), RoundID: 1, StartBlock: 5},
		domain.BetPlaced{Origin: origin("0xa", 6), RoundID: 1, User: "ST2A", Direction: domain.DirectionUp, Amount: 3},
		domain.BetPlaced{Origin: origin("0xb", 6), RoundID: 1, User: "ST2B", Direction: domain.DirectionDown, Amount: 4},
		domain.BetPlaced{Origin: origin("0xc", 7), RoundID: 1, User: "ST2C", Direction: domain.DirectionUp, Amount: 5},
		domain.RoundEnded{Origin: origin("0xd", 8), RoundID: 1, EndBlock: 8},
	})

	round, _ := store.Round(1)
	var sum uint64
	for _, b := range store.Bets(1) {
		sum += b.Amount
	}
	assert.Equal(t, sum, round.PoolUp+round.PoolDown)
}

func TestOrphanBetDropped(t *testing.T) {
	r, store := newTestReconciler(newFakeChain(), Config{})
	ctx := context.Background()

	r.ApplyEvents(ctx, []domain.Command{
		domain.BetPlaced{Origin: origin("0xearly", 4), RoundID: 7, User: "ST2U", Direction: domain.DirectionUp, Amount: 9},
	})
	assert.Empty(t, store.Bets(7))

	r.ApplyEvents(ctx, []domain.Command{
		domain.RoundStarted{Origin: origin("0x0", 5), RoundID: 7, StartBlock: 5},
	})

	round, ok := store.Round(7)
	require.True(t, ok)
	assert.Equal(t, uint64(0), round.PoolUp, "the early bet is not retroactively credited")
	assert.Equal(t, uint64(0), round.PoolDown)
}

func TestRoundStartedReplayKeepsTotals(t *testing.T) {
	r, store := newTestReconciler(newFakeChain(), Config{})
	ctx := context.Background()

	r.ApplyEvents(ctx, []domain.Command{
		domain.RoundStarted{Origin: origin("0x0", 5), RoundID: 1, StartBlock: 5},
		domain.BetPlaced{Origin: origin("0xa", 6), RoundID: 1, Direction: domain.DirectionUp, Amount: 10},
		domain.RoundStarted{Origin: origin("0x0", 5), RoundID: 1, StartBlock: 5}, // same start block: replay
	})

	round, _ := store.Round(1)
	assert.Equal(t, uint64(10), round.PoolUp)

	// A different start block means a genuinely new round under a reused id:
	// totals reset.
	r.ApplyEvents(ctx, []domain.Command{
		domain.RoundStarted{Origin: origin("0x9", 50), RoundID: 1, StartBlock: 50},
	})
	round, _ = store.Round(1)
	assert.Equal(t, uint64(0), round.PoolUp)
}

func TestColdStartResync(t *testing.T) {
	chain := newFakeChain()
	chain.counter = 3
	dir := domain.DirectionUp
	chain.rounds[1] = domain.Round{ID: 1, Status: domain.RoundStatusResolved, StartPrice: 90, EndPrice: 95, PoolUp: 7, PoolDown: 3, WinningDirection: &dir, StartBlock: 10}
	chain.rounds[2] = domain.Round{ID: 2, Status: domain.RoundStatusClosed, StartPrice: 95, PoolUp: 1, PoolDown: 2, StartBlock: 20}
	chain.rounds[3] = domain.Round{ID: 3, Status: domain.RoundStatusOpen, StartPrice: 96, StartBlock: 30}

	r, store := newTestReconciler(chain, Config{})
	require.NoError(t, r.ReconcileFull(context.Background(), "startup", false))

	rounds := store.Rounds()
	require.Len(t, rounds, 3)

	got, ok := store.Round(1)
	require.True(t, ok)
	assert.Equal(t, domain.RoundStatusResolved, got.Status)
	assert.Equal(t, uint64(7), got.PoolUp)
	require.NotNil(t, got.WinningDirection)
	assert.NotZero(t, got.StartTime, "unknown rounds get a wall-clock start time on first merge")
}

func TestMergePreservesStartTime(t *testing.T) {
	chain := newFakeChain()
	chain.counter = 1
	chain.rounds[1] = domain.Round{ID: 1, Status: domain.RoundStatusOpen, PoolUp: 99, PoolDown: 1, StartBlock: 10}

	r, store := newTestReconciler(chain, Config{})
	store.PutRound(domain.Round{ID: 1, Status: domain.RoundStatusOpen, PoolUp: 5, StartBlock: 10, StartTime: 1_700_000_000, EndBlock: 42})

	require.NoError(t, r.ReconcileFull(context.Background(), "interval", false))

	round, _ := store.Round(1)
	assert.Equal(t, uint64(99), round.PoolUp, "chain totals overwrite")
	assert.Equal(t, int64(1_700_000_000), round.StartTime, "local start time survives")
	assert.Equal(t, uint64(42), round.EndBlock, "local end block survives")
}

func TestMergeRejectsStatusRegress(t *testing.T) {
	chain := newFakeChain()
	chain.counter = 1
	chain.rounds[1] = domain.Round{ID: 1, Status: domain.RoundStatusOpen, PoolUp: 1, StartBlock: 10}

	r, store := newTestReconciler(chain, Config{})
	dir := domain.DirectionUp
	store.PutRound(domain.Round{ID: 1, Status: domain.RoundStatusResolved, PoolUp: 5, WinningDirection: &dir, StartBlock: 10, StartTime: 100})

	require.NoError(t, r.ReconcileFull(context.Background(), "interval", false))
	round, _ := store.Round(1)
	assert.Equal(t, domain.RoundStatusResolved, round.Status, "lower chain status is reorg evidence, not truth")
	assert.Equal(t, uint64(5), round.PoolUp, "the whole entity is kept when the regress is rejected")

	// A rollback-initiated pass trusts the chain even on a regress.
	require.NoError(t, r.ReconcileFull(context.Background(), "rollback", true))
	round, _ = store.Round(1)
	assert.Equal(t, domain.RoundStatusOpen, round.Status)
	assert.Equal(t, uint64(1), round.PoolUp)
	assert.Equal(t, int64(100), round.StartTime)
}

func TestReconcileIsolatesPerIDFailures(t *testing.T) {
	chain := newFakeChain()
	chain.counter = 3
	chain.rounds[1] = domain.Round{ID: 1, Status: domain.RoundStatusOpen, StartBlock: 10}
	chain.errIDs[2] = errors.New("timeout")
	chain.rounds[3] = domain.Round{ID: 3, Status: domain.RoundStatusOpen, StartBlock: 30}

	r, store := newTestReconciler(chain, Config{})
	require.NoError(t, r.ReconcileFull(context.Background(), "interval", false), "one failing id must not abort the pass")

	_, ok1 := store.Round(1)
	_, ok2 := store.Round(2)
	_, ok3 := store.Round(3)
	assert.True(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestMissingEntityPlaceholder(t *testing.T) {
	chain := newFakeChain()
	chain.counter = 2
	chain.rounds[2] = domain.Round{ID: 2, Status: domain.RoundStatusOpen, StartBlock: 20}
	// Round 1 is below the counter but the chain has no state for it.

	r, store := newTestReconciler(chain, Config{Placeholders: true})
	require.NoError(t, r.ReconcileFull(context.Background(), "startup", false))

	ph, ok := store.Round(1)
	require.True(t, ok, "a placeholder stops useless refetching")
	assert.Equal(t, domain.RoundStatusOpen, ph.Status)
	assert.Zero(t, ph.PoolUp)

	rNo, storeNo := newTestReconciler(chain, Config{Placeholders: false})
	require.NoError(t, rNo.ReconcileFull(context.Background(), "startup", false))
	_, ok = storeNo.Round(1)
	assert.False(t, ok)
}

func TestPoolLifecycleAndStats(t *testing.T) {
	r, store := newTestReconciler(newFakeChain(), Config{})
	ctx := context.Background()

	r.ApplyEvents(ctx, []domain.Command{
		domain.PoolCreated{Origin: origin("0x1", 10), PoolID: 0, Title: "BTC 100k", OutcomeA: "Yes", OutcomeB: "No", Creator: "ST2C", Expiry: 100, TokenType: domain.TokenSTX},
		domain.PoolBetPlaced{Origin: origin("0x2", 11), PoolID: 0, User: "ST2U", Outcome: domain.OutcomeA, Amount: 40},
		domain.PoolBetPlaced{Origin: origin("0x3", 11), PoolID: 0, User: "ST2V", Outcome: domain.OutcomeB, Amount: 60},
		domain.PoolSettled{Origin: origin("0x4", 20), PoolID: 0, WinningOutcome: domain.OutcomeA},
		// Replayed settle and a stray create are no-ops.
		domain.PoolSettled{Origin: origin("0x4", 20), PoolID: 0, WinningOutcome: domain.OutcomeB},
		domain.PoolCreated{Origin: origin("0x5", 21), PoolID: 0, Title: "other"},
	})

	pool, ok := store.Pool(0)
	require.True(t, ok)
	assert.Equal(t, "BTC 100k", pool.Title)
	assert.Equal(t, uint64(40), pool.TotalA)
	assert.Equal(t, uint64(60), pool.TotalB)
	assert.True(t, pool.Settled)
	require.NotNil(t, pool.WinningOutcome)
	assert.Equal(t, domain.OutcomeA, *pool.WinningOutcome)
	assert.Len(t, store.PoolBets(0), 2)
}

func TestScheduleResyncCoalesces(t *testing.T) {
	r, _ := newTestReconciler(newFakeChain(), Config{})
	r.ScheduleResync()
	r.ScheduleResync()
	r.ScheduleResync()

	assert.Len(t, r.resyncCh, 1, "pending requests coalesce into one pass")
}

func TestHandleRollbackSchedulesResync(t *testing.T) {
	r, _ := newTestReconciler(newFakeChain(), Config{})
	r.HandleRollback(context.Background(), []uint64{100, 101})
	assert.Len(t, r.resyncCh, 1)
}

func TestOverlappingFullPassSkipped(t *testing.T) {
	chain := newFakeChain()
	chain.counter = 1
	chain.rounds[1] = domain.Round{ID: 1, Status: domain.RoundStatusOpen, StartPrice: 90, StartBlock: 10}
	chain.hold = make(chan struct{})

	r, store := newTestReconciler(chain, Config{})

	done := make(chan error, 1)
	go func() {
		done <- r.ReconcileFull(context.Background(), "interval", false)
	}()
	<-chain.hold // first pass holds the busy lock, parked mid-fetch

	skippedBefore := testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("interval", "skipped"))

	// A second pass while one is running returns immediately: no queueing,
	// no merging, just a skip.
	require.NoError(t, r.ReconcileFull(context.Background(), "interval", false))
	assert.Equal(t, skippedBefore+1,
		testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("interval", "skipped")))
	_, ok := store.Round(1)
	assert.False(t, ok, "the skipped pass must not have merged anything")

	chain.hold <- struct{}{} // release the first pass
	require.NoError(t, <-done)

	round, ok := store.Round(1)
	require.True(t, ok)
	assert.Equal(t, uint64(90), round.StartPrice)
}

func TestRoundCounterOutageStillReconcilesPools(t *testing.T) {
	chain := newFakeChain()
	chain.counterErr = errors.New("node unavailable")
	chain.pools[0] = domain.Pool{ID: 0, Title: "BTC 100k", TotalA: 40, TotalB: 60}

	r, store := newTestReconciler(chain, Config{})

	err := r.ReconcileFull(context.Background(), "interval", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.counterErr)

	pool, ok := store.Pool(0)
	require.True(t, ok, "pools merge even when the rounds counter read fails")
	assert.Equal(t, uint64(40), pool.TotalA)
}
