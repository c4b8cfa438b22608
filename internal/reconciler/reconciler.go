// Package reconciler merges two independently paced update sources into the
// projection: decoded push events (ApplyEvents) and periodic authoritative
// chain reads (ReconcileFull). Both write through a single mutation lane so
// the two paths never interleave their writes to the same entity.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/metrics"
	"github.com/predictstack/indexer/internal/projection"
)

// ChainReader is the slice of the chain client the reconciler needs.
type ChainReader interface {
	CurrentRoundID(ctx context.Context) (uint64, error)
	Round(ctx context.Context, id uint64) (domain.Round, error)
	PoolCount(ctx context.Context) (uint64, error)
	Pool(ctx context.Context, id uint64) (domain.Pool, error)
}

// Notifier receives operational alerts (rollback notices, reconcile
// anomalies). May be nil.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Config tunes the reconciliation loop.
type Config struct {
	// Interval between periodic full passes.
	Interval time.Duration
	// FetchConcurrency bounds parallel per-id chain reads within a pass.
	FetchConcurrency int
	// Placeholders inserts a de-minimis entry when the chain reports no
	// state for an id below the counter, so the id is not re-queried
	// uselessly forever.
	Placeholders bool
}

// Reconciler owns all projection mutation. ApplyEvents handles the push
// path; Run drives the poll path plus rollback-triggered resyncs.
type Reconciler struct {
	store  *projection.Store
	chain  ChainReader
	bus    domain.SignalBus // may be nil
	notify Notifier         // may be nil
	cfg    Config
	logger *slog.Logger

	// mu is the single mutation lane shared by ApplyEvents and the merge
	// phase of ReconcileFull.
	mu sync.Mutex

	// fullMu enforces skip-if-busy: a tick that finds a pass still
	// running skips instead of queueing up.
	fullMu sync.Mutex

	resyncCh chan struct{}
}

// New creates a Reconciler. bus and notify are optional.
func New(store *projection.Store, chain ChainReader, bus domain.SignalBus, notify Notifier, cfg Config, logger *slog.Logger) *Reconciler {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Reconciler{
		store:    store,
		chain:    chain,
		bus:      bus,
		notify:   notify,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "reconciler")),
		resyncCh: make(chan struct{}, 1),
	}
}

// Run performs a startup pass, then alternates between interval ticks and
// out-of-band resync requests until the context is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconcile loop starting", slog.Duration("interval", r.cfg.Interval))

	if err := r.ReconcileFull(ctx, "startup", false); err != nil {
		r.logger.Error("startup reconcile failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconcile loop stopped")
			return nil
		case <-ticker.C:
			if err := r.ReconcileFull(ctx, "interval", false); err != nil {
				r.logger.Error("periodic reconcile failed", slog.String("error", err.Error()))
			}
		case <-r.resyncCh:
			// Rollback-initiated: the chain is authoritative even when it
			// reports a lower lifecycle status than the projection.
			if err := r.ReconcileFull(ctx, "rollback", true); err != nil {
				r.logger.Error("rollback reconcile failed", slog.String("error", err.Error()))
			}
		}
	}
}

// HandleRollback reacts to a rollback notice: log, alert, and schedule an
// immediate out-of-band full pass. The projection keeps no per-field block
// provenance, so trusting the next authoritative read is the whole policy.
func (r *Reconciler) HandleRollback(ctx context.Context, heights []uint64) {
	metrics.RollbacksTotal.Inc()
	r.logger.Warn("rollback notice received", slog.Any("heights", heights))

	if r.notify != nil {
		msg := fmt.Sprintf("chain rollback observed for %d block(s), full resync scheduled", len(heights))
		if err := r.notify.Notify(ctx, msg); err != nil {
			r.logger.Warn("rollback alert failed", slog.String("error", err.Error()))
		}
	}

	r.ScheduleResync()
}

// ScheduleResync requests an out-of-band full pass. Non-blocking; a request
// while one is already pending coalesces into it.
func (r *Reconciler) ScheduleResync() {
	select {
	case r.resyncCh <- struct{}{}:
	default:
	}
}

// ResyncPending reports whether an out-of-band full pass is queued.
func (r *Reconciler) ResyncPending() bool {
	return len(r.resyncCh) > 0
}

// ApplyEvents applies decoded push commands in order under the mutation
// lane. Individual commands never fail: replays and orphans are counted and
// skipped.
func (r *Reconciler) ApplyEvents(ctx context.Context, commands []domain.Command) {
	if len(commands) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range commands {
		r.applyCommand(ctx, cmd)
	}
}

func (r *Reconciler) applyCommand(ctx context.Context, cmd domain.Command) {
	metrics.EventsTotal.WithLabelValues(cmd.EventName()).Inc()

	switch c := cmd.(type) {
	case domain.RoundStarted:
		r.applyRoundStarted(ctx, c)
	case domain.RoundEnded:
		r.applyRoundEnded(ctx, c)
	case domain.RoundResolved:
		r.applyRoundResolved(ctx, c)
	case domain.BetPlaced:
		r.applyBetPlaced(ctx, c)
	case domain.WinningsClaimed:
		r.applyWinningsClaimed(c)
	case domain.PoolCreated:
		r.applyPoolCreated(ctx, c)
	case domain.PoolBetPlaced:
		r.applyPoolBetPlaced(ctx, c)
	case domain.PoolSettled:
		r.applyPoolSettled(ctx, c)
	case domain.PoolWinningsClaimed:
		r.touchPool(c.PoolID, c.EventName())
	case domain.PoolRefund:
		r.touchPool(c.PoolID, c.EventName())
	default:
		r.logger.Warn("unhandled command type", slog.String("event", cmd.EventName()))
	}
}

func (r *Reconciler) applyRoundStarted(ctx context.Context, c domain.RoundStarted) {
	if cur, ok := r.store.Round(c.RoundID); ok && cur.StartBlock == c.StartBlock {
		// Replay of the same start event.
		return
	}

	round := domain.Round{
		ID:         c.RoundID,
		Status:     domain.RoundStatusOpen,
		StartPrice: c.StartPrice,
		StartBlock: c.StartBlock,
		StartTime:  time.Now().Unix(),
	}
	r.store.PutRound(round)
	r.logger.Info("round started", slog.Uint64("round", c.RoundID), slog.Uint64("start_block", c.StartBlock))
	r.publishRound(ctx, round)
}

func (r *Reconciler) applyRoundEnded(ctx context.Context, c domain.RoundEnded) {
	cur, ok := r.store.Round(c.RoundID)
	if !ok || cur.Status != domain.RoundStatusOpen {
		// Unknown round or a replay past the Open state.
		return
	}

	cur.Status = domain.RoundStatusClosed
	cur.EndBlock = c.EndBlock
	if c.PoolUp > 0 {
		cur.PoolUp = c.PoolUp
	}
	if c.PoolDown > 0 {
		cur.PoolDown = c.PoolDown
	}
	r.store.PutRound(cur)
	r.logger.Info("round ended", slog.Uint64("round", c.RoundID), slog.Uint64("end_block", c.EndBlock))
	r.publishRound(ctx, cur)
}

func (r *Reconciler) applyRoundResolved(ctx context.Context, c domain.RoundResolved) {
	cur, ok := r.store.Round(c.RoundID)
	if !ok || cur.Status == domain.RoundStatusResolved {
		return
	}

	dir := c.WinningDirection
	cur.Status = domain.RoundStatusResolved
	cur.EndPrice = c.EndPrice
	cur.WinningDirection = &dir
	r.store.PutRound(cur)
	r.logger.Info("round resolved",
		slog.Uint64("round", c.RoundID),
		slog.String("winner", dir.Label()),
	)
	r.publishRound(ctx, cur)
}

func (r *Reconciler) applyBetPlaced(ctx context.Context, c domain.BetPlaced) {
	cur, ok := r.store.Round(c.RoundID)
	if !ok {
		// A bet for a round we have never seen is dropped, not credited
		// retroactively once the round appears.
		metrics.OrphanBetsTotal.Inc()
		r.logger.Debug("bet for unknown round dropped",
			slog.Uint64("round", c.RoundID),
			slog.String("tx", c.Tx()),
		)
		return
	}

	bet := domain.Bet{
		RoundID:        c.RoundID,
		User:           c.User,
		Direction:      c.Direction,
		DirectionLabel: c.Direction.Label(),
		Amount:         c.Amount,
		TxHash:         c.Tx(),
		BlockHeight:    c.Height(),
		Timestamp:      time.Now().UTC(),
	}
	if !r.store.AppendBet(bet) {
		metrics.DuplicateBetsTotal.Inc()
		return
	}

	// The pool increment happens exactly once per unique transaction hash,
	// guarded by the append above.
	if c.Direction == domain.DirectionUp {
		cur.PoolUp += c.Amount
	} else {
		cur.PoolDown += c.Amount
	}
	r.store.PutRound(cur)
	r.publishBet(ctx, bet)
}

func (r *Reconciler) applyWinningsClaimed(c domain.WinningsClaimed) {
	if _, ok := r.store.Round(c.RoundID); !ok {
		return
	}

	claim := domain.Claim{
		RoundID:     c.RoundID,
		User:        c.User,
		Amount:      c.Amount,
		TxHash:      c.Tx(),
		BlockHeight: c.Height(),
		Timestamp:   time.Now().UTC(),
	}
	if r.store.AppendClaim(claim) {
		r.logger.Info("winnings claimed",
			slog.Uint64("round", c.RoundID),
			slog.String("user", c.User),
			slog.Uint64("amount", c.Amount),
		)
	}
}

func (r *Reconciler) applyPoolCreated(ctx context.Context, c domain.PoolCreated) {
	if _, ok := r.store.Pool(c.PoolID); ok {
		// Lifecycle events are keyed on pool id; a second create is a replay.
		return
	}

	now := time.Now().UTC()
	pool := domain.Pool{
		ID:          c.PoolID,
		Title:       c.Title,
		Description: c.Description,
		OutcomeA:    c.OutcomeA,
		OutcomeB:    c.OutcomeB,
		Category:    c.Category,
		Creator:     c.Creator,
		Expiry:      c.Expiry,
		TokenType:   c.TokenType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.store.PutPool(pool)
	r.logger.Info("pool created", slog.Uint64("pool", c.PoolID), slog.String("title", c.Title))
	r.publishPool(ctx, pool)
}

func (r *Reconciler) applyPoolBetPlaced(ctx context.Context, c domain.PoolBetPlaced) {
	cur, ok := r.store.Pool(c.PoolID)
	if !ok {
		metrics.OrphanBetsTotal.Inc()
		r.logger.Debug("bet for unknown pool dropped",
			slog.Uint64("pool", c.PoolID),
			slog.String("tx", c.Tx()),
		)
		return
	}

	bet := domain.PoolBet{
		PoolID:      c.PoolID,
		User:        c.User,
		Outcome:     c.Outcome,
		Amount:      c.Amount,
		TxHash:      c.Tx(),
		BlockHeight: c.Height(),
		Timestamp:   time.Now().UTC(),
	}
	if !r.store.AppendPoolBet(bet) {
		metrics.DuplicateBetsTotal.Inc()
		return
	}

	if c.Outcome == domain.OutcomeB {
		cur.TotalB += c.Amount
	} else {
		cur.TotalA += c.Amount
	}
	cur.UpdatedAt = time.Now().UTC()
	r.store.PutPool(cur)
	r.publishPool(ctx, cur)
}

func (r *Reconciler) applyPoolSettled(ctx context.Context, c domain.PoolSettled) {
	cur, ok := r.store.Pool(c.PoolID)
	if !ok || cur.Settled {
		return
	}

	outcome := c.WinningOutcome
	cur.Settled = true
	cur.WinningOutcome = &outcome
	cur.UpdatedAt = time.Now().UTC()
	r.store.PutPool(cur)
	r.logger.Info("pool settled", slog.Uint64("pool", c.PoolID))
	r.publishPool(ctx, cur)
}

// touchPool refreshes UpdatedAt for claim and refund events. The
// deposit-claimed flag is owned by the authoritative chain read.
func (r *Reconciler) touchPool(id uint64, event string) {
	cur, ok := r.store.Pool(id)
	if !ok {
		return
	}
	cur.UpdatedAt = time.Now().UTC()
	r.store.PutPool(cur)
	r.logger.Debug("pool touched", slog.Uint64("pool", id), slog.String("event", event))
}

// fetchResult carries one id's authoritative read out of the bounded fetch
// phase and into the serial merge phase.
type fetchResult[T any] struct {
	id       uint64
	entity   T
	notFound bool
	err      error
}

// ReconcileFull pulls the full authoritative state and merges it into the
// projection. Overlapping passes are skipped, not queued. allowRegress is
// set only for rollback-initiated passes and disables the monotonic status
// guard.
func (r *Reconciler) ReconcileFull(ctx context.Context, trigger string, allowRegress bool) error {
	if !r.fullMu.TryLock() {
		metrics.ReconcileRunsTotal.WithLabelValues(trigger, "skipped").Inc()
		r.logger.Debug("reconcile pass already running, skipping", slog.String("trigger", trigger))
		return nil
	}
	defer r.fullMu.Unlock()

	start := time.Now()
	r.logger.Debug("reconcile pass starting", slog.String("trigger", trigger))

	// The rounds and pools sub-passes are independent sources; each runs
	// even when the other's counter read fails, so one outage does not
	// starve the other.
	roundErrs, roundCount, roundsErr := r.reconcileRounds(ctx, allowRegress)
	poolErrs, poolCount, poolsErr := r.reconcilePools(ctx, allowRegress)

	if roundsErr != nil || poolsErr != nil {
		metrics.ReconcileRunsTotal.WithLabelValues(trigger, "error").Inc()
		if roundsErr != nil {
			roundsErr = fmt.Errorf("reconciler: rounds: %w", roundsErr)
		}
		if poolsErr != nil {
			poolsErr = fmt.Errorf("reconciler: pools: %w", poolsErr)
		}
		return errors.Join(roundsErr, poolsErr)
	}

	metrics.ReconcileRunsTotal.WithLabelValues(trigger, "ok").Inc()
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("reconcile pass complete",
		slog.String("trigger", trigger),
		slog.Uint64("rounds", roundCount),
		slog.Uint64("pools", poolCount),
		slog.Int("round_errors", roundErrs),
		slog.Int("pool_errors", poolErrs),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (r *Reconciler) reconcileRounds(ctx context.Context, allowRegress bool) (failed int, counter uint64, err error) {
	counter, err = r.chain.CurrentRoundID(ctx)
	if err != nil {
		return 0, 0, err
	}

	results := make([]fetchResult[domain.Round], counter)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchConcurrency)

	for i := uint64(0); i < counter; i++ {
		id := i + 1 // rounds are 1-based
		slot := &results[i]
		g.Go(func() error {
			slot.id = id
			round, err := r.chain.Round(gctx, id)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				slot.notFound = true
			case err != nil:
				slot.err = err
			default:
				slot.entity = round
			}
			return nil
		})
	}
	_ = g.Wait() // per-id errors are carried in the slots

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range results {
		res := &results[i]
		switch {
		case res.err != nil:
			failed++
			metrics.ReconcileEntityErrorsTotal.WithLabelValues("round").Inc()
			r.logger.Warn("round fetch failed",
				slog.Uint64("round", res.id),
				slog.String("error", res.err.Error()),
			)
		case res.notFound:
			r.handleMissingRound(res.id)
		default:
			r.mergeRound(res.entity, allowRegress)
		}
	}
	return failed, counter, nil
}

func (r *Reconciler) reconcilePools(ctx context.Context, allowRegress bool) (failed int, count uint64, err error) {
	count, err = r.chain.PoolCount(ctx)
	if err != nil {
		return 0, 0, err
	}

	results := make([]fetchResult[domain.Pool], count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchConcurrency)

	for i := uint64(0); i < count; i++ {
		id := i // pools are 0-based
		slot := &results[i]
		g.Go(func() error {
			slot.id = id
			pool, err := r.chain.Pool(gctx, id)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				slot.notFound = true
			case err != nil:
				slot.err = err
			default:
				slot.entity = pool
			}
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range results {
		res := &results[i]
		switch {
		case res.err != nil:
			failed++
			metrics.ReconcileEntityErrorsTotal.WithLabelValues("pool").Inc()
			r.logger.Warn("pool fetch failed",
				slog.Uint64("pool", res.id),
				slog.String("error", res.err.Error()),
			)
		case res.notFound:
			r.handleMissingPool(res.id)
		default:
			r.mergePool(res.entity, allowRegress)
		}
	}
	return failed, count, nil
}

// mergeRound applies field-level overwrite with provenance exceptions:
// totals, status, prices, and winning direction come from the chain;
// startTime and endBlock are local observations and survive the merge.
func (r *Reconciler) mergeRound(fresh domain.Round, allowRegress bool) {
	cur, ok := r.store.Round(fresh.ID)
	if !ok {
		fresh.StartTime = time.Now().Unix()
		r.store.PutRound(fresh)
		return
	}

	if !allowRegress && fresh.Status.Rank() < cur.Status.Rank() {
		// A lower status from the chain is reorg evidence; keep the
		// projection until a rollback notice authorizes the regress.
		r.logger.Warn("chain reports regressed round status, keeping projection",
			slog.Uint64("round", fresh.ID),
			slog.String("projection", string(cur.Status)),
			slog.String("chain", string(fresh.Status)),
		)
		return
	}

	fresh.StartTime = cur.StartTime
	if fresh.StartTime == 0 {
		fresh.StartTime = time.Now().Unix()
	}
	// The contract read carries no end block.
	fresh.EndBlock = cur.EndBlock
	r.store.PutRound(fresh)
}

// mergePool mirrors mergeRound: chain owns totals, settled, winning outcome,
// and deposit-claimed; createdAt survives, updatedAt refreshes.
func (r *Reconciler) mergePool(fresh domain.Pool, allowRegress bool) {
	now := time.Now().UTC()
	cur, ok := r.store.Pool(fresh.ID)
	if !ok {
		fresh.CreatedAt = now
		fresh.UpdatedAt = now
		r.store.PutPool(fresh)
		return
	}

	if !allowRegress && cur.Settled && !fresh.Settled {
		r.logger.Warn("chain reports unsettled pool after settlement, keeping projection",
			slog.Uint64("pool", fresh.ID),
		)
		return
	}

	fresh.CreatedAt = cur.CreatedAt
	if fresh.CreatedAt.IsZero() {
		fresh.CreatedAt = now
	}
	fresh.UpdatedAt = now
	r.store.PutPool(fresh)
}

// handleMissingRound reacts to a none read for an id below the counter:
// always anomalous, optionally papered over with a placeholder so the id is
// not refetched forever.
func (r *Reconciler) handleMissingRound(id uint64) {
	if _, ok := r.store.Round(id); ok {
		return
	}
	r.logger.Warn("chain has no state for round below counter", slog.Uint64("round", id))
	if r.cfg.Placeholders {
		r.store.PutRound(domain.Round{
			ID:        id,
			Status:    domain.RoundStatusOpen,
			StartTime: time.Now().Unix(),
		})
	}
}

func (r *Reconciler) handleMissingPool(id uint64) {
	if _, ok := r.store.Pool(id); ok {
		return
	}
	r.logger.Warn("chain has no state for pool below counter", slog.Uint64("pool", id))
	if r.cfg.Placeholders {
		now := time.Now().UTC()
		r.store.PutPool(domain.Pool{ID: id, CreatedAt: now, UpdatedAt: now})
	}
}

// busMessage is the envelope published on the signal bus; the WebSocket hub
// forwards it to clients verbatim.
type busMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (r *Reconciler) publishRound(ctx context.Context, round domain.Round) {
	r.publish(ctx, domain.ChannelRounds, busMessage{Type: "round-update", Data: round})
}

func (r *Reconciler) publishPool(ctx context.Context, pool domain.Pool) {
	r.publish(ctx, domain.ChannelPools, busMessage{Type: "pool-update", Data: pool})
}

func (r *Reconciler) publishBet(ctx context.Context, bet domain.Bet) {
	r.publish(ctx, domain.ChannelBets, busMessage{Type: "bet-placed", Data: bet})
}

// publish is best-effort: a bus failure costs only the live feed, never the
// projection.
func (r *Reconciler) publish(ctx context.Context, channel string, msg busMessage) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Warn("bus payload marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Publish(ctx, channel, payload); err != nil {
		r.logger.Warn("bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
