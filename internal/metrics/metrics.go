// Package metrics defines the Prometheus instrumentation for the indexer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_deliveries_total", Help: "Inbound push deliveries by outcome"},
		[]string{"status"},
	)
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_events_total", Help: "Decoded print events applied, by discriminator"},
		[]string{"event"},
	)
	UnknownEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "indexer_unknown_events_total", Help: "Print events dropped for an unrecognized discriminator"},
	)
	DuplicateBetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "indexer_duplicate_bets_total", Help: "Bet events skipped because the transaction hash was already recorded"},
	)
	OrphanBetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "indexer_orphan_bets_total", Help: "Bet events dropped because the round or pool was not yet known"},
	)
	RollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "indexer_rollbacks_total", Help: "Rollback notices received"},
	)
	ReconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_reconcile_runs_total", Help: "Full reconciliation passes by trigger and outcome"},
		[]string{"trigger", "outcome"},
	)
	ReconcileEntityErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_reconcile_entity_errors_total", Help: "Per-entity fetch or merge failures during reconciliation"},
		[]string{"entity"},
	)
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "indexer_reconcile_duration_seconds", Help: "Full reconciliation pass latency", Buckets: prometheus.DefBuckets},
	)
	RoundsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "indexer_rounds_tracked", Help: "Rounds currently held in the projection"},
	)
	PoolsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "indexer_pools_tracked", Help: "Pools currently held in the projection"},
	)
	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "indexer_ws_clients", Help: "Connected WebSocket clients"},
	)
)

func init() {
	prometheus.MustRegister(
		DeliveriesTotal,
		EventsTotal,
		UnknownEventsTotal,
		DuplicateBetsTotal,
		OrphanBetsTotal,
		RollbacksTotal,
		ReconcileRunsTotal,
		ReconcileEntityErrorsTotal,
		ReconcileDuration,
		RoundsTracked,
		PoolsTracked,
		WSClients,
	)
}
