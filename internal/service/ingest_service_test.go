package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictstack/indexer/internal/chainhook"
	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/projection"
	"github.com/predictstack/indexer/internal/reconciler"
)

type staticChain struct{}

func (staticChain) CurrentRoundID(context.Context) (uint64, error) { return 0, nil }
func (staticChain) Round(context.Context, uint64) (domain.Round, error) {
	return domain.Round{}, domain.ErrNotFound
}
func (staticChain) PoolCount(context.Context) (uint64, error) { return 0, nil }
func (staticChain) Pool(context.Context, uint64) (domain.Pool, error) {
	return domain.Pool{}, domain.ErrNotFound
}

func newTestIngest(t *testing.T) (*IngestService, *projection.Store, *reconciler.Reconciler) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := projection.NewStore()
	rec := reconciler.New(store, staticChain{}, nil, nil, reconciler.Config{}, logger)
	ing := NewIngestService(chainhook.NewDecoder(logger), rec, nil, logger)
	return ing, store, rec
}

func TestHandleDeliveryMalformed(t *testing.T) {
	ing, _, _ := newTestIngest(t)

	err := ing.HandleDelivery(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestHandleDeliveryAppliesEvents(t *testing.T) {
	ing, store, _ := newTestIngest(t)

	body := `{"apply":[{"block_identifier":{"index":10,"hash":"0xh"},"transactions":[
		{"transaction_identifier":{"hash":"0xstart"},"metadata":{"success":true,"receipt":{"events":[
			{"type":"print_event","data":{"value":{"event":"round-started","round-id":1,"start-price":95000}}}
		]}}},
		{"transaction_identifier":{"hash":"0xbet"},"metadata":{"success":true,"receipt":{"events":[
			{"type":"print_event","data":{"value":{"event":"bet-placed","round-id":1,"user":"ST2U","direction":1,"amount":5000000}}}
		]}}}
	]}]}`

	require.NoError(t, ing.HandleDelivery(context.Background(), []byte(body)))

	round, ok := store.Round(1)
	require.True(t, ok)
	assert.Equal(t, domain.RoundStatusOpen, round.Status)
	assert.Equal(t, uint64(5_000_000), round.PoolUp)
	assert.Len(t, store.Bets(1), 1)
}

func TestHandleDeliverySchedulesRollbackResync(t *testing.T) {
	ing, _, rec := newTestIngest(t)

	body := `{"apply":[],"rollback":[{"block_identifier":{"index":100,"hash":"0xr"},"transactions":[]}]}`
	require.NoError(t, ing.HandleDelivery(context.Background(), []byte(body)))

	// The resync request is queued for the reconcile loop to pick up.
	assert.True(t, rec.ResyncPending())
}
