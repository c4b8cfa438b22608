package stacks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictstack/indexer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestReader(t *testing.T, handler http.HandlerFunc) *ContractReader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		APIURL: srv.URL,
		Sender: "ST1ZGGS886YCZHMFXJR1EK61ZP34FNWNSX28M1PMM",
	}, testLogger())

	return NewContractReader(client, ReaderConfig{
		Address:        "ST1ZGGS886YCZHMFXJR1EK61ZP34FNWNSX28M1PMM",
		RoundsContract: "prediction-market-v2",
		PoolsContract:  "prediction-pools",
	})
}

func writeCallRead(w http.ResponseWriter, result string) {
	json.NewEncoder(w).Encode(map[string]any{"okay": true, "result": result})
}

func TestCurrentRoundID(t *testing.T) {
	reader := newTestReader(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/v2/contracts/call-read/")
		assert.Contains(t, r.URL.Path, "get-current-round-id")

		var req callReadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Arguments)

		writeCallRead(w, EncodeUint(3))
	})

	id, err := reader.CurrentRoundID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
}

func TestRoundDecodesTuple(t *testing.T) {
	tuple := wireTuple(map[string][]byte{
		"status":            wireUint(3),
		"start-price":       wireUint(95_000),
		"end-price":         wireUint(97_500),
		"pool-up":           wireUint(5_000_000),
		"pool-down":         wireUint(2_000_000),
		"winning-direction": wireUint(1),
		"start-block":       wireUint(1200),
	}, []string{"status", "start-price", "end-price", "pool-up", "pool-down", "winning-direction", "start-block"})

	reader := newTestReader(t, func(w http.ResponseWriter, r *http.Request) {
		var req callReadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Arguments, 1)
		assert.Equal(t, EncodeUint(7), req.Arguments[0])

		writeCallRead(w, toHex(wireSome(tuple)))
	})

	round, err := reader.Round(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), round.ID)
	assert.Equal(t, domain.RoundStatusResolved, round.Status)
	assert.Equal(t, uint64(95_000), round.StartPrice)
	assert.Equal(t, uint64(97_500), round.EndPrice)
	assert.Equal(t, uint64(5_000_000), round.PoolUp)
	assert.Equal(t, uint64(2_000_000), round.PoolDown)
	assert.Equal(t, uint64(1200), round.StartBlock)
	require.NotNil(t, round.WinningDirection)
	assert.Equal(t, domain.DirectionUp, *round.WinningDirection)
	assert.Zero(t, round.StartTime, "wall-clock provenance belongs to the reconciler")
}

func TestRoundNoneIsNotFound(t *testing.T) {
	reader := newTestReader(t, func(w http.ResponseWriter, r *http.Request) {
		writeCallRead(w, "0x09")
	})

	_, err := reader.Round(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCallReadRejection(t *testing.T) {
	reader := newTestReader(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"okay": false, "cause": "Unchecked(NoSuchContract)"})
	})

	_, err := reader.CurrentRoundID(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchContract")
}

func TestCallReadSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		writeCallRead(w, EncodeUint(0))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{APIURL: srv.URL, APIKey: "secret-key", Sender: "ST000"}, testLogger())
	_, err := client.CallReadOnly(context.Background(), "ST000", "c", "f")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotKey)
}

func TestPoolDecodesTuple(t *testing.T) {
	tuple := wireTuple(map[string][]byte{
		"title":           wireString("Will BTC hit 100k?"),
		"description":     wireString("Bitcoin price prediction"),
		"outcome-a":       wireString("Yes"),
		"outcome-b":       wireString("No"),
		"category":        wireString("Crypto"),
		"creator":         wireString("ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"),
		"expiry":          wireUint(150),
		"total-a":         wireUint(3_000_000),
		"total-b":         wireUint(1_000_000),
		"token-type":      wireUint(0),
		"settled":         wireBool(false),
		"winning-outcome": {tagNone},
		"deposit-claimed": wireBool(false),
	}, []string{"title", "description", "outcome-a", "outcome-b", "category", "creator",
		"expiry", "total-a", "total-b", "token-type", "settled", "winning-outcome", "deposit-claimed"})

	reader := newTestReader(t, func(w http.ResponseWriter, r *http.Request) {
		writeCallRead(w, toHex(wireSome(tuple)))
	})

	pool, err := reader.Pool(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "Will BTC hit 100k?", pool.Title)
	assert.Equal(t, "Yes", pool.OutcomeA)
	assert.Equal(t, domain.TokenSTX, pool.TokenType)
	assert.Equal(t, uint64(3_000_000), pool.TotalA)
	assert.False(t, pool.Settled)
	assert.Nil(t, pool.WinningOutcome)
}
