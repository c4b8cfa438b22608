package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictstack/indexer/internal/domain"
)

func TestRoundCopiesOnRead(t *testing.T) {
	s := NewStore()
	dir := domain.DirectionUp
	s.PutRound(domain.Round{ID: 1, Status: domain.RoundStatusResolved, WinningDirection: &dir})

	got, ok := s.Round(1)
	require.True(t, ok)
	*got.WinningDirection = domain.DirectionDown

	again, _ := s.Round(1)
	assert.Equal(t, domain.DirectionUp, *again.WinningDirection, "mutating a snapshot must not touch stored state")
}

func TestRoundsOrderedNewestFirst(t *testing.T) {
	s := NewStore()
	s.PutRound(domain.Round{ID: 2, Status: domain.RoundStatusOpen})
	s.PutRound(domain.Round{ID: 5, Status: domain.RoundStatusOpen})
	s.PutRound(domain.Round{ID: 1, Status: domain.RoundStatusResolved})

	rounds := s.Rounds()
	require.Len(t, rounds, 3)
	assert.Equal(t, uint64(5), rounds[0].ID)
	assert.Equal(t, uint64(2), rounds[1].ID)
	assert.Equal(t, uint64(1), rounds[2].ID)
}

func TestAppendBetDedupsByTxHash(t *testing.T) {
	s := NewStore()
	bet := domain.Bet{RoundID: 1, User: "ST2USER", Direction: domain.DirectionUp, Amount: 5_000_000, TxHash: "0xabc"}

	assert.True(t, s.AppendBet(bet))
	assert.False(t, s.AppendBet(bet), "replayed hash must not append")
	assert.Len(t, s.Bets(1), 1)
	assert.True(t, s.HasBetTx("0xabc"))
	assert.False(t, s.HasBetTx("0xdef"))
}

func TestBetTxSetSharedAcrossRoundAndPoolBets(t *testing.T) {
	s := NewStore()
	require.True(t, s.AppendBet(domain.Bet{RoundID: 1, TxHash: "0x1"}))

	assert.False(t, s.AppendPoolBet(domain.PoolBet{PoolID: 0, TxHash: "0x1"}))
	assert.Empty(t, s.PoolBets(0))
}

func TestBetsByUserCaseInsensitive(t *testing.T) {
	s := NewStore()
	require.True(t, s.AppendBet(domain.Bet{RoundID: 1, User: "ST2AbCd", TxHash: "0x1"}))
	require.True(t, s.AppendBet(domain.Bet{RoundID: 2, User: "ST2ABCD", TxHash: "0x2"}))
	require.True(t, s.AppendBet(domain.Bet{RoundID: 1, User: "ST2OTHER", TxHash: "0x3"}))

	got := s.BetsByUser("st2abcd")
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].RoundID)
	assert.Equal(t, uint64(2), got[1].RoundID)
}

func TestPoolBetCount(t *testing.T) {
	s := NewStore()
	require.True(t, s.AppendPoolBet(domain.PoolBet{PoolID: 0, TxHash: "0xa"}))
	require.True(t, s.AppendPoolBet(domain.PoolBet{PoolID: 0, TxHash: "0xb"}))
	require.True(t, s.AppendPoolBet(domain.PoolBet{PoolID: 3, TxHash: "0xc"}))

	assert.Equal(t, 3, s.PoolBetCount())
}

func TestClaimsDedupIndependentOfBets(t *testing.T) {
	s := NewStore()
	require.True(t, s.AppendBet(domain.Bet{RoundID: 1, TxHash: "0x1"}))

	claim := domain.Claim{RoundID: 1, User: "ST2U", Amount: 9, TxHash: "0x1", Timestamp: time.Now()}
	assert.True(t, s.AppendClaim(claim), "claim hashes live in their own set")
	assert.False(t, s.AppendClaim(claim))
	assert.Len(t, s.Claims(1), 1)
}

func TestAllBetsOrderedByRound(t *testing.T) {
	s := NewStore()
	require.True(t, s.AppendBet(domain.Bet{RoundID: 7, TxHash: "0x1"}))
	require.True(t, s.AppendBet(domain.Bet{RoundID: 2, TxHash: "0x2"}))
	require.True(t, s.AppendBet(domain.Bet{RoundID: 7, TxHash: "0x3"}))

	all := s.AllBets()
	require.Len(t, all, 3)
	assert.Equal(t, uint64(2), all[0].RoundID)
	assert.Equal(t, "0x1", all[1].TxHash)
	assert.Equal(t, "0x3", all[2].TxHash)
}
