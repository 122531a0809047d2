package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanpool/betsync/go/internal/models"
)

func openRound() models.BettingRound {
	return models.BettingRound{
		ID:       "round-1",
		StreamID: "stream-1",
		Name:     "Who wins the race?",
		Status:   models.RoundStatusOpen,
		Options: []models.BettingOption{
			{ID: "opt-a", Label: "Car 1", RoundID: "round-1"},
			{ID: "opt-b", Label: "Car 2", RoundID: "round-1"},
		},
		PoolTotals: models.PoolTotals{
			models.CurrencyGold: {"opt-a": 40, "opt-b": 60},
		},
	}
}

func TestRoundStore_InstallRound(t *testing.T) {
	rs := NewRoundStore("stream-1")
	rs.SetLocked(true) // no round yet, no-op
	rs.InstallRound(openRound())

	snap := rs.Snapshot()
	require.NotNil(t, snap.Round)
	assert.Equal(t, "round-1", snap.Round.ID)
	assert.False(t, snap.Locked)
	assert.Nil(t, snap.Settlement)
}

func TestRoundStore_PushPrecedenceOverPull(t *testing.T) {
	rs := NewRoundStore("stream-1")
	rs.InstallRound(openRound())

	// A pull is issued, then a push arrives while it is in flight.
	seqAtRequest := rs.Seq()
	rs.MergeTotals(models.PoolTotals{
		models.CurrencyGold: {"opt-a": 100, "opt-b": 200},
	})

	stale := openRound() // the older snapshot the pull returns
	applied := rs.ReconcilePull(&stale, false, seqAtRequest)

	assert.False(t, applied, "stale pull must be discarded")
	round := rs.Round()
	assert.Equal(t, int64(100), round.PoolTotals[models.CurrencyGold]["opt-a"])
	assert.Equal(t, int64(200), round.PoolTotals[models.CurrencyGold]["opt-b"])
}

func TestRoundStore_FreshPullApplies(t *testing.T) {
	rs := NewRoundStore("stream-1")

	seqAtRequest := rs.Seq()
	fresh := openRound()
	applied := rs.ReconcilePull(&fresh, true, seqAtRequest)

	assert.True(t, applied)
	assert.True(t, rs.Locked())
	require.NotNil(t, rs.Round())
	assert.Equal(t, "round-1", rs.Round().ID)
}

func TestRoundStore_MergeTotalsKeepsLatestPush(t *testing.T) {
	rs := NewRoundStore("stream-1")
	rs.InstallRound(openRound())

	rs.MergeTotals(models.PoolTotals{models.CurrencyGold: {"opt-a": 50, "opt-b": 70}})
	rs.MergeTotals(models.PoolTotals{models.CurrencyGold: {"opt-a": 55, "opt-b": 75}})

	round := rs.Round()
	assert.Equal(t, int64(55), round.PoolTotals[models.CurrencyGold]["opt-a"])
	assert.Equal(t, int64(75), round.PoolTotals[models.CurrencyGold]["opt-b"])
}

func TestRoundStore_SetLocked(t *testing.T) {
	rs := NewRoundStore("stream-1")
	rs.InstallRound(openRound())

	rs.SetLocked(true)
	assert.True(t, rs.Locked())
	assert.Equal(t, models.RoundStatusLocked, rs.Round().Status)

	// Duplicate delivery changes nothing.
	rs.SetLocked(true)
	assert.True(t, rs.Locked())
	assert.Equal(t, models.RoundStatusLocked, rs.Round().Status)
}

func TestRoundStore_SetWinnerIdempotent(t *testing.T) {
	rs := NewRoundStore("stream-1")
	rs.InstallRound(openRound())

	settlement := models.Settlement{WinnerName: "Car 1", WinnerAmount: 90}
	rs.SetWinner(settlement)
	rs.SetWinner(settlement)

	snap := rs.Snapshot()
	assert.Equal(t, models.RoundStatusWinner, snap.Round.Status)
	require.NotNil(t, snap.Settlement)
	assert.Equal(t, "Car 1", snap.Settlement.WinnerName)
}

func TestRoundStore_Reset(t *testing.T) {
	rs := NewRoundStore("stream-1")
	rs.InstallRound(openRound())
	seqBefore := rs.Seq()

	rs.Reset()

	assert.Nil(t, rs.Round())
	assert.False(t, rs.Locked())
	assert.Greater(t, rs.Seq(), seqBefore, "reset is a push-owned write")
}

func TestRoundStore_SnapshotDoesNotAliasStore(t *testing.T) {
	rs := NewRoundStore("stream-1")
	rs.InstallRound(openRound())

	round := rs.Round()
	round.PoolTotals[models.CurrencyGold]["opt-a"] = 9999

	assert.Equal(t, int64(40), rs.Round().PoolTotals[models.CurrencyGold]["opt-a"])
}
