package mutation

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanpool/betsync/go/internal/betsync/events"
	"github.com/fanpool/betsync/go/internal/betsync/store"
	"github.com/fanpool/betsync/go/internal/models"
)

type emittedFrame struct {
	event   events.EventType
	payload any
}

type spyEmitter struct {
	mu     sync.Mutex
	frames []emittedFrame
	err    error
}

func (s *spyEmitter) Emit(event events.EventType, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, emittedFrame{event: event, payload: payload})
	return nil
}

func (s *spyEmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type fixture struct {
	emitter *spyEmitter
	rounds  *store.RoundStore
	bets    *store.BetStore
	clock   *clockwork.FakeClock
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	emitter := &spyEmitter{}
	rounds := store.NewRoundStore("stream-1")
	bets := store.NewBetStore()
	clock := clockwork.NewFakeClock()
	coord := NewCoordinator(emitter, rounds, bets, clock, Options{
		QuietWindow: 2 * time.Second,
		AckTimeout:  15 * time.Second,
	}, nil)

	rounds.InstallRound(models.BettingRound{
		ID:       "round-1",
		StreamID: "stream-1",
		Status:   models.RoundStatusOpen,
		Options: []models.BettingOption{
			{ID: "opt-a", Label: "Car 1", RoundID: "round-1"},
			{ID: "opt-b", Label: "Car 2", RoundID: "round-1"},
		},
		PoolTotals: models.PoolTotals{models.CurrencyGold: {"opt-a": 40, "opt-b": 60}},
	})
	bets.SetWallet(models.WalletSnapshot{models.CurrencyGold: 100})
	return &fixture{emitter: emitter, rounds: rounds, bets: bets, clock: clock, coord: coord}
}

func (f *fixture) confirmPlaced(t *testing.T, id string, amount int64) {
	t.Helper()
	require.NoError(t, f.coord.AcceptConfirmation(models.MutationPlace))
	f.bets.ApplyConfirmed(models.UserBet{
		ID:       id,
		RoundID:  "round-1",
		OptionID: "opt-a",
		Amount:   amount,
		Currency: models.CurrencyGold,
	}, models.WalletSnapshot{models.CurrencyGold: 100 - amount}, nil)
}

func TestPlaceBet_Validation(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.coord.PlaceBet("", 10, models.CurrencyGold), ErrNoOptionSelected)
	assert.ErrorIs(t, f.coord.PlaceBet("opt-a", 0, models.CurrencyGold), ErrNonPositiveAmount)
	assert.ErrorIs(t, f.coord.PlaceBet("opt-a", -5, models.CurrencyGold), ErrNonPositiveAmount)
	assert.ErrorIs(t, f.coord.PlaceBet("opt-a", 101, models.CurrencyGold), ErrInsufficientBalance)
	assert.ErrorIs(t, f.coord.PlaceBet("opt-z", 10, models.CurrencyGold), ErrUnknownOption)

	assert.Zero(t, f.emitter.count(), "validation failures must not reach the network")
}

func TestPlaceBet_LockGateBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	f.rounds.SetLocked(true)

	assert.ErrorIs(t, f.coord.PlaceBet("opt-a", 10, models.CurrencyGold), ErrRoundLocked)
	assert.Zero(t, f.emitter.count())
}

func TestPlaceBet_EmitsAndMarksPending(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))

	assert.True(t, f.coord.Pending(models.MutationPlace))
	assert.Equal(t, models.BetStatusPending, f.bets.Bet().Status)
	require.Equal(t, 1, f.emitter.count())
	req := f.emitter.frames[0]
	assert.Equal(t, events.EventTypePlaceBet, req.event)
	assert.Equal(t, events.PlaceBetRequest{
		BettingVariableID: "opt-a",
		Amount:            50,
		CurrencyType:      models.CurrencyGold,
	}, req.payload)
}

func TestPlaceBet_DuplicateWhilePendingRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 10, models.CurrencyGold))

	err := f.coord.PlaceBet("opt-b", 10, models.CurrencyGold)
	assert.Error(t, err)
	assert.Equal(t, 1, f.emitter.count())
}

func TestPlaceBet_NotConnectedRollsBack(t *testing.T) {
	f := newFixture(t)
	f.emitter.err = assert.AnError

	err := f.coord.PlaceBet("opt-a", 10, models.CurrencyGold)
	assert.Error(t, err)
	assert.False(t, f.coord.Pending(models.MutationPlace))
	assert.Equal(t, models.BetStatusNone, f.bets.Bet().Status)
}

func TestEditBet_BalanceCreditsCommittedStake(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	f.confirmPlaced(t, "abc", 50) // wallet now 50 free, 50 committed

	// 50 free + 50 returned by the edit = 100 available.
	require.NoError(t, f.coord.EditBet("abc", "opt-b", 100, models.CurrencyGold))
	assert.True(t, f.coord.Pending(models.MutationEdit))
}

func TestEditBet_InsufficientBeyondCommitted(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	f.confirmPlaced(t, "abc", 50)

	assert.ErrorIs(t, f.coord.EditBet("abc", "opt-b", 101, models.CurrencyGold), ErrInsufficientBalance)
}

func TestEditBet_RequiresMatchingBet(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.coord.EditBet("abc", "opt-b", 10, models.CurrencyGold), ErrNoBetToMutate)
}

func TestCancelBet_ClearsImmediately(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	f.confirmPlaced(t, "abc", 50)

	require.NoError(t, f.coord.CancelBet("abc", models.CurrencyGold))

	assert.Equal(t, models.BetStatusNone, f.bets.Bet().Status)
	assert.True(t, f.coord.Pending(models.MutationCancel))
}

func TestCancelBet_RejectedWhenLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	f.confirmPlaced(t, "abc", 50)
	f.rounds.SetLocked(true)

	assert.ErrorIs(t, f.coord.CancelBet("abc", models.CurrencyGold), ErrRoundLocked)
	assert.Equal(t, models.BetStatusConfirmed, f.bets.Bet().Status)
}

func TestCancelWins_StaleConfirmationDiscarded(t *testing.T) {
	f := newFixture(t)

	// R1: place submitted, confirmation still in flight.
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	// R2: cancel the pending placement before R1's confirmation arrives.
	require.NoError(t, f.coord.CancelBet("", models.CurrencyGold))
	assert.Equal(t, models.BetStatusNone, f.bets.Bet().Status)

	// R1's confirmation is delivered after the cancel was applied.
	err := f.coord.AcceptConfirmation(models.MutationPlace)
	assert.ErrorIs(t, err, ErrStaleConfirmation)
	assert.Equal(t, models.BetStatusNone, f.bets.Bet().Status)
}

func TestCancel_QuietWindowSuppressesPull(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	f.confirmPlaced(t, "abc", 50)
	require.NoError(t, f.coord.CancelBet("abc", models.CurrencyGold))

	assert.False(t, f.coord.PullAllowed())

	f.clock.Advance(2 * time.Second)
	assert.True(t, f.coord.PullAllowed(), "quiet window elapsed, reconciliation resumes")
}

func TestCancel_MarkerClearedAfterQuietWindow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	require.NoError(t, f.coord.CancelBet("", models.CurrencyGold))

	// The cancelled placement's confirmation arrives and is discarded,
	// releasing the place slot.
	require.ErrorIs(t, f.coord.AcceptConfirmation(models.MutationPlace), ErrStaleConfirmation)

	f.clock.Advance(3 * time.Second)

	// A confirmation arriving after the window is a genuinely new action.
	require.NoError(t, f.coord.PlaceBet("opt-a", 10, models.CurrencyGold))
	assert.NoError(t, f.coord.AcceptConfirmation(models.MutationPlace))
}

func TestCancel_EmitFailureRestoresBet(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	f.confirmPlaced(t, "abc", 50)

	f.emitter.err = assert.AnError
	err := f.coord.CancelBet("abc", models.CurrencyGold)

	assert.Error(t, err)
	assert.Equal(t, models.BetStatusConfirmed, f.bets.Bet().Status, "bet stays in place when the cancel never left")
	assert.True(t, f.coord.PullAllowed(), "marker dropped with the failed cancel")
}

func TestAckTimeout_ReleasesBusyState(t *testing.T) {
	f := newFixture(t)
	notices := make(chan string, 1)
	f.coord.OnNotice(func(message string) {
		select {
		case notices <- message:
		default:
		}
	})

	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	require.True(t, f.coord.Pending(models.MutationPlace))

	// The fake clock fires the ack timer on its own goroutine.
	f.clock.Advance(15 * time.Second)
	select {
	case message := <-notices:
		assert.NotEmpty(t, message)
	case <-time.After(time.Second):
		t.Fatal("no timeout notice delivered")
	}

	assert.False(t, f.coord.Pending(models.MutationPlace))
	assert.Equal(t, models.BetStatusNone, f.bets.Bet().Status)
}

func TestFailPending_RollsBackToLastConfirmed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	f.confirmPlaced(t, "abc", 50)

	require.NoError(t, f.coord.EditBet("abc", "opt-b", 80, models.CurrencyGold))
	require.Equal(t, models.BetStatusPending, f.bets.Bet().Status)

	f.coord.FailPending("round locked")

	assert.False(t, f.coord.Pending(models.MutationEdit))
	bet := f.bets.Bet()
	assert.Equal(t, models.BetStatusConfirmed, bet.Status)
	assert.Equal(t, int64(50), bet.Amount)
	assert.Equal(t, "opt-a", bet.OptionID)
}

func TestReset_FreshGenerationCounter(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.PlaceBet("opt-a", 50, models.CurrencyGold))
	require.NoError(t, f.coord.CancelBet("", models.CurrencyGold))

	f.coord.Reset()

	assert.True(t, f.coord.PullAllowed())
	assert.False(t, f.coord.Pending(models.MutationPlace))
	assert.False(t, f.coord.Pending(models.MutationCancel))

	require.NoError(t, f.coord.PlaceBet("opt-a", 10, models.CurrencyGold))
	assert.NoError(t, f.coord.AcceptConfirmation(models.MutationPlace))
}
