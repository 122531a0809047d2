package store

import (
	"sync"

	"github.com/fanpool/betsync/go/internal/models"
)

// BetStore keeps the user's bet within the active round, the last wallet
// snapshot, and the per-currency potential winnings display values. It also
// remembers the last confirmed bet so a server rejection can roll back to the
// last known-good state.
type BetStore struct {
	mu            sync.RWMutex
	bet           models.UserBet
	lastConfirmed models.UserBet
	wallet        models.WalletSnapshot
	potentials    map[models.CurrencyType]int64
}

// NewBetStore creates an empty bet store.
func NewBetStore() *BetStore {
	return &BetStore{
		bet:           models.UserBet{Status: models.BetStatusNone},
		lastConfirmed: models.UserBet{Status: models.BetStatusNone},
	}
}

// Bet returns a copy of the current bet.
func (bs *BetStore) Bet() models.UserBet {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.bet
}

// Wallet returns a copy of the last known wallet snapshot.
func (bs *BetStore) Wallet() models.WalletSnapshot {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.wallet.Clone()
}

// Balance returns the available balance for one currency.
func (bs *BetStore) Balance(cur models.CurrencyType) int64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.wallet[cur]
}

// Potentials returns the per-currency potential winnings display values.
func (bs *BetStore) Potentials() map[models.CurrencyType]int64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	out := make(map[models.CurrencyType]int64, len(bs.potentials))
	for cur, amt := range bs.potentials {
		out[cur] = amt
	}
	return out
}

// ApplyPending installs the optimistic PENDING bet for an in-flight place or
// edit. The rollback point is left untouched.
func (bs *BetStore) ApplyPending(bet models.UserBet) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bet.Status = models.BetStatusPending
	bs.bet = bet
}

// ApplyConfirmed installs a confirmed bet from a betConfirmed/betEdited
// payload. The confirmed bet becomes the rollback point. Idempotent: applying
// the identical payload twice yields the same state.
func (bs *BetStore) ApplyConfirmed(bet models.UserBet, wallet models.WalletSnapshot, potentials map[models.CurrencyType]int64) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bet.Status = models.BetStatusConfirmed
	bs.bet = bet
	bs.lastConfirmed = bet
	if wallet != nil {
		bs.wallet = wallet.Clone()
	}
	if potentials != nil {
		bs.setPotentialsLocked(potentials)
	}
}

// SetWallet replaces the wallet snapshot, e.g. from a cancellation payload.
func (bs *BetStore) SetWallet(wallet models.WalletSnapshot) {
	if wallet == nil {
		return
	}
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.wallet = wallet.Clone()
}

// SetPotentials replaces the per-currency potential winnings display values.
func (bs *BetStore) SetPotentials(potentials map[models.CurrencyType]int64) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.setPotentialsLocked(potentials)
}

func (bs *BetStore) setPotentialsLocked(potentials map[models.CurrencyType]int64) {
	bs.potentials = make(map[models.CurrencyType]int64, len(potentials))
	for cur, amt := range potentials {
		bs.potentials[cur] = amt
	}
	if amt, ok := potentials[bs.bet.Currency]; ok {
		bs.bet.PotentialPayout = amt
		if bs.lastConfirmed.Active() {
			bs.lastConfirmed.PotentialPayout = amt
		}
	}
}

// Clear empties the bet. Used on cancellation (user or admin) and on round
// reset. The wallet snapshot is left alone; cancellation payloads restore it
// separately via SetWallet.
func (bs *BetStore) Clear() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.bet = models.UserBet{Status: models.BetStatusNone}
	bs.lastConfirmed = models.UserBet{Status: models.BetStatusNone}
	bs.potentials = nil
}

// Resolve marks the bet RESOLVED with its win/loss outcome, kept for the
// post-resolution display window.
func (bs *BetStore) Resolve(won bool, payout int64) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.bet.Status != models.BetStatusConfirmed && bs.bet.Status != models.BetStatusResolved {
		return
	}
	bs.bet.Status = models.BetStatusResolved
	bs.bet.Won = won
	if won {
		bs.bet.PotentialPayout = payout
	}
}

// Rollback restores the last confirmed bet after a server rejection.
func (bs *BetStore) Rollback() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.bet = bs.lastConfirmed
}

// HydratePull installs a bet from the pull path. It never downgrades a state
// already produced by push events: hydration is skipped when a bet is already
// present.
func (bs *BetStore) HydratePull(bet models.UserBet) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.bet.Status != models.BetStatusNone {
		return
	}
	bs.bet = bet
	if bet.Status == models.BetStatusConfirmed {
		bs.lastConfirmed = bet
	}
}
