// Package store holds the in-memory, single-writer snapshots of the active
// round and the user's bet for one stream. Writers are exclusively the event
// router (push) and the pull-hydration path; push always wins over pull,
// enforced with a per-store sequence number.
package store

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fanpool/betsync/go/internal/models"
)

// RoundSnapshot is a read-only copy of the round state plus the sequence
// number it was taken at.
type RoundSnapshot struct {
	Round      *models.BettingRound
	Locked     bool
	Settlement *models.Settlement
	Seq        uint64
}

// RoundStore keeps the active round for one stream. Every push write bumps
// Seq; a pull response that raced with a push is discarded for the fields it
// would otherwise overwrite.
type RoundStore struct {
	mu         sync.RWMutex
	streamID   string
	round      *models.BettingRound
	locked     bool
	settlement *models.Settlement
	seq        uint64
}

// NewRoundStore creates an empty round store for a stream.
func NewRoundStore(streamID string) *RoundStore {
	return &RoundStore{streamID: streamID}
}

// Snapshot returns a copy of the current state and its sequence number.
func (rs *RoundStore) Snapshot() RoundSnapshot {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return RoundSnapshot{
		Round:      cloneRound(rs.round),
		Locked:     rs.locked,
		Settlement: rs.settlement,
		Seq:        rs.seq,
	}
}

// Seq returns the current push sequence number. Captured before a pull is
// issued so the response can be checked for staleness on arrival.
func (rs *RoundStore) Seq() uint64 {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.seq
}

// Round returns a copy of the active round, or nil when none is installed.
func (rs *RoundStore) Round() *models.BettingRound {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return cloneRound(rs.round)
}

// Locked reports the round-level lock flag.
func (rs *RoundStore) Locked() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.locked
}

// InstallRound replaces the round snapshot from a roundCreated/roundOpened
// push event and clears the lock flag and any stale settlement.
func (rs *RoundStore) InstallRound(round models.BettingRound) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r := round
	r.PoolTotals = round.PoolTotals.Clone()
	rs.round = &r
	rs.locked = false
	rs.settlement = nil
	rs.seq++
}

// MergeTotals overwrites the cached pool totals from a poolTotalsUpdated push
// event. Totals always reflect the most recently received push regardless of
// any concurrent pull.
func (rs *RoundStore) MergeTotals(totals models.PoolTotals) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.round == nil {
		return
	}
	if rs.round.PoolTotals == nil {
		rs.round.PoolTotals = models.PoolTotals{}
	}
	for cur, byOption := range totals {
		merged := make(map[string]int64, len(byOption))
		for id, total := range byOption {
			merged[id] = total
		}
		rs.round.PoolTotals[cur] = merged
	}
	rs.seq++
}

// SetLocked sets the round-level lock flag from a push event.
func (rs *RoundStore) SetLocked(locked bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.round == nil {
		return
	}
	rs.locked = locked
	if locked && rs.round.Status.CanTransitionTo(models.RoundStatusLocked) {
		rs.round.Status = models.RoundStatusLocked
	}
	rs.seq++
}

// SetWinner transitions the round to WINNER and stores the settlement payload
// for the display window. Idempotent under duplicate delivery.
func (rs *RoundStore) SetWinner(settlement models.Settlement) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.round == nil {
		return
	}
	if rs.round.Status != models.RoundStatusWinner {
		rs.round.Status = models.RoundStatusWinner
	}
	rs.settlement = &settlement
	rs.seq++
}

// Reset clears the store to a clean slate, e.g. after the post-resolution
// display window or on auth change.
func (rs *RoundStore) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.round = nil
	rs.locked = false
	rs.settlement = nil
	rs.seq++
}

// ReconcilePull applies a pull-hydration snapshot. seqAtRequest is the value
// of Seq when the pull was issued; if a push arrived in between, the pull is
// stale and is discarded for every push-owned field.
func (rs *RoundStore) ReconcilePull(round *models.BettingRound, locked bool, seqAtRequest uint64) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.seq != seqAtRequest {
		log.Debug().
			Str("stream_id", rs.streamID).
			Uint64("store_seq", rs.seq).
			Uint64("pull_seq", seqAtRequest).
			Msg("discarding stale pull snapshot, push events arrived first")
		return false
	}
	if round == nil {
		rs.round = nil
		rs.locked = false
		rs.settlement = nil
		return true
	}
	r := *round
	r.PoolTotals = round.PoolTotals.Clone()
	rs.round = &r
	rs.locked = locked
	return true
}

func cloneRound(r *models.BettingRound) *models.BettingRound {
	if r == nil {
		return nil
	}
	out := *r
	out.PoolTotals = r.PoolTotals.Clone()
	out.Options = append([]models.BettingOption(nil), r.Options...)
	return &out
}
