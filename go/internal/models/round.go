package models

// RoundStatus defines the status of a betting round.
type RoundStatus string

const (
	RoundStatusCreated   RoundStatus = "CREATED"
	RoundStatusOpen      RoundStatus = "OPEN"
	RoundStatusLocked    RoundStatus = "LOCKED"
	RoundStatusWinner    RoundStatus = "WINNER"
	RoundStatusCancelled RoundStatus = "CANCELLED"
)

// CanTransitionTo reports whether a round may move to the target status.
// Transitions are forward-only; CANCELLED is reachable from CREATED, OPEN or
// LOCKED and is terminal, as is WINNER.
func (s RoundStatus) CanTransitionTo(target RoundStatus) bool {
	switch s {
	case RoundStatusCreated:
		return target == RoundStatusOpen || target == RoundStatusCancelled
	case RoundStatusOpen:
		return target == RoundStatusLocked || target == RoundStatusCancelled
	case RoundStatusLocked:
		return target == RoundStatusWinner || target == RoundStatusCancelled
	default:
		return false
	}
}

// Terminal reports whether no further status change is possible.
func (s RoundStatus) Terminal() bool {
	return s == RoundStatusWinner || s == RoundStatusCancelled
}

// BettingOption is one selectable outcome within a round.
type BettingOption struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	RoundID string `json:"roundId"`
}

// PoolTotals tracks the aggregate stake behind each option, per currency.
type PoolTotals map[CurrencyType]map[string]int64

// Clone returns a deep copy so store snapshots never alias shared maps.
func (p PoolTotals) Clone() PoolTotals {
	if p == nil {
		return nil
	}
	out := make(PoolTotals, len(p))
	for cur, byOption := range p {
		m := make(map[string]int64, len(byOption))
		for id, total := range byOption {
			m[id] = total
		}
		out[cur] = m
	}
	return out
}

// BettingRound represents one betting opportunity tied to a live event.
// At most one round is OPEN or LOCKED per stream at any time.
type BettingRound struct {
	ID         string          `json:"id"`
	StreamID   string          `json:"streamId"`
	Name       string          `json:"name"`
	Status     RoundStatus     `json:"status"`
	Options    []BettingOption `json:"options"`
	PoolTotals PoolTotals      `json:"poolTotals"`
}

// Option returns the option with the given id, if present.
func (r *BettingRound) Option(optionID string) (BettingOption, bool) {
	for _, opt := range r.Options {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return BettingOption{}, false
}

// Settlement carries the winnerDeclared payload for display until the
// post-resolution reset window elapses.
type Settlement struct {
	WinnerName   string   `json:"winnerName"`
	Winners      []Winner `json:"winners"`
	WinnerAmount int64    `json:"winnerAmount"`
}

// Winner identifies one winning user in a settled round.
type Winner struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}
