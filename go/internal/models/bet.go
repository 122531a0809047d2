package models

// BetStatus defines the status of the user's bet within a round.
type BetStatus string

const (
	BetStatusNone      BetStatus = "NONE"
	BetStatusPending   BetStatus = "PENDING"
	BetStatusConfirmed BetStatus = "CONFIRMED"
	BetStatusCancelled BetStatus = "CANCELLED"
	BetStatusResolved  BetStatus = "RESOLVED"
)

// UserBet represents the user's bet in the active round.
// ID is empty until the server assigns one on PLACE confirmation.
// PotentialPayout is a display-only estimate, authoritative only after
// resolution.
type UserBet struct {
	ID              string       `json:"id,omitempty"`
	RoundID         string       `json:"roundId"`
	OptionID        string       `json:"optionId"`
	Amount          int64        `json:"amount"`
	Currency        CurrencyType `json:"currency"`
	Status          BetStatus    `json:"status"`
	PotentialPayout int64        `json:"potentialPayout"`
	Won             bool         `json:"won,omitempty"` // meaningful only when RESOLVED
}

// Active reports whether the bet currently holds a stake in the round.
func (b UserBet) Active() bool {
	return b.Status == BetStatusPending || b.Status == BetStatusConfirmed
}
