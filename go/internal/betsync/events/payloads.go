package events

import (
	"github.com/fanpool/betsync/go/internal/models"
)

// PoolTotalsUpdatedPayload carries fresh per-currency, per-option pool totals.
// It never touches the user's own bet fields.
type PoolTotalsUpdatedPayload struct {
	TotalsByCurrency models.PoolTotals `json:"totalsByCurrency"`
}

// PotentialAmountUpdatePayload carries a server-computed potential winnings
// estimate for the user's current bet.
type PotentialAmountUpdatePayload struct {
	PotentialWinningsByCurrency map[models.CurrencyType]int64 `json:"potentialWinningsByCurrency"`
}

// RoundLockedPayload signals a round-level freeze on new or edited bets.
type RoundLockedPayload struct {
	LockedStatus bool `json:"lockedStatus"`
}

// BetConfirmedPayload is the payload for betConfirmed and betEdited.
type BetConfirmedPayload struct {
	Bet                         models.UserBet                `json:"bet"`
	PotentialWinningsByCurrency map[models.CurrencyType]int64 `json:"potentialWinningsByCurrency"`
	UpdatedWalletBalance        models.WalletSnapshot         `json:"updatedWalletBalance"`
	Message                     string                        `json:"message,omitempty"`
}

// BetCancelledPayload confirms a user-initiated cancellation.
type BetCancelledPayload struct {
	UpdatedWalletBalance models.WalletSnapshot `json:"updatedWalletBalance"`
	Message              string                `json:"message,omitempty"`
}

// BetCancelledByAdminPayload signals an admin-initiated cancellation.
// The wallet is refreshed out of band.
type BetCancelledByAdminPayload struct{}

// RoundOpenedPayload is the payload for roundCreated and roundOpened. It
// carries the full round snapshot so the handler stays a pure function of
// (state, payload) and needs no follow-up pull.
type RoundOpenedPayload struct {
	Round models.BettingRound `json:"round"`
}

// WinnerDeclaredPayload carries the settlement for a resolved round.
type WinnerDeclaredPayload struct {
	WinnerName      string          `json:"winnerName"`
	WinningOptionID string          `json:"winningOptionId"`
	Winners         []models.Winner `json:"winners"`
	WinnerAmount    int64           `json:"winnerAmount"`
}

// StreamEndedPayload is terminal for the stream's subscriptions.
type StreamEndedPayload struct{}

// BotMessagePayload is an out-of-band notification, also used by the server
// to reject a mutation it could not apply.
type BotMessagePayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
