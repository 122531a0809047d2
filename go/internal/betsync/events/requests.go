package events

import (
	"github.com/fanpool/betsync/go/internal/models"
)

// Outbound request payloads. Field names follow the wire contract exactly.

// PlaceBetRequest submits a new bet on an option.
type PlaceBetRequest struct {
	BettingVariableID string              `json:"bettingVariableId"`
	Amount            int64               `json:"amount"`
	CurrencyType      models.CurrencyType `json:"currencyType"`
}

// EditBetRequest replaces the option, amount or currency of an existing bet.
type EditBetRequest struct {
	BetID                string              `json:"betId"`
	NewBettingVariableID string              `json:"newBettingVariableId"`
	NewAmount            int64               `json:"newAmount"`
	NewCurrencyType      models.CurrencyType `json:"newCurrencyType"`
}

// CancelBetRequest withdraws an existing bet.
type CancelBetRequest struct {
	BetID        string              `json:"betId"`
	CurrencyType models.CurrencyType `json:"currencyType"`
}

// JoinStreamRequest joins the logical room for a stream.
type JoinStreamRequest struct {
	StreamID string `json:"streamId"`
}

// LeaveStreamRequest leaves the logical room for a stream.
type LeaveStreamRequest struct {
	StreamID string `json:"streamId"`
}
