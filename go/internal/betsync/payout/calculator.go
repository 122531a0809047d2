// Package payout computes live potential-winnings estimates from pool sizes.
// Estimates are display-only and non-final; settlement is server authoritative.
package payout

import (
	"github.com/fanpool/betsync/go/internal/models"
)

// Estimate computes the live potential payout for a stake:
//
//	floor(stake * (opposingPool / ownPool) * (1 - feeRate))
//
// Amounts are integer-valued in the smallest currency unit. Results are
// floored, never rounded up, so the UI never over-promises. Returns 0 when the
// stake or the backing pool is non-positive.
func Estimate(stake, ownPool, opposingPool int64, feeRate float64) int64 {
	if stake <= 0 || ownPool <= 0 || opposingPool < 0 {
		return 0
	}
	if feeRate < 0 {
		feeRate = 0
	}
	if feeRate > 1 {
		feeRate = 1
	}

	gross := float64(stake) * (float64(opposingPool) / float64(ownPool))
	return int64(gross * (1 - feeRate))
}

// EstimateForBet recomputes the estimate for a bet from a round's cached pool
// totals. O(1) apart from summing the opposing options once per call.
func EstimateForBet(round *models.BettingRound, bet models.UserBet, feeRate float64) int64 {
	if round == nil || !bet.Active() {
		return 0
	}
	byOption := round.PoolTotals[bet.Currency]
	if byOption == nil {
		return 0
	}

	var own, opposing int64
	for optionID, total := range byOption {
		if optionID == bet.OptionID {
			own = total
		} else {
			opposing += total
		}
	}
	return Estimate(bet.Amount, own, opposing, feeRate)
}

// EstimateByCurrency computes the estimate the bet would carry in every
// currency, from the same cached pools. Used when the viewer flips currency
// preference so no round-trip is needed.
func EstimateByCurrency(round *models.BettingRound, bet models.UserBet, feeRate float64) map[models.CurrencyType]int64 {
	out := make(map[models.CurrencyType]int64, 2)
	for _, cur := range models.Currencies() {
		b := bet
		b.Currency = cur
		out[cur] = EstimateForBet(round, b, feeRate)
	}
	return out
}
