package models

// CurrencyType defines one of the two parallel wagering currencies.
type CurrencyType string

const (
	CurrencyGold  CurrencyType = "GOLD"
	CurrencySweep CurrencyType = "SWEEP"
)

// Currencies lists every supported currency, in display order.
func Currencies() []CurrencyType {
	return []CurrencyType{CurrencyGold, CurrencySweep}
}

// Valid reports whether the currency is one of the supported pair.
func (c CurrencyType) Valid() bool {
	return c == CurrencyGold || c == CurrencySweep
}

// WalletSnapshot holds the per-currency available balance in the smallest
// currency unit. It is refreshed opportunistically after state-changing
// events, never transactionally tied to bet mutations.
type WalletSnapshot map[CurrencyType]int64

// Clone returns a copy so store reads never alias the live map.
func (w WalletSnapshot) Clone() WalletSnapshot {
	if w == nil {
		return nil
	}
	out := make(WalletSnapshot, len(w))
	for cur, bal := range w {
		out[cur] = bal
	}
	return out
}
