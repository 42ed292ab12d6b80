package sim

import "math"

// CostConfig holds trading cost parameters. Fees follow the exchange
// quadratic schedule; slippage is a flat rate on traded notional.
type CostConfig struct {
	BetAmount    float64
	EnableFees   bool
	FeeRate      float64
	SlippageRate float64
}

// clamp01 bounds a price into [0,1] before any sizing or cost math.
func clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// legFee prices one leg's exchange fee: rate * p * (1-p) * dollar volume.
// The quadratic term vanishes at the price bounds, so certain contracts
// trade free.
func legFee(rate, price, dollarVolume float64) float64 {
	if price <= 0 || price >= 1 {
		return 0
	}
	return rate * price * (1 - price) * dollarVolume
}

// contractsLong sizes a long entry so the maximum loss equals the bet:
// bet/ask contracts each lose at most ask if the market goes to zero.
func contractsLong(bet, ask float64) (float64, bool) {
	if ask <= 0 {
		return 0, false
	}
	return bet / ask, true
}

// contractsShort sizes a short entry so the maximum loss equals the bet:
// bet/(1-bid) contracts each lose at most (1-bid) if the market goes to
// one.
func contractsShort(bet, bid float64) (float64, bool) {
	if bid >= 1 {
		return 0, false
	}
	return bet / (1 - bid), true
}
