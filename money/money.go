// Package money provides decimal-exact rounding for position sizing and
// fee/slippage arithmetic, replacing the teacher's raw math.Floor rounding
// (gots/risk.CalcQty) with exact decimal rounding while keeping the same
// floor-to-step-then-round-to-precision algorithm.
package money

import "github.com/shopspring/decimal"

// RoundQty floors qty down to the nearest multiple of stepSize (the
// exchange's allowed increment), then rounds the result to precision
// decimal places. A non-positive stepSize disables step-rounding and only
// the precision rounding is applied. Matches gots/risk.CalcQty's
// floor-then-round contract, but without the float64 drift that
// math.Floor(qty*100)/100 accumulates for non-power-of-two step sizes.
func RoundQty(qty, stepSize float64, precision int32) float64 {
	d := decimal.NewFromFloat(qty)
	if stepSize > 0 {
		step := decimal.NewFromFloat(stepSize)
		steps := d.Div(step).Floor()
		d = steps.Mul(step)
	}
	result, _ := d.Round(precision).Float64()
	return result
}

// FeeAndSlippage returns the fee and slippage, in USD, owed on a USD
// notional at the given basis-point rates. 1 bps = 1/10,000.
func FeeAndSlippage(notional, feeBps, slippageBps float64) (fee, slippage float64) {
	n := decimal.NewFromFloat(notional)
	tenK := decimal.NewFromInt(10_000)
	fee, _ = n.Mul(decimal.NewFromFloat(feeBps)).Div(tenK).Float64()
	slippage, _ = n.Mul(decimal.NewFromFloat(slippageBps)).Div(tenK).Float64()
	return fee, slippage
}


