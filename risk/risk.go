// Package risk sizes positions. The teacher's CalcQty derived a quantity
// from a fixed stop-loss distance; position sizing here instead follows
// spec.md §3's ValueConfig (ABS/REL/DYN) contract used for
// AlgoParams.PositionSize.
package risk

import "github.com/evdnx/backtester/config"

// PositionValue returns the USD notional to commit to a new position:
// ABS is capped at the available equity, REL is a fraction of equity, and
// DYN is a fraction of equity scaled by an externally supplied factor
// (spec.md §3's ValueConfig.DYN semantics).
func PositionValue(equity float64, cfg config.ValueConfig, factor float64) float64 {
	switch cfg.Kind {
	case config.Abs:
		if cfg.Value < equity {
			return cfg.Value
		}
		return equity
	case config.Dyn:
		return equity * cfg.Value * factor
	default: // Rel
		return equity * cfg.Value
	}
}

// AssetAmount converts a USD position value into a quantity of the traded
// asset, net of the fee and slippage already charged against that value
// (spec.md §4.6's entry-execution formula).
func AssetAmount(positionValue, price, feeUSD, slippageUSD float64) float64 {
	if price <= 0 {
		return 0
	}
	return (positionValue - feeUSD - slippageUSD) / price
}


