package simulator

import (
	"github.com/evdnx/backtester/bar"
)

// flatBar builds a bar with the given open/high/low/close at index i, on a
// 60-second cadence.
func flatBar(i int, open, high, low, close float64) bar.Bar {
	return bar.Bar{Bucket: int64(i) * 60, Open: open, High: high, Low: low, Close: close}
}

// risingBars builds n bars whose close/open both equal base+i, with
// high/low equal to close unless overridden by the wicks map (bar index ->
// {low, high}).
func risingBars(n int, base float64, wicks map[int][2]float64) []bar.Bar {
	bars := make([]bar.Bar, n)
	for i := 0; i < n; i++ {
		price := base + float64(i)
		low, high := price, price
		if w, ok := wicks[i]; ok {
			low, high = w[0], w[1]
		}
		bars[i] = flatBar(i, price, high, low, price)
	}
	return bars
}

// flatBars builds n bars all at the same price, with wick overrides.
func flatBars(n int, price float64, wicks map[int][2]float64) []bar.Bar {
	bars := make([]bar.Bar, n)
	for i := 0; i < n; i++ {
		low, high := price, price
		if w, ok := wicks[i]; ok {
			low, high = w[0], w[1]
		}
		bars[i] = flatBar(i, price, high, low, price)
	}
	return bars
}

// boolCrossing builds a boolean array of length n that is false before
// trueFrom and true from trueFrom onward (a single rising edge).
func boolCrossing(n, trueFrom int) []bool {
	out := make([]bool, n)
	for i := trueFrom; i < n && i >= 0; i++ {
		out[i] = true
	}
	return out
}


