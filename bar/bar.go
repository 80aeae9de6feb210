// Package bar holds the OHLCV bar type and the sub-bar path reconstructor
// (C1): a deterministic 4-point intra-bar price path used by the SL/TP
// scanner to approximate within-bar fills without tick data.
package bar

import "math"

// Bar is an immutable OHLCV record. Bars are ordered strictly ascending by
// Bucket (the bar's start timestamp, in epoch seconds).
type Bar struct {
	Bucket int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DefaultSubBarDuration is the fallback spacing, in seconds, assumed for the
// last sub-bar in a series (or for the whole bar when no sub-bars exist).
// Exposed as a variable rather than a constant per spec.md §9's
// recommendation that implementers be able to configure it.
var DefaultSubBarDuration int64 = 60

// Checkpoint is a single (price, timestamp) sample produced while walking a
// bar's reconstructed path.
type Checkpoint struct {
	Price           float64
	Timestamp       int64
	SubBarIndex     int
	CheckpointIndex int // 0..3
}

// SimulatePath returns the 4-step deterministic intra-bar price path:
// open, the nearer of {high, low} (by absolute distance to open, ties favor
// high), the other extreme, then close. This is the most pessimistic
// standard convention for worst-case fill ordering within a single bar.
func SimulatePath(b Bar) [4]float64 {
	distHigh := math.Abs(b.High - b.Open)
	distLow := math.Abs(b.Low - b.Open)

	var first, second float64
	if distHigh <= distLow {
		first, second = b.High, b.Low
	} else {
		first, second = b.Low, b.High
	}
	return [4]float64{b.Open, first, second, b.Close}
}

// GenerateCheckpoints lifts a parent bar's sub-bar series into a flat,
// time-ordered sequence of checkpoints. Each sub-bar contributes 4
// checkpoints; timestamps are spaced linearly across the sub-bar's
// duration, estimated as the gap to the next sub-bar's Bucket, falling back
// to DefaultSubBarDuration for the last sub-bar. When subBars is empty, the
// parent bar's own OHLC is lifted directly, with checkpoints spaced across
// an assumed DefaultSubBarDuration-second window starting at parentTimestamp.
func GenerateCheckpoints(parent Bar, parentTimestamp int64, subBars []Bar) []Checkpoint {
	if len(subBars) == 0 {
		return checkpointsForBar(parent, parentTimestamp, DefaultSubBarDuration, 0)
	}

	out := make([]Checkpoint, 0, len(subBars)*4)
	for i, sb := range subBars {
		duration := DefaultSubBarDuration
		if i+1 < len(subBars) {
			if gap := subBars[i+1].Bucket - sb.Bucket; gap > 0 {
				duration = gap
			}
		}
		out = append(out, checkpointsForBar(sb, sb.Bucket, duration, i)...)
	}
	return out
}

// checkpointsForBar spaces 4 checkpoints linearly across [ts, ts+duration).
func checkpointsForBar(b Bar, ts, duration int64, subBarIndex int) []Checkpoint {
	path := SimulatePath(b)
	step := duration / 4
	out := make([]Checkpoint, 4)
	for i, price := range path {
		out[i] = Checkpoint{
			Price:           price,
			Timestamp:       ts + int64(i)*step,
			SubBarIndex:     subBarIndex,
			CheckpointIndex: i,
		}
	}
	return out
}


