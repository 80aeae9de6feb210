package simulator

import (
	"reflect"
	"testing"

	"github.com/evdnx/backtester/config"
	"github.com/evdnx/backtester/event"
	"github.com/evdnx/backtester/signal"
	"github.com/evdnx/backtester/types"
)

func runS1(t *testing.T) Result {
	t.Helper()
	bars := risingBars(10, 100, nil)
	cache := signal.Cache{
		"entry_sig": boolCrossing(10, 1),
		"exit_sig":  boolCrossing(10, 5),
	}
	sim, err := NewSimulator(longOnlyParams(0), baseExec(), nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	res, err := sim.Run(bars, cache, nil, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

// Invariant 1: |entries| >= |exits| and the difference is 0 or 1; every
// trade pairs an entry with an exit.
func TestInvariantEntriesExitsBalance(t *testing.T) {
	res := runS1(t)
	diff := res.Stats.Entries - res.Stats.Exits
	if diff != 0 && diff != 1 {
		t.Fatalf("entries-exits diff out of {0,1}: entries=%d exits=%d", res.Stats.Entries, res.Stats.Exits)
	}
	if len(res.Trades) > res.Stats.Exits {
		t.Fatalf("more trades (%d) than exits (%d)", len(res.Trades), res.Stats.Exits)
	}
}

// Invariant 2: pnl_usd matches exit.to_amount - entry.from_amount, duration
// non-negative.
func TestInvariantTradePnLConsistency(t *testing.T) {
	res := runS1(t)
	for _, tr := range res.Trades {
		want := tr.Exit.ToAmount - tr.Entry.FromAmount
		if tr.PnLUSD != want {
			t.Errorf("pnl_usd mismatch: got %v want %v", tr.PnLUSD, want)
		}
		if tr.DurationBars > 1<<31 { // uint32 underflow guard
			t.Errorf("duration_bars looks underflowed: %d", tr.DurationBars)
		}
	}
}

// Invariant 3: peak_equity is monotonic non-decreasing; drawdown in [0,100].
func TestInvariantPeakEquityMonotonic(t *testing.T) {
	res := runS1(t)
	var peak float64 = -1
	for _, p := range res.EquityCurve {
		if p.DrawdownPct < 0 || p.DrawdownPct > 100 {
			t.Fatalf("drawdown_pct out of range: %v", p.DrawdownPct)
		}
		if p.DrawdownPct < 100 {
			// drawdown = (peak - equity) / peak, so the point implies its peak.
			implied := p.Equity / (1 - p.DrawdownPct/100)
			if implied < peak*(1-1e-9) {
				t.Fatalf("peak equity decreased: %v after %v", implied, peak)
			}
			if implied > peak {
				peak = implied
			}
		}
	}
}

// Invariant 4: dispatch is monotone in event timestamp (checked indirectly
// via state transitions, which are only appended in popped-event order).
func TestInvariantStateTransitionsMonotoneTimestamp(t *testing.T) {
	res := runS1(t)
	for i := 1; i < len(res.StateTransitions); i++ {
		if res.StateTransitions[i].Timestamp < res.StateTransitions[i-1].Timestamp {
			t.Fatalf("state transitions out of timestamp order at %d", i)
		}
	}
}

// Invariant 6: identical inputs yield byte-identical outputs.
func TestInvariantDeterministicRerun(t *testing.T) {
	bars := risingBars(10, 100, map[int][2]float64{3: {95, 103}})
	cfg := longOnlyParams(0)
	cfg.LongExit.StopLoss = &config.ValueConfig{Kind: config.Rel, Value: 0.02}
	cache := signal.Cache{
		"entry_sig": boolCrossing(10, 1),
		"exit_sig":  boolCrossing(10, 5),
	}

	run := func() Result {
		sim, err := NewSimulator(cfg, baseExec(), nil)
		if err != nil {
			t.Fatalf("NewSimulator: %v", err)
		}
		res, err := sim.Run(bars, cache, nil, nil, nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("reruns diverged:\na=%+v\nb=%+v", a, b)
	}
}

// Invariant 7: LONG-only config never emits a SHORT trade.
func TestInvariantLongOnlyNeverShorts(t *testing.T) {
	res := runS1(t)
	for _, tr := range res.Trades {
		if tr.Entry.TradeDirection == event.Short {
			t.Fatalf("LONG-only run emitted a SHORT trade: %+v", tr)
		}
	}
}

// Invariant 8: trades_limit caps the number of entries.
func TestInvariantTradesLimitHonored(t *testing.T) {
	bars := risingBars(10, 100, nil)
	entrySig := []bool{false, true, true, false, true, true, false, true, true, true}
	exitSig := []bool{false, false, true, false, false, true, false, false, false, false}
	cache := signal.Cache{"entry_sig": entrySig, "exit_sig": exitSig}
	cfg := longOnlyParams(0)
	exec := baseExec()
	exec.TradesLimit = 1

	sim, err := NewSimulator(cfg, exec, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	res, err := sim.Run(bars, cache, nil, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Entries > 1 {
		t.Fatalf("expected trades_limit=1 to cap entries, got %d", res.Stats.Entries)
	}
}

// Boundary: empty signal cache yields zero events, zero trades, equity
// unchanged.
func TestBoundaryEmptySignalCache(t *testing.T) {
	bars := risingBars(10, 100, nil)
	sim, err := NewSimulator(longOnlyParams(0), baseExec(), nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	res, err := sim.Run(bars, signal.Cache{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected zero trades, got %d", len(res.Trades))
	}
	if res.FinalEquity != baseExec().InitialCapital {
		t.Fatalf("expected unchanged equity, got %v", res.FinalEquity)
	}
	if res.FinalState != types.Cash {
		t.Fatalf("expected final state CASH, got %v", res.FinalState)
	}
}

// Boundary: all signals always-false never trades.
func TestBoundaryAlwaysFalseNeverTrades(t *testing.T) {
	bars := risingBars(10, 100, nil)
	cache := signal.Cache{
		"entry_sig": make([]bool, 10),
		"exit_sig":  make([]bool, 10),
	}
	sim, err := NewSimulator(longOnlyParams(0), baseExec(), nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	res, err := sim.Run(bars, cache, nil, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected zero trades, got %d", len(res.Trades))
	}
}

// Boundary: all signals always-true from bar 0 with no warmup produces
// exactly one immediate entry via the extractor's synthetic rising edge.
func TestBoundaryAlwaysTrueSyntheticImmediateEntry(t *testing.T) {
	bars := risingBars(10, 100, nil)
	entrySig := make([]bool, 10)
	for i := range entrySig {
		entrySig[i] = true
	}
	cache := signal.Cache{"entry_sig": entrySig, "exit_sig": make([]bool, 10)}
	sim, err := NewSimulator(longOnlyParams(0), baseExec(), nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	res, err := sim.Run(bars, cache, nil, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Entries != 1 {
		t.Fatalf("expected exactly 1 immediate entry, got %d", res.Stats.Entries)
	}
	if res.Trades != nil && len(res.Trades) != 0 {
		t.Fatalf("expected no exits (exit_sig never true), got %d trades", len(res.Trades))
	}
}


