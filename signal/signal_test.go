package signal

import (
	"testing"

	"github.com/evdnx/backtester/event"
)

func timestamps(n int) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(i) * 60
	}
	return ts
}

func TestExtractEventsSyntheticRisingEdgeAtWarmup(t *testing.T) {
	cache := Cache{"ema_cross": {false, false, true, true, false}}
	info := IndicatorInfoMap{{ConditionType: event.LongEntry, Key: "ema_cross", Required: true}}
	ids := event.NewIDAllocator()

	events, stats := ExtractEvents(cache, info, timestamps(5), 2, ids)

	if stats.SignalCrossings != 2 {
		t.Fatalf("expected 2 crossings (synthetic rise at 2, fall at 4), got %d", stats.SignalCrossings)
	}
	first := events[0]
	if first.Kind != event.KindSignalCrossing || !first.SignalCrossing.New || first.SignalCrossing.Prev {
		t.Fatalf("expected synthetic rising edge first, got %+v", first.SignalCrossing)
	}
	if first.BarIndex != 2 {
		t.Fatalf("expected synthetic edge at bar 2, got %d", first.BarIndex)
	}
}

func TestExtractEventsFoldsIntoConditionMetUnmet(t *testing.T) {
	cache := Cache{"rsi_ok": {true, true, false, true}}
	info := IndicatorInfoMap{{ConditionType: event.LongEntry, Key: "rsi_ok", Required: true}}
	ids := event.NewIDAllocator()

	events, stats := ExtractEvents(cache, info, timestamps(4), 0, ids)

	var kinds []event.Kind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	if stats.ConditionsMet != 2 || stats.ConditionsUnmet != 1 {
		t.Fatalf("expected 2 met/1 unmet, got met=%d unmet=%d (%v)", stats.ConditionsMet, stats.ConditionsUnmet, kinds)
	}
}

func TestExtractEventsRequiresAllRequiredKeys(t *testing.T) {
	cache := Cache{
		"a": {true, true, true},
		"b": {false, true, true},
	}
	info := IndicatorInfoMap{
		{ConditionType: event.LongEntry, Key: "a", Required: true},
		{ConditionType: event.LongEntry, Key: "b", Required: true},
	}
	ids := event.NewIDAllocator()

	events, stats := ExtractEvents(cache, info, timestamps(3), 0, ids)
	if stats.ConditionsMet != 1 {
		t.Fatalf("expected condition met only once both keys true, got %d", stats.ConditionsMet)
	}
	var metIdx = -1
	for i, e := range events {
		if e.Kind == event.KindConditionMet {
			metIdx = i
			break
		}
	}
	if metIdx == -1 || events[metIdx].BarIndex != 1 {
		t.Fatalf("expected met event at bar 1, got idx %d", metIdx)
	}
}

func TestExtractEventsOptionalAnyOf(t *testing.T) {
	cache := Cache{
		"req": {true, true, true},
		"opt1": {false, false, true},
		"opt2": {false, true, false},
	}
	info := IndicatorInfoMap{
		{ConditionType: event.LongExit, Key: "req", Required: true},
		{ConditionType: event.LongExit, Key: "opt1", Required: false},
		{ConditionType: event.LongExit, Key: "opt2", Required: false},
	}
	ids := event.NewIDAllocator()

	events, stats := ExtractEvents(cache, info, timestamps(3), 0, ids)
	if stats.ConditionsMet != 1 {
		t.Fatalf("expected exactly 1 met transition (stays met across opt1/opt2 handoff), got %d", stats.ConditionsMet)
	}
	_ = events
}

func TestExtractEventsUnknownKeySkipped(t *testing.T) {
	cache := Cache{"known": {true, true}}
	info := IndicatorInfoMap{
		{ConditionType: event.LongEntry, Key: "known", Required: true},
		{ConditionType: event.LongEntry, Key: "missing", Required: true},
	}
	ids := event.NewIDAllocator()

	events, stats := ExtractEvents(cache, info, timestamps(2), 0, ids)
	if stats.IndicatorsProcessed != 1 {
		t.Fatalf("expected only 1 indicator processed, got %d", stats.IndicatorsProcessed)
	}
	// "missing" required but absent from cache means its usage never updates
	// state, so the condition never becomes met.
	for _, e := range events {
		if e.Kind == event.KindConditionMet {
			t.Fatalf("condition should never be met with a missing required key")
		}
	}
}

func TestExtractEventsSortedByTimestampThenBarThenID(t *testing.T) {
	cache := Cache{
		"x": {true, false, true},
		"y": {false, true, false},
	}
	info := IndicatorInfoMap{
		{ConditionType: event.LongEntry, Key: "x", Required: true},
		{ConditionType: event.ShortEntry, Key: "y", Required: true},
	}
	ids := event.NewIDAllocator()

	events, _ := ExtractEvents(cache, info, timestamps(3), 0, ids)
	for i := 1; i < len(events); i++ {
		if event.Less(events[i], events[i-1]) {
			t.Fatalf("events not sorted at index %d", i)
		}
	}
}


