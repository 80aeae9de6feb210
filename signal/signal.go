// Package signal implements the event extractor (C4): it scans
// pre-computed boolean indicator arrays for rising/falling edges, and folds
// those crossings into per-condition met/unmet events, producing the
// initial event batch the simulator bulk-loads into its queue.
package signal

import (
	"sort"

	"github.com/evdnx/backtester/event"
)

// Cache maps an indicator cache key to its boolean signal array, aligned
// index-for-index with the simulation's bar series.
type Cache map[string][]bool

// IndicatorUsage identifies one (condition, indicator) pairing.
type IndicatorUsage struct {
	ConditionType event.ConditionType
	Key           string
	Required      bool
}

// IndicatorInfoMap is the full set of indicator usages declared by the
// strategy config (spec.md §6, input 3).
type IndicatorInfoMap []IndicatorUsage

// Stats summarizes one extraction pass.
type Stats struct {
	IndicatorsProcessed int
	BarsProcessed       int
	SignalCrossings     int
	ConditionsMet       int
	ConditionsUnmet     int
	// RisingEdges/FallingEdges count met/unmet transitions per condition.
	RisingEdges  map[event.ConditionType]int
	FallingEdges map[event.ConditionType]int
}

func newStats() Stats {
	return Stats{
		RisingEdges:  make(map[event.ConditionType]int),
		FallingEdges: make(map[event.ConditionType]int),
	}
}

// tracker accumulates per-condition state while folding crossings into
// met/unmet events.
type tracker struct {
	required []string
	optional []string
	state    map[string]bool
	prevMet  bool
}

func newTracker(required, optional []string) *tracker {
	return &tracker{
		required: required,
		optional: optional,
		state:    make(map[string]bool),
	}
}

// met evaluates spec.md §3's condition invariant: every required indicator
// true AND (optional set empty OR at least one optional true).
func (t *tracker) met() bool {
	for _, k := range t.required {
		if !t.state[k] {
			return false
		}
	}
	if len(t.optional) == 0 {
		return true
	}
	for _, k := range t.optional {
		if t.state[k] {
			return true
		}
	}
	return false
}

// ExtractEvents scans cache per IndicatorInfoMap's usages and emits the
// full up-front event batch (signal crossings plus condition met/unmet
// events), sorted by (timestamp, bar_index, insertion order). ids allocates
// every event's id, in a fixed traversal order: sorted-by-key crossing
// scan first, then a chronological condition-tracking pass.
func ExtractEvents(cache Cache, info IndicatorInfoMap, timestamps []int64, warmupBars int, ids *event.IDAllocator) ([]event.Event, Stats) {
	stats := newStats()
	stats.BarsProcessed = len(timestamps)

	usagesByKey := make(map[string][]IndicatorUsage)
	keysSeen := make(map[string]bool)
	for _, u := range info {
		usagesByKey[u.Key] = append(usagesByKey[u.Key], u)
	}

	keys := make([]string, 0, len(usagesByKey))
	for k := range usagesByKey {
		if _, ok := cache[k]; !ok {
			continue // declared key absent from the signal cache: silently skipped
		}
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic iteration order, chosen once

	start := warmupBars
	if start < 0 {
		start = 0
	}

	var crossingEvents []event.Event
	for _, key := range keys {
		if !keysSeen[key] {
			keysSeen[key] = true
			stats.IndicatorsProcessed++
		}
		arr := cache[key]
		if start >= len(timestamps) {
			continue
		}

		prev := false
		first := true
		for i := start; i < len(timestamps); i++ {
			v := valueAt(arr, i)
			var crossed bool
			var prevVal bool
			if first {
				first = false
				prev = v
				if v {
					// Synthetic rising edge: model immediate-entry semantics.
					crossed = true
					prevVal = false
				}
			} else if v != prev {
				crossed = true
				prevVal = prev
				prev = v
			}
			if !crossed {
				continue
			}
			for _, u := range usagesByKey[key] {
				// Only usages whose condition actually references this key
				// at the declared required/optional slot; IndicatorInfoMap
				// already carries that split per usage.
				if u.Key != key {
					continue
				}
				e := event.Event{
					Envelope: event.Envelope{
						ID:        ids.Next(),
						Timestamp: timestamps[i],
						BarIndex:  uint32(i),
					},
					Kind: event.KindSignalCrossing,
					SignalCrossing: &event.SignalCrossingPayload{
						IndicatorKey:  key,
						ConditionType: u.ConditionType,
						IsRequired:    u.Required,
						Prev:          prevVal,
						New:           v,
					},
				}
				crossingEvents = append(crossingEvents, e)
				stats.SignalCrossings++
			}
		}
	}

	sort.SliceStable(crossingEvents, func(i, j int) bool {
		return event.Less(crossingEvents[i], crossingEvents[j])
	})

	trackers := buildTrackers(info)

	var conditionEvents []event.Event
	for _, ce := range crossingEvents {
		p := ce.SignalCrossing
		tr := trackers[p.ConditionType]
		if tr == nil {
			continue
		}
		tr.state[p.IndicatorKey] = p.New
		nowMet := tr.met()
		if nowMet == tr.prevMet {
			continue
		}
		tr.prevMet = nowMet

		kind := event.KindConditionUnmet
		if nowMet {
			kind = event.KindConditionMet
			stats.ConditionsMet++
			stats.RisingEdges[p.ConditionType]++
		} else {
			stats.ConditionsUnmet++
			stats.FallingEdges[p.ConditionType]++
		}
		conditionEvents = append(conditionEvents, event.Event{
			Envelope: event.Envelope{
				ID:        ids.Next(),
				Timestamp: ce.Timestamp,
				BarIndex:  ce.BarIndex,
			},
			Kind: kind,
			Condition: &event.ConditionPayload{
				ConditionType: p.ConditionType,
				TriggeringKey: p.IndicatorKey,
			},
		})
	}

	all := append(crossingEvents, conditionEvents...)
	sort.SliceStable(all, func(i, j int) bool {
		return event.Less(all[i], all[j])
	})
	return all, stats
}

func buildTrackers(info IndicatorInfoMap) map[event.ConditionType]*tracker {
	required := make(map[event.ConditionType][]string)
	optional := make(map[event.ConditionType][]string)
	for _, u := range info {
		if u.Required {
			required[u.ConditionType] = append(required[u.ConditionType], u.Key)
		} else {
			optional[u.ConditionType] = append(optional[u.ConditionType], u.Key)
		}
	}
	out := make(map[event.ConditionType]*tracker)
	for _, ct := range []event.ConditionType{event.LongEntry, event.LongExit, event.ShortEntry, event.ShortExit} {
		if len(required[ct]) == 0 && len(optional[ct]) == 0 {
			continue
		}
		sort.Strings(required[ct])
		sort.Strings(optional[ct])
		out[ct] = newTracker(required[ct], optional[ct])
	}
	return out
}

func valueAt(arr []bool, i int) bool {
	if i < 0 || i >= len(arr) {
		return false
	}
	return arr[i]
}


