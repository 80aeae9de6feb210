// Package trigger implements the forward SL/TP/trailing-stop scanner (C5):
// given a freshly opened position, it walks checkpoints bar-by-bar until it
// finds the first price that would force an exit, and returns the
// corresponding pre-scheduled event for the heap.
package trigger

import (
	"github.com/evdnx/backtester/bar"
	"github.com/evdnx/backtester/config"
	"github.com/evdnx/backtester/event"
)

// FactorLookup resolves a DYN ValueConfig's scaling factor at a given
// timestamp. A false second return means the scanner retains whatever level
// it last computed (spec.md §4.5's DYN fallback).
type FactorLookup interface {
	Factor(timestamp int64) (float64, bool)
}

// ScanParams bundles a new position's scan inputs.
type ScanParams struct {
	EntryBar      int
	EntryPrice    float64
	Direction     event.Direction
	TradeID       string
	StopLoss      *config.ValueConfig
	TakeProfit    *config.ValueConfig
	TrailingSL    bool
	Bars          []bar.Bar
	SubBars       map[int][]bar.Bar // parent bar index -> its sub-bars, if any
	Timestamps    []int64
	SLFactors     FactorLookup // only consulted when StopLoss.Kind == config.Dyn
	TPFactors     FactorLookup // only consulted when TakeProfit.Kind == config.Dyn
	MaxBarsToScan int         // 0 means scan to the end of Bars
	IDs           *event.IDAllocator
}

// ScanResult is the scanner's single-hit output: at most one event, and a
// flag so callers can distinguish "no configured stops" from "no hit found".
type ScanResult struct {
	Event      *event.Event
	HasTrigger bool
}

// Scan performs the forward checkpoint walk described in spec.md §4.5. It
// returns on the first hit: within a checkpoint, SL (or trailing, if
// enabled) is tested before TP; across checkpoints the earliest hit wins.
// This is the conservative "one hit per scan" policy the spec fixes for the
// otherwise-ambiguous case of a TP that would also fire later.
func Scan(p ScanParams) ScanResult {
	slSet := p.StopLoss != nil
	tpSet := p.TakeProfit != nil
	if !slSet && !tpSet {
		return ScanResult{}
	}

	var slLevel, tpLevel float64
	if slSet {
		slLevel = computeLevel(*p.StopLoss, p.EntryPrice, p.Direction, false, 1)
	}
	if tpSet {
		tpLevel = computeLevel(*p.TakeProfit, p.EntryPrice, p.Direction, true, 1)
	}

	trailingActive := p.TrailingSL && slSet
	trailingLevel := slLevel
	extreme := p.EntryPrice

	endBar := len(p.Bars)
	if p.MaxBarsToScan > 0 {
		if limit := p.EntryBar + 1 + p.MaxBarsToScan; limit < endBar {
			endBar = limit
		}
	}

	for bi := p.EntryBar + 1; bi < endBar; bi++ {
		for _, cp := range checkpointsFor(p, bi) {
			if slSet && p.StopLoss.Kind == config.Dyn && p.SLFactors != nil {
				if f, ok := p.SLFactors.Factor(cp.Timestamp); ok {
					slLevel = computeLevel(*p.StopLoss, p.EntryPrice, p.Direction, false, f)
				}
			}
			if tpSet && p.TakeProfit.Kind == config.Dyn && p.TPFactors != nil {
				if f, ok := p.TPFactors.Factor(cp.Timestamp); ok {
					tpLevel = computeLevel(*p.TakeProfit, p.EntryPrice, p.Direction, true, f)
				}
			}

			if trailingActive {
				favorable := (p.Direction == event.Long && cp.Price > extreme) ||
					(p.Direction == event.Short && cp.Price < extreme)
				if favorable {
					extreme = cp.Price
					trailingLevel = computeLevel(*p.StopLoss, extreme, p.Direction, false, 1)
				}
				if hitSL(p.Direction, cp.Price, trailingLevel) {
					return result(p, event.KindTrailingTrigger, cp, uint32(bi), trailingLevel, extreme)
				}
			} else if slSet && hitSL(p.Direction, cp.Price, slLevel) {
				return result(p, event.KindSLTrigger, cp, uint32(bi), slLevel, 0)
			}

			if tpSet && hitTP(p.Direction, cp.Price, tpLevel) {
				return result(p, event.KindTPTrigger, cp, uint32(bi), tpLevel, 0)
			}
		}
	}
	return ScanResult{}
}

func checkpointsFor(p ScanParams, bi int) []bar.Checkpoint {
	return bar.GenerateCheckpoints(p.Bars[bi], p.Timestamps[bi], p.SubBars[bi])
}

func result(p ScanParams, kind event.Kind, cp bar.Checkpoint, barIndex uint32, level, peak float64) ScanResult {
	e := event.Event{
		Envelope: event.Envelope{
			ID:        p.IDs.Next(),
			Timestamp: cp.Timestamp,
			BarIndex:  barIndex,
		},
		Kind: kind,
		PriceTrigger: &event.PriceTriggerPayload{
			TriggerPrice:    cp.Price,
			EntryPrice:      p.EntryPrice,
			Direction:       p.Direction,
			TradeID:         p.TradeID,
			Level:           level,
			PeakPrice:       peak,
			SubBarIndex:     cp.SubBarIndex,
			CheckpointIndex: cp.CheckpointIndex,
		},
	}
	return ScanResult{Event: &e, HasTrigger: true}
}

// computeLevel implements spec.md §4.5's level formulas. isTP mirrors the SL
// formula onto the favorable side; f is 1 for ABS/REL and the externally
// supplied factor for DYN.
func computeLevel(cfg config.ValueConfig, entry float64, dir event.Direction, isTP bool, f float64) float64 {
	value := cfg.Value
	long := dir == event.Long

	if cfg.Kind == config.Abs {
		delta := value * f
		switch {
		case isTP && long:
			return entry + delta
		case isTP && !long:
			return entry - delta
		case !isTP && long:
			return entry - delta
		default: // SL, short
			return entry + delta
		}
	}

	// REL and DYN share the same proportional formula; DYN only varies f.
	scaled := value * f
	switch {
	case isTP && long:
		return entry * (1 + scaled)
	case isTP && !long:
		return entry * (1 - scaled)
	case !isTP && long:
		return entry * (1 - scaled)
	default: // SL, short
		return entry * (1 + scaled)
	}
}

func hitSL(dir event.Direction, price, level float64) bool {
	if dir == event.Long {
		return price <= level
	}
	return price >= level
}

func hitTP(dir event.Direction, price, level float64) bool {
	if dir == event.Long {
		return price >= level
	}
	return price <= level
}


