// Package types holds the simulator's output data model: swap and trade
// records, equity-curve points, and run statistics (spec.md §3). The
// teacher's Order/Side pair served the same purpose for a live executor —
// here every fill is a SwapEvent the simulator emits directly, there being
// no broker round-trip to model.
package types

import "github.com/evdnx/backtester/event"

// Asset names the USD cash leg and the traded symbol leg of a swap.
const USD = "USD"

// SwapEvent is one side of a trade: either an entry (USD -> symbol) or an
// exit (symbol -> USD).
type SwapEvent struct {
	ID              uint64
	Timestamp       int64
	BarIndex        uint32
	FromAsset       string
	ToAsset         string
	FromAmount      float64
	ToAmount        float64
	Price           float64
	FeeUSD          float64
	SlippageUSD     float64
	IsEntry         bool
	TradeDirection  event.Direction
}

// TradeEvent pairs an entry swap with its later exit swap and derives P&L.
type TradeEvent struct {
	Entry           SwapEvent
	Exit            SwapEvent
	PnLUSD          float64
	PnLPct          float64
	DurationBars    uint32
	DurationSeconds int64
}

// SimState names the three machine states the simulator cycles through.
type SimState int

const (
	Cash SimState = iota
	Position
	Timeout
)

func (s SimState) String() string {
	switch s {
	case Cash:
		return "CASH"
	case Position:
		return "POSITION"
	case Timeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// EquityPoint records the account's equity at a realized exit or at the
// forced close of the run.
type EquityPoint struct {
	Timestamp   int64
	BarIndex    uint32
	Equity      float64
	DrawdownPct float64
	Position    SimState
}

// StateTransition records one state-machine move, for the observable
// "state_transitions" output in spec.md §4.6.
type StateTransition struct {
	Timestamp int64
	BarIndex  uint32
	From      SimState
	To        SimState
	Reason    string
}

// Stats carries the run's counters (spec.md §4.6: "stats counts events
// processed, dead skips, entries, exits, SL/TP/signal exits, and timeout
// completions").
type Stats struct {
	EventsProcessed    int
	DeadEventsSkipped  int
	Entries            int
	Exits              int
	StopLossExits      int
	TakeProfitExits    int
	TrailingStopExits  int
	SignalExits        int
	EndOfBacktestExits int
	TimeoutCompletions int
	UnpairedExits      int
}


