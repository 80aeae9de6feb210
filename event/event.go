// Package event defines the tagged event model (C2) consumed by the
// priority queue and the simulator: a stable envelope (id, timestamp,
// bar index, dead flag) plus one payload per event kind.
package event

// Kind discriminates the seven event variants from spec.md §3.
type Kind int

const (
	KindSignalCrossing Kind = iota
	KindConditionMet
	KindConditionUnmet
	KindSLTrigger
	KindTPTrigger
	KindTrailingTrigger
	KindTimeoutExpired
)

func (k Kind) String() string {
	switch k {
	case KindSignalCrossing:
		return "SignalCrossing"
	case KindConditionMet:
		return "ConditionMet"
	case KindConditionUnmet:
		return "ConditionUnmet"
	case KindSLTrigger:
		return "SLTrigger"
	case KindTPTrigger:
		return "TPTrigger"
	case KindTrailingTrigger:
		return "TrailingTrigger"
	case KindTimeoutExpired:
		return "TimeoutExpired"
	default:
		return "Unknown"
	}
}

// ConditionType identifies which of the four strategy conditions an event
// concerns.
type ConditionType int

const (
	LongEntry ConditionType = iota
	LongExit
	ShortEntry
	ShortExit
)

func (c ConditionType) String() string {
	switch c {
	case LongEntry:
		return "LONG_ENTRY"
	case LongExit:
		return "LONG_EXIT"
	case ShortEntry:
		return "SHORT_ENTRY"
	case ShortExit:
		return "SHORT_EXIT"
	default:
		return "UNKNOWN"
	}
}

// Direction is the side of an open position.
type Direction int

const (
	Long Direction = iota
	Short
)

// SignalCrossingPayload is carried by KindSignalCrossing events.
type SignalCrossingPayload struct {
	IndicatorKey  string
	ConditionType ConditionType
	IsRequired    bool
	Prev          bool
	New           bool
}

// ConditionPayload is carried by KindConditionMet / KindConditionUnmet.
type ConditionPayload struct {
	ConditionType      ConditionType
	TriggeringKey      string
}

// PriceTriggerPayload is carried by KindSLTrigger, KindTPTrigger and
// KindTrailingTrigger.
type PriceTriggerPayload struct {
	TriggerPrice    float64
	EntryPrice      float64
	Direction       Direction
	TradeID         string
	Level           float64 // sl_level / tp_level / trailing_level
	PeakPrice       float64 // only meaningful for trailing
	SubBarIndex     int
	CheckpointIndex int
}

// TimeoutPayload is carried by KindTimeoutExpired.
type TimeoutPayload struct {
	TradeID         string
	TimeoutStartBar uint32
	CooldownBars    uint32
}

// Envelope carries the fields every event has regardless of kind.
type Envelope struct {
	ID        uint64
	Timestamp int64
	BarIndex  uint32
	Dead      bool
}

// Event is the single discriminated union over the seven kinds. Only the
// payload field matching Kind is populated; this avoids allocating a
// separate interface box per event while keeping C6's dispatch a plain
// type switch on Kind.
type Event struct {
	Envelope
	Kind Kind

	SignalCrossing *SignalCrossingPayload
	Condition      *ConditionPayload
	PriceTrigger   *PriceTriggerPayload
	Timeout        *TimeoutPayload
}

// Less implements the strict ordering from spec.md §4.3: timestamp, then
// bar index, then insertion order (id) — the latter guarantees a
// deterministic replay even when two events share a timestamp and bar
// index.
func Less(a, b Event) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.BarIndex != b.BarIndex {
		return a.BarIndex < b.BarIndex
	}
	return a.ID < b.ID
}

// IDAllocator hands out a process-local monotonically increasing id
// sequence. Determinism requires a single allocator per simulation run,
// consulted in a fixed traversal order (the extractor first, then the
// simulator as it schedules SL/TP/timeout events on entry). Reset exists
// purely for test isolation between independent runs sharing a process.
type IDAllocator struct {
	next uint64
}

// NewIDAllocator returns an allocator starting at id 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Next returns the next id and advances the counter.
func (a *IDAllocator) Next() uint64 {
	id := a.next
	a.next++
	return id
}

// Reset restarts the counter at 1.
func (a *IDAllocator) Reset() {
	a.next = 1
}


