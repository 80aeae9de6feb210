// Package config holds the strategy configuration surface consumed by the
// simulator: position typing, entry/exit conditions, position sizing, and
// timeout policy (spec.md §3's AlgoParams).
package config

import (
	"errors"
	"fmt"
)

// ValueKind discriminates a ValueConfig's interpretation.
type ValueKind int

const (
	// Abs is an absolute price offset in USD, or a USD cap for position sizing.
	Abs ValueKind = iota
	// Rel is a fractional offset in [0, 1], or a fraction of equity for sizing.
	Rel
	// Dyn behaves like Rel but its effective value is multiplied, at
	// evaluation time, by a factor supplied by an external time-indexed
	// lookup (see trigger.FactorLookup).
	Dyn
)

func (k ValueKind) String() string {
	switch k {
	case Abs:
		return "ABS"
	case Rel:
		return "REL"
	case Dyn:
		return "DYN"
	default:
		return "UNKNOWN"
	}
}

// ValueConfig is a target-price or position-size specifier. ValueFactorKey
// names the external (timestamp -> float64) lookup consulted for Dyn
// kinds; it is ignored for Abs and Rel.
type ValueConfig struct {
	Kind           ValueKind
	Value          float64
	ValueFactorKey string
}

// Validate checks a ValueConfig is internally consistent.
func (v ValueConfig) Validate(name string) error {
	if v.Kind == Rel || v.Kind == Dyn {
		if v.Value < 0 || v.Value > 1 {
			return fmt.Errorf("%s: REL/DYN value (%f) must be in [0, 1]", name, v.Value)
		}
	}
	if v.Kind == Dyn && v.ValueFactorKey == "" {
		return fmt.Errorf("%s: DYN value requires a non-empty ValueFactorKey", name)
	}
	return nil
}

// IndicatorRef is an opaque cache key naming a pre-computed boolean signal
// array, plus whether the condition it belongs to treats it as required or
// optional.
type IndicatorRef struct {
	Key      string
	Required bool
}

// Condition is the common shape of an entry or exit condition: met iff
// every required indicator is true AND (the optional set is empty OR at
// least one optional indicator is true).
type Condition struct {
	Required []IndicatorRef
	Optional []IndicatorRef
}

func (c Condition) validate(name string) error {
	if len(c.Required) == 0 && len(c.Optional) == 0 {
		return fmt.Errorf("%s: condition must reference at least one indicator", name)
	}
	for _, r := range c.Required {
		if r.Key == "" {
			return fmt.Errorf("%s: required indicator has empty key", name)
		}
	}
	for _, o := range c.Optional {
		if o.Key == "" {
			return fmt.Errorf("%s: optional indicator has empty key", name)
		}
	}
	return nil
}

// EntryCondition is a Condition with no further fields; kept as a distinct
// type so call sites read as "entry condition", not a bare Condition.
type EntryCondition struct {
	Condition
}

// ExitCondition additionally carries the optional SL/TP target prices and
// whether the stop-loss trails.
type ExitCondition struct {
	Condition
	StopLoss   *ValueConfig
	TakeProfit *ValueConfig
	TrailingSL bool
}

func (e ExitCondition) validate(name string) error {
	if err := e.Condition.validate(name); err != nil {
		return err
	}
	if e.StopLoss != nil {
		if err := e.StopLoss.Validate(name + ".StopLoss"); err != nil {
			return err
		}
	}
	if e.TakeProfit != nil {
		if err := e.TakeProfit.Validate(name + ".TakeProfit"); err != nil {
			return err
		}
	}
	return nil
}

// PositionType restricts which directions a strategy is permitted to take.
type PositionType int

const (
	Long PositionType = iota
	Short
	Both
)

func (p PositionType) String() string {
	switch p {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	case Both:
		return "BOTH"
	default:
		return "UNKNOWN"
	}
}

// AllowsLong reports whether p permits long positions.
func (p PositionType) AllowsLong() bool { return p == Long || p == Both }

// AllowsShort reports whether p permits short positions.
func (p PositionType) AllowsShort() bool { return p == Short || p == Both }

// TimeoutMode selects the post-exit cooldown re-entry policy.
type TimeoutMode int

const (
	CooldownOnly TimeoutMode = iota
	Regular
	Strict
)

func (m TimeoutMode) String() string {
	switch m {
	case CooldownOnly:
		return "COOLDOWN_ONLY"
	case Regular:
		return "REGULAR"
	case Strict:
		return "STRICT"
	default:
		return "UNKNOWN"
	}
}

// TimeoutConfig configures the cooldown window entered after an exit.
type TimeoutConfig struct {
	Mode         TimeoutMode
	CooldownBars uint32
}

// AlgoParams is the full strategy configuration consumed by the simulator.
type AlgoParams struct {
	Type PositionType

	LongEntry  EntryCondition
	LongExit   ExitCondition
	ShortEntry EntryCondition
	ShortExit  ExitCondition

	PositionSize ValueConfig
	Timeout      TimeoutConfig

	StartingCapitalUSD float64
}

// Validate returns the first encountered configuration error, allowing the
// caller to surface a single clear problem before a run starts. Mirrors the
// teacher's first-error-wins Validate contract.
func (a AlgoParams) Validate() error {
	if a.StartingCapitalUSD <= 0 {
		return errors.New("StartingCapitalUSD must be positive")
	}
	if err := a.PositionSize.Validate("PositionSize"); err != nil {
		return err
	}
	if a.PositionSize.Kind == Abs && a.PositionSize.Value <= 0 {
		return errors.New("PositionSize: ABS value must be positive")
	}

	if a.Type.AllowsLong() {
		if err := a.LongEntry.validate("LongEntry"); err != nil {
			return err
		}
		if err := a.LongExit.validate("LongExit"); err != nil {
			return err
		}
	}
	if a.Type.AllowsShort() {
		if err := a.ShortEntry.validate("ShortEntry"); err != nil {
			return err
		}
		if err := a.ShortExit.validate("ShortExit"); err != nil {
			return err
		}
	}
	return nil
}


