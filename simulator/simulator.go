// Package simulator implements the unified state machine (C6): it drains
// the event queue seeded by the signal extractor, dispatches CASH/POSITION/
// TIMEOUT transitions, executes entries and exits, pairs trades, and
// accumulates the equity curve and run statistics.
package simulator

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/evdnx/backtester/bar"
	"github.com/evdnx/backtester/config"
	"github.com/evdnx/backtester/event"
	"github.com/evdnx/backtester/logger"
	"github.com/evdnx/backtester/metrics"
	"github.com/evdnx/backtester/money"
	"github.com/evdnx/backtester/queue"
	"github.com/evdnx/backtester/risk"
	"github.com/evdnx/backtester/signal"
	"github.com/evdnx/backtester/trigger"
	"github.com/evdnx/backtester/types"
)

// Exit reasons recorded on swaps, trades, and state transitions.
const (
	reasonStopLoss      = "STOP_LOSS"
	reasonTakeProfit    = "TAKE_PROFIT"
	reasonTrailingStop  = "TRAILING_STOP"
	reasonExitSignal    = "EXIT_SIGNAL"
	reasonEndOfBacktest = "END_OF_BACKTEST"
	reasonEntry         = "ENTRY"
	reasonCooldownOver  = "COOLDOWN_EXPIRED"
)

// ExecutionParams carries the run's account and market mechanics
// (spec.md §6, input 6): initial capital, symbol, fee/slippage rates, the
// force-close policy, bar cadence, and an optional trade cap.
type ExecutionParams struct {
	InitialCapital       float64
	Symbol               string
	FeeBps               float64
	SlippageBps          float64
	ClosePositionOnExit  bool
	BarDurationSeconds   int64
	TradesLimit          int // 0 means unlimited
}

// Validate checks ExecutionParams is internally consistent.
func (e ExecutionParams) Validate() error {
	if e.InitialCapital <= 0 {
		return fmt.Errorf("InitialCapital must be positive")
	}
	if e.Symbol == "" {
		return fmt.Errorf("Symbol must be set")
	}
	if e.BarDurationSeconds <= 0 {
		return fmt.Errorf("BarDurationSeconds must be positive")
	}
	if e.TradesLimit < 0 {
		return fmt.Errorf("TradesLimit must not be negative")
	}
	return nil
}

// PositionInfo is the snapshot's per-position bookkeeping.
type PositionInfo struct {
	Direction     event.Direction
	EntryPrice    float64
	TradeID       string
	PositionSize  float64
	EntryValue    float64
	EntryBarIndex uint32

	PendingSLID  uint64
	HasPendingSL bool
	PendingTPID  uint64
	HasPendingTP bool
}

// TimeoutInfo is the snapshot's per-cooldown bookkeeping.
type TimeoutInfo struct {
	Direction        event.Direction
	CooldownEndBar   uint32
	CooldownComplete bool
}

// Snapshot is the simulator's running state, updated on every popped event
// (spec.md §4.6).
type Snapshot struct {
	State            types.SimState
	CurrentPrice     float64
	CurrentTimestamp int64
	CurrentBarIndex  uint32
	Equity           float64
	PeakEquity       float64
	Position         *PositionInfo
	Timeout          *TimeoutInfo
	ConditionMet     map[event.ConditionType]bool
}

// Result is the simulator's complete observable output (spec.md §4.6).
type Result struct {
	SwapEvents       []types.SwapEvent
	Trades           []types.TradeEvent
	EquityCurve      []types.EquityPoint
	StateTransitions []types.StateTransition
	FinalState       types.SimState
	FinalEquity      float64
	Stats            types.Stats
}

// Simulator runs one strategy configuration against one bar series. It
// holds no per-run mutable state of its own, so a single Simulator value
// may run multiple times.
type Simulator struct {
	cfg  config.AlgoParams
	exec ExecutionParams
	log  logger.Logger
}

// NewSimulator validates cfg and exec and returns a ready-to-run Simulator.
func NewSimulator(cfg config.AlgoParams, exec ExecutionParams, log logger.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid algo params: %w", err)
	}
	if err := exec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid execution params: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Simulator{cfg: cfg, exec: exec, log: log}, nil
}

// Run drains the full event-driven simulation over bars. cache holds the
// pre-computed indicator signals; the indicator usages C4 needs are derived
// from the strategy config. subBars, slFactors and tpFactors are optional
// (nil is a valid zero value for all three).
func (s *Simulator) Run(bars []bar.Bar, cache signal.Cache, subBars map[int][]bar.Bar, slFactors, tpFactors trigger.FactorLookup) (Result, error) {
	if err := validateBars(bars); err != nil {
		return Result{}, err
	}

	timestamps := make([]int64, len(bars))
	for i, b := range bars {
		timestamps[i] = b.Bucket
	}

	ids := event.NewIDAllocator()
	info := buildIndicatorInfoMap(s.cfg)
	events, _ := signal.ExtractEvents(cache, info, timestamps, 0, ids)

	q := queue.New()
	q.PushAll(events)

	r := &run{
		sim:        s,
		bars:       bars,
		timestamps: timestamps,
		subBars:    subBars,
		slFactors:  slFactors,
		tpFactors:  tpFactors,
		ids:        ids,
		queue:      q,
		snapshot: Snapshot{
			State:        types.Cash,
			Equity:       s.exec.InitialCapital,
			PeakEquity:   s.exec.InitialCapital,
			ConditionMet: make(map[event.ConditionType]bool),
		},
	}
	r.result.FinalEquity = s.exec.InitialCapital
	return r.execute(), nil
}

func validateBars(bars []bar.Bar) error {
	for i, b := range bars {
		if isBadOHLC(b) {
			return fmt.Errorf("bar %d: OHLC contains NaN or Inf", i)
		}
		if i > 0 && b.Bucket <= bars[i-1].Bucket {
			return fmt.Errorf("bar %d: bucket %d is not strictly ascending after %d", i, b.Bucket, bars[i-1].Bucket)
		}
	}
	return nil
}

func isBadOHLC(b bar.Bar) bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// buildIndicatorInfoMap flattens AlgoParams' four conditions into the
// generic usage list the extractor consumes, skipping any side the
// position type forbids.
func buildIndicatorInfoMap(cfg config.AlgoParams) signal.IndicatorInfoMap {
	var info signal.IndicatorInfoMap
	add := func(ct event.ConditionType, cond config.Condition) {
		for _, ref := range cond.Required {
			info = append(info, signal.IndicatorUsage{ConditionType: ct, Key: ref.Key, Required: true})
		}
		for _, ref := range cond.Optional {
			info = append(info, signal.IndicatorUsage{ConditionType: ct, Key: ref.Key, Required: false})
		}
	}
	if cfg.Type.AllowsLong() {
		add(event.LongEntry, cfg.LongEntry.Condition)
		add(event.LongExit, cfg.LongExit.Condition)
	}
	if cfg.Type.AllowsShort() {
		add(event.ShortEntry, cfg.ShortEntry.Condition)
		add(event.ShortExit, cfg.ShortExit.Condition)
	}
	return info
}

// run holds one Run call's mutable state, kept off Simulator so a single
// Simulator is safe to reuse across independent runs.
type run struct {
	sim        *Simulator
	bars       []bar.Bar
	timestamps []int64
	subBars    map[int][]bar.Bar
	slFactors  trigger.FactorLookup
	tpFactors  trigger.FactorLookup

	ids   *event.IDAllocator
	queue *queue.EventQueue

	snapshot Snapshot
	fifo     []types.SwapEvent
	result   Result
}

func (r *run) execute() Result {
	for {
		e, skipped, ok := r.queue.PopCountingDead()
		r.result.Stats.DeadEventsSkipped += skipped
		metrics.DeadEventsSkipped.Add(float64(skipped))
		if !ok {
			break
		}
		r.result.Stats.EventsProcessed++
		metrics.EventsProcessed.WithLabelValues(e.Kind.String()).Inc()

		r.absorb(e)
		switch r.snapshot.State {
		case types.Cash:
			r.dispatchCash(e)
		case types.Position:
			r.dispatchPosition(e)
		case types.Timeout:
			r.dispatchTimeout(e)
		}
	}

	if r.sim.exec.ClosePositionOnExit && r.snapshot.State == types.Position && len(r.bars) > 0 {
		r.forceClose()
	}

	r.result.FinalState = r.snapshot.State
	r.result.FinalEquity = r.snapshot.Equity
	return r.result
}

// absorb updates the snapshot's clock, price, and condition-flag map from
// the just-popped event, regardless of dispatch outcome (spec.md §4.6 (a)).
func (r *run) absorb(e event.Event) {
	r.snapshot.CurrentTimestamp = e.Timestamp
	r.snapshot.CurrentBarIndex = e.BarIndex

	switch e.Kind {
	case event.KindSLTrigger, event.KindTPTrigger, event.KindTrailingTrigger:
		r.snapshot.CurrentPrice = e.PriceTrigger.TriggerPrice
	default:
		if int(e.BarIndex) < len(r.bars) {
			r.snapshot.CurrentPrice = r.bars[e.BarIndex].Close
		}
	}

	switch e.Kind {
	case event.KindConditionMet:
		r.snapshot.ConditionMet[e.Condition.ConditionType] = true
	case event.KindConditionUnmet:
		r.snapshot.ConditionMet[e.Condition.ConditionType] = false
	}
}

func (r *run) dispatchCash(e event.Event) {
	if e.Kind != event.KindConditionMet {
		return
	}
	switch e.Condition.ConditionType {
	case event.LongEntry:
		if r.sim.cfg.Type.AllowsLong() && r.tradesLimitOK() {
			r.executeEntry(event.Long)
		}
	case event.ShortEntry:
		if r.sim.cfg.Type.AllowsShort() && r.tradesLimitOK() {
			r.executeEntry(event.Short)
		}
	}
	// ConditionMet for other types, ConditionUnmet, SignalCrossing, timeouts
	// and price events are absorbed above and cause no transition here.
}

func (r *run) dispatchPosition(e event.Event) {
	pos := r.snapshot.Position
	exitCT := event.LongExit
	if pos.Direction == event.Short {
		exitCT = event.ShortExit
	}

	switch e.Kind {
	case event.KindSLTrigger, event.KindTrailingTrigger:
		if !pos.HasPendingSL || e.ID != pos.PendingSLID {
			return
		}
		if pos.HasPendingTP {
			r.queue.MarkDead(pos.PendingTPID)
		}
		reason := reasonStopLoss
		if e.Kind == event.KindTrailingTrigger {
			reason = reasonTrailingStop
		}
		r.executeExit(e.PriceTrigger.TriggerPrice, reason)
	case event.KindTPTrigger:
		if !pos.HasPendingTP || e.ID != pos.PendingTPID {
			return
		}
		if pos.HasPendingSL {
			r.queue.MarkDead(pos.PendingSLID)
		}
		r.executeExit(e.PriceTrigger.TriggerPrice, reasonTakeProfit)
	case event.KindConditionMet:
		if e.Condition.ConditionType != exitCT {
			return
		}
		if pos.HasPendingSL {
			r.queue.MarkDead(pos.PendingSLID)
		}
		if pos.HasPendingTP {
			r.queue.MarkDead(pos.PendingTPID)
		}
		r.executeExit(r.snapshot.CurrentPrice, reasonExitSignal)
	}
}

func (r *run) dispatchTimeout(e event.Event) {
	t := r.snapshot.Timeout
	wasComplete := t.CooldownComplete
	if e.Kind == event.KindTimeoutExpired {
		t.CooldownComplete = true
	}
	if r.snapshot.CurrentBarIndex >= t.CooldownEndBar {
		t.CooldownComplete = true
	}
	if !wasComplete && t.CooldownComplete {
		r.result.Stats.TimeoutCompletions++
	}
	if !t.CooldownComplete {
		return
	}

	switch r.sim.cfg.Timeout.Mode {
	case config.CooldownOnly:
		r.dispatchCooldownOnly(e, t)
	case config.Regular:
		r.dispatchRegular(e, t)
	case config.Strict:
		r.dispatchStrict()
	}
}

func (r *run) dispatchCooldownOnly(e event.Event, t *TimeoutInfo) {
	direction := t.Direction
	if e.Kind == event.KindConditionMet {
		ct := e.Condition.ConditionType
		sameDirEntry := (direction == event.Long && ct == event.LongEntry) ||
			(direction == event.Short && ct == event.ShortEntry)
		if sameDirEntry && directionAllowed(r.sim.cfg.Type, direction) && r.tradesLimitOK() {
			r.snapshot.Timeout = nil
			r.executeEntry(direction)
			return
		}
	}
	r.snapshot.Timeout = nil
	r.setState(types.Cash, reasonCooldownOver)
}

func (r *run) dispatchRegular(e event.Event, t *TimeoutInfo) {
	opposite := oppositeDirection(t.Direction)
	if e.Kind == event.KindConditionMet {
		ct := e.Condition.ConditionType
		if ct == entryConditionFor(opposite) && directionAllowed(r.sim.cfg.Type, opposite) && r.tradesLimitOK() {
			r.snapshot.Timeout = nil
			r.executeEntry(opposite)
			return
		}
	}
	if !r.snapshot.ConditionMet[entryConditionFor(t.Direction)] {
		r.snapshot.Timeout = nil
		r.setState(types.Cash, reasonCooldownOver)
	}
	// else remain in TIMEOUT: the same-direction entry flag is still up.
}

func (r *run) dispatchStrict() {
	if !r.snapshot.ConditionMet[event.LongEntry] && !r.snapshot.ConditionMet[event.ShortEntry] {
		r.snapshot.Timeout = nil
		r.setState(types.Cash, reasonCooldownOver)
	}
}

func entryConditionFor(d event.Direction) event.ConditionType {
	if d == event.Short {
		return event.ShortEntry
	}
	return event.LongEntry
}

func oppositeDirection(d event.Direction) event.Direction {
	if d == event.Long {
		return event.Short
	}
	return event.Long
}

func directionAllowed(pt config.PositionType, d event.Direction) bool {
	if d == event.Long {
		return pt.AllowsLong()
	}
	return pt.AllowsShort()
}

func (r *run) tradesLimitOK() bool {
	if r.sim.exec.TradesLimit <= 0 {
		return true
	}
	return r.result.Stats.Entries < r.sim.exec.TradesLimit
}

// executeEntry implements spec.md §4.6's entry-execution formula, then
// schedules independent forward scans for the stop-loss/trailing leg and
// the take-profit leg so that either can dead-mark the other on exit (see
// DESIGN.md's resolution of the scanner's single-hit open question).
func (r *run) executeEntry(direction event.Direction) {
	cfg := r.sim.cfg
	exec := r.sim.exec
	entryPrice := r.snapshot.CurrentPrice

	positionValue := risk.PositionValue(r.snapshot.Equity, cfg.PositionSize, 1)
	feeUSD, slippageUSD := money.FeeAndSlippage(positionValue, exec.FeeBps, exec.SlippageBps)
	assetAmount := risk.AssetAmount(positionValue, entryPrice, feeUSD, slippageUSD)

	tradeID := uuid.NewString()
	swap := types.SwapEvent{
		ID:             r.ids.Next(),
		Timestamp:      r.snapshot.CurrentTimestamp,
		BarIndex:       r.snapshot.CurrentBarIndex,
		FromAsset:      types.USD,
		ToAsset:        exec.Symbol,
		FromAmount:     positionValue,
		ToAmount:       assetAmount,
		Price:          entryPrice,
		FeeUSD:         feeUSD,
		SlippageUSD:    slippageUSD,
		IsEntry:        true,
		TradeDirection: direction,
	}
	r.result.SwapEvents = append(r.result.SwapEvents, swap)
	r.fifo = append(r.fifo, swap)

	pos := &PositionInfo{
		Direction:     direction,
		EntryPrice:    entryPrice,
		TradeID:       tradeID,
		PositionSize:  assetAmount,
		EntryValue:    positionValue,
		EntryBarIndex: r.snapshot.CurrentBarIndex,
	}

	exitCond := cfg.LongExit
	if direction == event.Short {
		exitCond = cfg.ShortExit
	}
	r.scheduleExitTriggers(pos, direction, entryPrice, exitCond)

	r.snapshot.Position = pos
	r.setState(types.Position, reasonEntry)
	r.result.Stats.Entries++
	metrics.TradesExecuted.WithLabelValues("entry").Inc()
	metrics.PositionsOpen.Set(1)
}

func (r *run) scheduleExitTriggers(pos *PositionInfo, direction event.Direction, entryPrice float64, exitCond config.ExitCondition) {
	if exitCond.StopLoss == nil && exitCond.TakeProfit == nil {
		return
	}
	base := trigger.ScanParams{
		EntryBar:   int(r.snapshot.CurrentBarIndex),
		EntryPrice: entryPrice,
		Direction:  direction,
		TradeID:    pos.TradeID,
		Bars:       r.bars,
		SubBars:    r.subBars,
		Timestamps: r.timestamps,
		IDs:        r.ids,
	}

	if exitCond.StopLoss != nil {
		p := base
		p.StopLoss = exitCond.StopLoss
		p.TrailingSL = exitCond.TrailingSL
		p.SLFactors = r.slFactors
		if res := trigger.Scan(p); res.HasTrigger {
			r.queue.Push(*res.Event)
			pos.PendingSLID = res.Event.ID
			pos.HasPendingSL = true
		}
	}
	if exitCond.TakeProfit != nil {
		p := base
		p.TakeProfit = exitCond.TakeProfit
		p.TPFactors = r.tpFactors
		if res := trigger.Scan(p); res.HasTrigger {
			r.queue.Push(*res.Event)
			pos.PendingTPID = res.Event.ID
			pos.HasPendingTP = true
		}
	}
}

// executeExit implements spec.md §4.6's exit-execution formula and trade
// pairing, then transitions to TIMEOUT (if a cooldown is configured) or
// directly to CASH.
func (r *run) executeExit(exitPrice float64, reason string) {
	direction := r.snapshot.Position.Direction
	r.doExit(exitPrice, reason)
	r.snapshot.Position = nil

	cooldown := r.sim.cfg.Timeout.CooldownBars
	if cooldown > 0 {
		r.enterTimeout(direction, cooldown, reason)
	} else {
		r.setState(types.Cash, reason)
	}
}

// forceClose synthesises an END_OF_BACKTEST exit at the last bar's close
// when the run drains the heap still holding a position (spec.md §4.6).
func (r *run) forceClose() {
	last := r.bars[len(r.bars)-1]
	r.snapshot.CurrentPrice = last.Close
	r.snapshot.CurrentTimestamp = last.Bucket
	r.snapshot.CurrentBarIndex = uint32(len(r.bars) - 1)

	pos := r.snapshot.Position
	if pos.HasPendingSL {
		r.queue.MarkDead(pos.PendingSLID)
	}
	if pos.HasPendingTP {
		r.queue.MarkDead(pos.PendingTPID)
	}

	r.doExit(last.Close, reasonEndOfBacktest)
	r.snapshot.Position = nil
	r.snapshot.Timeout = nil
	r.setState(types.Cash, reasonEndOfBacktest)
}

func (r *run) doExit(exitPrice float64, reason string) {
	pos := r.snapshot.Position
	gross := pos.PositionSize * exitPrice
	feeUSD, slippageUSD := money.FeeAndSlippage(gross, r.sim.exec.FeeBps, r.sim.exec.SlippageBps)
	net := gross - feeUSD - slippageUSD

	swap := types.SwapEvent{
		ID:             r.ids.Next(),
		Timestamp:      r.snapshot.CurrentTimestamp,
		BarIndex:       r.snapshot.CurrentBarIndex,
		FromAsset:      r.sim.exec.Symbol,
		ToAsset:        types.USD,
		FromAmount:     pos.PositionSize,
		ToAmount:       net,
		Price:          exitPrice,
		FeeUSD:         feeUSD,
		SlippageUSD:    slippageUSD,
		IsEntry:        false,
		TradeDirection: pos.Direction,
	}
	r.result.SwapEvents = append(r.result.SwapEvents, swap)

	r.snapshot.Equity = (r.snapshot.Equity - pos.EntryValue) + net
	if r.snapshot.Equity > r.snapshot.PeakEquity {
		r.snapshot.PeakEquity = r.snapshot.Equity
	}

	r.pairTrade(swap)
	r.appendEquityPoint()

	r.result.Stats.Exits++
	switch reason {
	case reasonStopLoss:
		r.result.Stats.StopLossExits++
	case reasonTakeProfit:
		r.result.Stats.TakeProfitExits++
	case reasonTrailingStop:
		r.result.Stats.TrailingStopExits++
	case reasonExitSignal:
		r.result.Stats.SignalExits++
	case reasonEndOfBacktest:
		r.result.Stats.EndOfBacktestExits++
	}
	metrics.TradesExecuted.WithLabelValues(reason).Inc()
	metrics.PositionsOpen.Set(0)
}

// pairTrade matches an exit swap against the oldest unpaired entry swap
// (spec.md §4.6's FIFO pairing). An exit with no preceding entry is counted
// as an anomaly rather than raised as an error (spec.md §7).
func (r *run) pairTrade(exit types.SwapEvent) {
	if len(r.fifo) == 0 {
		r.result.Stats.UnpairedExits++
		return
	}
	entry := r.fifo[0]
	r.fifo = r.fifo[1:]

	pnlUSD := exit.ToAmount - entry.FromAmount
	var pnlPct float64
	if entry.FromAmount != 0 {
		pnlPct = pnlUSD / entry.FromAmount * 100
	}
	r.result.Trades = append(r.result.Trades, types.TradeEvent{
		Entry:           entry,
		Exit:            exit,
		PnLUSD:          pnlUSD,
		PnLPct:          pnlPct,
		DurationBars:    exit.BarIndex - entry.BarIndex,
		DurationSeconds: exit.Timestamp - entry.Timestamp,
	})
}

func (r *run) enterTimeout(direction event.Direction, cooldown uint32, reason string) {
	r.snapshot.Timeout = &TimeoutInfo{
		Direction:      direction,
		CooldownEndBar: r.snapshot.CurrentBarIndex + cooldown,
	}
	r.setState(types.Timeout, reason)

	r.queue.Push(event.Event{
		Envelope: event.Envelope{
			ID:        r.ids.Next(),
			Timestamp: r.snapshot.CurrentTimestamp + int64(cooldown)*r.sim.exec.BarDurationSeconds,
			BarIndex:  r.snapshot.CurrentBarIndex + cooldown,
		},
		Kind: event.KindTimeoutExpired,
		Timeout: &event.TimeoutPayload{
			TradeID:         "",
			TimeoutStartBar: r.snapshot.CurrentBarIndex,
			CooldownBars:    cooldown,
		},
	})
}

func (r *run) appendEquityPoint() {
	var drawdown float64
	if r.snapshot.PeakEquity > 0 {
		drawdown = (r.snapshot.PeakEquity - r.snapshot.Equity) / r.snapshot.PeakEquity * 100
		if drawdown < 0 {
			drawdown = 0
		}
	}
	r.result.EquityCurve = append(r.result.EquityCurve, types.EquityPoint{
		Timestamp:   r.snapshot.CurrentTimestamp,
		BarIndex:    r.snapshot.CurrentBarIndex,
		Equity:      r.snapshot.Equity,
		DrawdownPct: drawdown,
		Position:    r.snapshot.State,
	})
	metrics.EquityGauge.Set(r.snapshot.Equity)
}

func (r *run) setState(to types.SimState, reason string) {
	from := r.snapshot.State
	if from != to {
		r.result.StateTransitions = append(r.result.StateTransitions, types.StateTransition{
			Timestamp: r.snapshot.CurrentTimestamp,
			BarIndex:  r.snapshot.CurrentBarIndex,
			From:      from,
			To:        to,
			Reason:    reason,
		})
	}
	r.snapshot.State = to
}


