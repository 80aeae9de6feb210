// Package metrics exposes the simulator's run statistics as Prometheus
// collectors, adapted from gots/metrics (which tracked a live executor's
// order flow) to the backtester's event-driven counters instead.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_events_processed_total",
			Help: "Total number of live events popped from the scheduler, by kind.",
		},
		[]string{"kind"},
	)

	DeadEventsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backtester_dead_events_skipped_total",
			Help: "Total number of dead-marked events discarded during extraction.",
		},
	)

	TradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_trades_executed_total",
			Help: "Total number of realized trades, by exit reason.",
		},
		[]string{"reason"},
	)

	PositionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtester_positions_open",
			Help: "1 while the simulator holds an open position, 0 otherwise.",
		},
	)

	EquityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtester_equity",
			Help: "Current equity of the simulated account.",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsProcessed, DeadEventsSkipped, TradesExecuted, PositionsOpen, EquityGauge)
}


