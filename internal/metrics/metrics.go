// Package metrics holds the Prometheus instruments updated by the scheduler
// and the trading controller. They are registered in init() and served at
// /metrics by the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"odte-trader/internal/types"
)

var (
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_open_positions",
			Help: "Number of currently open positions",
		},
	)

	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_trades_total",
			Help: "Trades counted by result (open|win|loss)",
		},
		[]string{"result"},
	)

	ExitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_exit_reasons_total",
			Help: "Position exits split by reason",
		},
		[]string{"reason"},
	)

	DayTradesUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_day_trades_used",
			Help: "Executed trades counted against today's day-trade limit",
		},
	)

	DailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_daily_pnl",
			Help: "Realized P&L for the current session",
		},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Signals by disposition (queued|executed|rejected|dropped)",
		},
		[]string{"disposition"},
	)

	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_commands_total",
			Help: "Manual commands by name and result (ok|error)",
		},
		[]string{"command", "result"},
	)

	// trader_phase exposes one labeled series per phase flipped between 0/1
	// to keep dashboards simple.
	Phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_phase",
			Help: "Current trading phase indicator (one series per phase)",
		},
		[]string{"phase"},
	)

	SchedulerTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Scheduler tick iterations",
		},
	)

	TaskExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_task_executions_total",
			Help: "Task executions by task name and outcome",
		},
		[]string{"task", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		OpenPositions,
		Trades,
		ExitReasons,
		DayTradesUsed,
		DailyPnL,
		Signals,
		Commands,
		Phase,
		SchedulerTicks,
		TaskExecutions,
	)
}

var allPhases = []types.TradingPhase{
	types.PhasePreMarket,
	types.PhaseRegular,
	types.PhaseAfterHours,
	types.PhaseClosed,
	types.PhaseWeekend,
}

// SetPhase flips the phase indicator series so exactly one reads 1.
func SetPhase(p types.TradingPhase) {
	for _, ph := range allPhases {
		v := 0.0
		if ph == p {
			v = 1.0
		}
		Phase.WithLabelValues(string(ph)).Set(v)
	}
}
