package main

import (
	"context"
	"fmt"
	"time"

	"odte-trader/internal/controller"
	"odte-trader/internal/eod"
	"odte-trader/internal/feed"
	"odte-trader/internal/httpapi"
	"odte-trader/internal/interfaces"
	"odte-trader/internal/ledger"
	"odte-trader/internal/logger"
	"odte-trader/internal/marketclock"
	"odte-trader/internal/sched"
	"odte-trader/internal/signals"
	"odte-trader/internal/store"
	"odte-trader/internal/trace"
	"odte-trader/internal/types"
)

// App holds the wired process: the session clock, the controller actor, the
// scheduler, the HTTP surface, and the ledgers behind them.
type App struct {
	Clock      *marketclock.Clock
	Controller *controller.Controller
	Scheduler  *sched.Scheduler
	Server     *httpapi.Server
	Source     interfaces.SignalSource

	ledger interfaces.Ledger
}

func (a *App) Close(ctx context.Context) {
	if err := a.ledger.Close(); err != nil {
		logger.ErrorWithErr(ctx, "Ledger close failed", err)
	}
	_ = trace.Shutdown(ctx)
}

func buildApp(cfg *store.Config) (*App, error) {
	clock, err := marketclock.New(cfg.ExchangeTimezone)
	if err != nil {
		return nil, fmt.Errorf("load exchange timezone: %w", err)
	}

	var priceFeed interfaces.PriceFeed
	switch cfg.Feed.Mode {
	case "HTTP":
		priceFeed = feed.NewHTTPFeed(feed.HTTPFeedConfig{
			BaseURL:            cfg.Feed.BaseURL,
			RateLimitPerMinute: cfg.Feed.RateLimitPerMinute,
			Timeout:            time.Duration(cfg.Feed.TimeoutSeconds) * time.Second,
		})
	default:
		priceFeed = feed.NewSimFeed()
	}

	sqlLedger, err := ledger.NewSQLite(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open trade ledger: %w", err)
	}
	journal := ledger.NewJournal(cfg.Ledger.JournalDir, clock.Location())
	books := ledger.NewMulti(sqlLedger, journal)

	var source interfaces.SignalSource
	var simGen *signals.SimGenerator
	if cfg.Signals.Mode == "SIM" {
		simGen = signals.NewSimGenerator(clock, cfg.Signals.Symbols,
			time.Duration(cfg.Signals.IntervalSeconds)*time.Second,
			cfg.Controller.SignalQueueSize)
		source = simGen
	}

	ctrl := controller.New(
		controller.Config{
			LoopInterval:      time.Duration(cfg.Controller.LoopSeconds) * time.Second,
			ErrorBackoff:      time.Duration(cfg.Controller.ErrorBackoffSeconds) * time.Second,
			SignalQueueSize:   cfg.Controller.SignalQueueSize,
			SignalHistorySize: cfg.Controller.SignalHistorySize,
			BasePositionSize:  cfg.Controller.BasePositionSize,
			TimeExitWindow:    time.Duration(cfg.Controller.TimeExitWindowMinutes) * time.Minute,
		},
		clock, priceFeed, books, source,
		cfg.Risk, cfg.Capabilities,
		controller.SlippageFiller{MaxSlippagePct: cfg.Controller.MaxSlippagePct},
	)

	scheduler := sched.New(sched.Config{
		TickInterval: time.Duration(cfg.Scheduler.TickSeconds) * time.Second,
		TaskTimeout:  time.Duration(cfg.Scheduler.TaskTimeoutSeconds) * time.Second,
	}, clock)

	scheduler.OnTransition(sessionHook(ctrl))

	summarizer := eod.NewSummarizer(sqlLedger, cfg.EOD.Dir, clock.Location())
	if err := registerTasks(scheduler, ctrl, sqlLedger, summarizer, simGen, priceFeed); err != nil {
		return nil, err
	}

	server := httpapi.New(httpapi.Config{
		Addr:           cfg.Server.Addr,
		MetricsEnabled: cfg.Server.MetricsEnabled,
	}, ctrl, scheduler)

	return &App{
		Clock:      clock,
		Controller: ctrl,
		Scheduler:  scheduler,
		Server:     server,
		Source:     source,
		ledger:     books,
	}, nil
}

// sessionHook maps phase transitions onto controller commands: regular hours
// enable trading, after-hours and closed pause it, pre-market starts a fresh
// session.
func sessionHook(ctrl *controller.Controller) sched.TransitionHook {
	return func(ctx context.Context, from, to types.TradingPhase) {
		switch to {
		case types.PhaseRegular:
			ctrl.SetMasterSwitch(true)
		case types.PhaseAfterHours, types.PhaseClosed:
			if err := ctrl.Pause(); err != nil {
				logger.Warn(ctx, "Pause on session transition rejected", "error", err.Error())
			}
		case types.PhasePreMarket:
			ctrl.ResetSessionCounters()
		}
	}
}

func registerTasks(
	s *sched.Scheduler,
	ctrl *controller.Controller,
	sqlLedger *ledger.SQLiteLedger,
	summarizer *eod.Summarizer,
	simGen *signals.SimGenerator,
	priceFeed interfaces.PriceFeed,
) error {
	tasks := []*sched.Task{
		sched.NewTask("pre_market_prep", sched.DuringPreMarket, sched.OncePerCalendarDay(),
			func(ctx context.Context) error {
				snap := ctrl.Status()
				if snap.AutomationStatus == types.StatusEmergencyStop {
					logger.Risk(ctx, "HEALTH_CHECK", "detail", "emergency stop active going into the session")
				}
				logger.Info(ctx, "Pre-market preparation complete",
					"status", string(snap.AutomationStatus),
					"open_positions", snap.OpenPositionCount,
				)
				return nil
			}),

		sched.NewTask("trading_automation", sched.DuringTradingHours, sched.Continuous(),
			func(ctx context.Context) error {
				ctrl.StepNow(time.Now())
				return nil
			}),

		sched.NewTask("signal_generation", sched.DuringTradingHours, sched.EveryNMinutes(2),
			signalGenerationTask(ctrl, simGen, time.Now)),

		sched.NewTask("data_collection", sched.DuringDataHours, sched.Continuous(),
			dataCollectionTask(ctrl, priceFeed)),

		sched.NewTask("eod_report", sched.DuringEndOfDay, sched.OncePerCalendarDay(),
			func(ctx context.Context) error {
				now := time.Now()
				if summarizer.AlreadyWritten(now) {
					return nil
				}
				path, err := summarizer.SummarizeDay(now)
				if err != nil {
					return err
				}
				logger.Info(ctx, "EOD report written", "path", path)
				return nil
			}),

		sched.NewTask("learning_cycle", sched.DuringLearningHours, sched.EveryNMinutes(30),
			func(ctx context.Context) error {
				perf := ctrl.Status().Performance
				logger.Info(ctx, "Learning cycle complete",
					"total_trades", perf.TotalTrades,
					"win_rate", perf.WinRate,
					"total_pnl", perf.TotalPnL,
				)
				return nil
			}),

		sched.NewTask("performance_analysis", sched.DuringLearningHours, sched.EveryNHours(2),
			func(ctx context.Context) error {
				closed, err := sqlLedger.ClosedPositionsOn(time.Now())
				if err != nil {
					return err
				}
				wins, pnl := 0, 0.0
				for _, p := range closed {
					if p.PnL > 0 {
						wins++
					}
					pnl += p.PnL
				}
				logger.Info(ctx, "Performance analysis complete",
					"closed_today", len(closed),
					"wins", wins,
					"realized_pnl", pnl,
				)
				return nil
			}),

		sched.NewTask("weekly_optimization", sched.DuringWeekend, sched.OncePerWeek(),
			func(ctx context.Context) error {
				snap := ctrl.Status()
				logger.Info(ctx, "Weekly optimization pass complete",
					"min_confidence", snap.RiskParams.MinConfidence,
					"stop_loss_pct", snap.RiskParams.StopLossPct,
					"take_profit_pct", snap.RiskParams.TakeProfitPct,
				)
				return nil
			}),
	}

	for _, t := range tasks {
		if err := s.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// signalGenerationTask emits one simulated candidate per due tick, honoring
// the controller's signal-generation capability flag.
func signalGenerationTask(ctrl *controller.Controller, simGen *signals.SimGenerator, now func() time.Time) sched.Handler {
	return func(ctx context.Context) error {
		if simGen == nil || !ctrl.Status().Capabilities.SignalGeneration {
			return nil
		}
		simGen.EmitNow(now())
		return nil
	}
}

// dataCollectionTask keeps quotes warm for every open contract so exits never
// act on a stale first sample. Honors the data-collection capability flag.
func dataCollectionTask(ctrl *controller.Controller, priceFeed interfaces.PriceFeed) sched.Handler {
	return func(ctx context.Context) error {
		if !ctrl.Status().Capabilities.DataCollection {
			return nil
		}
		for _, p := range ctrl.Positions() {
			if p.Status != types.PositionOpen {
				continue
			}
			if _, err := priceFeed.CurrentPrice(ctx, p.Symbol, p.OptionType, p.Strike, p.Expiry); err != nil {
				return err
			}
		}
		return nil
	}
}
