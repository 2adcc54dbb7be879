package controller

import (
	"context"
	"time"

	"odte-trader/internal/id"
	"odte-trader/internal/logger"
	"odte-trader/internal/metrics"
	"odte-trader/internal/types"
)

// iterate runs one trade-loop pass at the given instant. Queued commands are
// drained and the emergency-stop flag is re-checked at every step boundary; a
// step already started always runs to completion.
func (c *Controller) iterate(ctx context.Context, now time.Time) {
	if c.st.status == types.StatusDisabled {
		return
	}
	c.maybeRollSession(ctx, now)
	c.st.lastIterErrored = false

	// Step 1: session gate.
	c.checkEstop(ctx)
	phase := c.clock.PhaseAt(now)
	metrics.SetPhase(phase)

	// Step 2: signal intake and execution.
	c.drainCommands(ctx)
	c.checkEstop(ctx)
	if c.gateOpen(phase) && c.st.caps.TradeExecution {
		c.executeNext(ctx, now)
	}

	// Step 3: position monitoring and exits. Exits keep running while paused
	// or stopped; only entries are gated.
	c.drainCommands(ctx)
	c.checkEstop(ctx)
	if c.st.caps.RiskManagement {
		c.monitor(ctx, now)
	}

	// Step 4: performance and gauges.
	c.drainCommands(ctx)
	c.checkEstop(ctx)
	c.refreshMetrics()
}

// gateOpen is the entry gate: new positions only while Active, with the
// master switch on, during regular hours.
func (c *Controller) gateOpen(phase types.TradingPhase) bool {
	return c.st.status == types.StatusActive && c.st.master && phase == types.PhaseRegular
}

// executeNext turns the oldest confidence-eligible queued signal into a
// position. Lower-confidence signals stay queued; they are not discarded.
func (c *Controller) executeNext(ctx context.Context, now time.Time) {
	if c.openCount() >= c.st.risk.MaxPositions {
		logger.Debug(ctx, "Max positions reached, skipping execution", "open", c.openCount())
		return
	}
	if c.st.dayTrades >= c.st.risk.MaxDayTrades {
		logger.Risk(ctx, "DAY_TRADE_LIMIT", "used", c.st.dayTrades, "limit", c.st.risk.MaxDayTrades)
		return
	}

	idx := -1
	for i, sig := range c.st.queue {
		if sig.Confidence >= c.st.risk.MinConfidence {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	sig := c.st.queue[idx]
	c.st.queue = append(c.st.queue[:idx], c.st.queue[idx+1:]...)

	fillPrice, err := c.filler.Fill(sig)
	if err != nil {
		c.st.lastIterErrored = true
		metrics.Signals.WithLabelValues("rejected").Inc()
		logger.ErrorWithErr(ctx, "Signal execution failed", &types.ExecutionError{Symbol: sig.Symbol, Err: err})
		return
	}

	qty := positionSize(c.cfg.BasePositionSize, sig.Confidence)
	pos := &types.Position{
		ID:              id.New(),
		Symbol:          sig.Symbol,
		OptionType:      sig.OptionType,
		Strike:          sig.Strike,
		Expiry:          sig.Expiry,
		Quantity:        qty,
		EntryPrice:      fillPrice,
		CurrentPrice:    fillPrice,
		StopLossPrice:   fillPrice * (1 - c.st.risk.StopLossPct/100),
		TakeProfitPrice: fillPrice * (1 + c.st.risk.TakeProfitPct/100),
		Status:          types.PositionOpen,
		Strategy:        sig.Strategy,
		Confidence:      sig.Confidence,
		EntryTime:       now,
	}
	c.st.open = append(c.st.open, pos)
	c.st.dayTrades++

	metrics.Signals.WithLabelValues("executed").Inc()
	metrics.Trades.WithLabelValues("open").Inc()
	logger.Trade(ctx, pos.Symbol, "OPEN", pos.Quantity, pos.EntryPrice, pos.ID,
		"option_type", string(pos.OptionType),
		"strike", pos.Strike,
		"strategy", pos.Strategy,
		"confidence", pos.Confidence,
	)
}

// monitor refreshes every open position in insertion order and applies the
// exit rules: stop-loss first, then take-profit, then the 0DTE time exit.
func (c *Controller) monitor(ctx context.Context, now time.Time) {
	ttc, inRegular := c.clock.TimeToClose(now)

	for _, pos := range c.st.open {
		if pos.Status != types.PositionOpen {
			continue
		}
		price, err := c.feed.CurrentPrice(ctx, pos.Symbol, pos.OptionType, pos.Strike, pos.Expiry)
		if err != nil {
			c.st.lastIterErrored = true
			logger.Warn(ctx, "Price refresh failed, keeping last known price",
				"position_id", pos.ID, "symbol", pos.Symbol, "error", err.Error())
			continue
		}
		pos.CurrentPrice = price
		pos.PnL = signedPnL(pos.OptionType, pos.EntryPrice, price, pos.Quantity)
		pos.PnLPercent = pos.PnL / (pos.EntryPrice * float64(pos.Quantity)) * 100

		switch {
		case price <= pos.StopLossPrice:
			c.closePosition(ctx, pos, now, types.ExitStopLoss)
		case price >= pos.TakeProfitPrice:
			c.closePosition(ctx, pos, now, types.ExitTakeProfit)
		case pos.Expiry == types.Expiry0DTE && inRegular && ttc < c.cfg.TimeExitWindow:
			c.closePosition(ctx, pos, now, types.ExitTime)
		}
	}
	c.compactOpen()
}

// closePosition finalizes a position at its current price. The position
// becomes immutable afterwards; the ledger write failing never blocks the
// close itself.
func (c *Controller) closePosition(ctx context.Context, pos *types.Position, now time.Time, reason types.ExitReason) {
	pos.Status = types.PositionClosed
	pos.ExitTime = now
	pos.ExitPrice = pos.CurrentPrice
	pos.ExitReason = reason
	pos.PnL = signedPnL(pos.OptionType, pos.EntryPrice, pos.ExitPrice, pos.Quantity)
	pos.PnLPercent = pos.PnL / (pos.EntryPrice * float64(pos.Quantity)) * 100

	c.st.totalTrades++
	if pos.PnL > 0 {
		c.st.wins++
		metrics.Trades.WithLabelValues("win").Inc()
	} else {
		metrics.Trades.WithLabelValues("loss").Inc()
	}
	c.st.totalPnL += pos.PnL
	c.st.dailyPnL += pos.PnL
	metrics.ExitReasons.WithLabelValues(string(reason)).Inc()

	if c.ledger != nil {
		if err := c.ledger.RecordClosedPosition(*pos); err != nil {
			logger.ErrorWithErr(ctx, "Ledger write failed for closed position", err, "position_id", pos.ID)
		}
	}
	logger.Trade(ctx, pos.Symbol, "CLOSE", pos.Quantity, pos.ExitPrice, pos.ID,
		"exit_reason", string(reason),
		"pnl", pos.PnL,
		"pnl_percent", pos.PnLPercent,
	)
}

// compactOpen moves closed positions out of the working set into the bounded
// recently-closed ring, preserving insertion order of the survivors.
func (c *Controller) compactOpen() {
	live := c.st.open[:0]
	for _, pos := range c.st.open {
		if pos.Status == types.PositionOpen {
			live = append(live, pos)
			continue
		}
		c.st.closed = append(c.st.closed, *pos)
	}
	c.st.open = live
	if len(c.st.closed) > c.cfg.ClosedRetention {
		c.st.closed = c.st.closed[len(c.st.closed)-c.cfg.ClosedRetention:]
	}
}

// manualClose closes one open position right away, refreshing the price best
// effort first. Unknown or already-closed ids are NotFoundError.
func (c *Controller) manualClose(ctx context.Context, posID string) error {
	for _, pos := range c.st.open {
		if pos.ID != posID || pos.Status != types.PositionOpen {
			continue
		}
		quoteCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		price, err := c.feed.CurrentPrice(quoteCtx, pos.Symbol, pos.OptionType, pos.Strike, pos.Expiry)
		cancel()
		if err == nil {
			pos.CurrentPrice = price
		}
		c.closePosition(ctx, pos, time.Now(), types.ExitManualClose)
		c.compactOpen()
		return nil
	}
	return &types.NotFoundError{Kind: "position", ID: posID}
}

// closeAll liquidates every open position with the given reason. Used on
// shutdown with liquidation requested.
func (c *Controller) closeAll(ctx context.Context, now time.Time, reason types.ExitReason) {
	if now.IsZero() {
		now = time.Now()
	}
	for _, pos := range c.st.open {
		if pos.Status == types.PositionOpen {
			c.closePosition(ctx, pos, now, reason)
		}
	}
	c.compactOpen()
}

// maybeRollSession resets the per-session counters when the exchange-local
// calendar day changes under a long-running process.
func (c *Controller) maybeRollSession(ctx context.Context, now time.Time) {
	if c.st.sessionDay.IsZero() {
		c.st.sessionDay = now
		return
	}
	if !c.clock.SameCalendarDay(c.st.sessionDay, now) {
		c.rollSession(ctx, now)
	}
}

// rollSession reports the outgoing session's counters to the ledger, then
// zeroes them for the new session.
func (c *Controller) rollSession(ctx context.Context, now time.Time) {
	if c.ledger != nil && (c.st.dayTrades > 0 || c.st.dailyPnL != 0) {
		if err := c.ledger.RecordSessionCounters(c.st.sessionDay, c.st.dayTrades, c.st.dailyPnL); err != nil {
			logger.ErrorWithErr(ctx, "Ledger write failed for session counters", err)
		}
	}
	logger.Info(ctx, "Session counters reset",
		"prev_day_trades", c.st.dayTrades,
		"prev_daily_pnl", c.st.dailyPnL,
	)
	c.st.dayTrades = 0
	c.st.dailyPnL = 0
	c.st.sessionDay = now
}

func (c *Controller) openCount() int {
	n := 0
	for _, p := range c.st.open {
		if p.Status == types.PositionOpen {
			n++
		}
	}
	return n
}

func (c *Controller) refreshMetrics() {
	metrics.OpenPositions.Set(float64(c.openCount()))
	metrics.DayTradesUsed.Set(float64(c.st.dayTrades))
	metrics.DailyPnL.Set(c.st.dailyPnL)
}
