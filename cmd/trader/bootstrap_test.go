package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odte-trader/internal/controller"
	"odte-trader/internal/marketclock"
	"odte-trader/internal/signals"
	"odte-trader/internal/types"
)

type countingFeed struct {
	price float64
	calls atomic.Int32
}

func (f *countingFeed) CurrentPrice(_ context.Context, _ string, _ types.OptionType, _ float64, _ string) (float64, error) {
	f.calls.Add(1)
	return f.price, nil
}

func taskTestController(t *testing.T, feed *countingFeed, caps types.CapabilityFlags) (*controller.Controller, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	clock := marketclock.NewInLocation(loc)
	risk := types.RiskParams{
		MaxPositions:       5,
		MaxDayTrades:       3,
		MaxRiskPerTradePct: 2.0,
		StopLossPct:        15,
		TakeProfitPct:      25,
		MinConfidence:      75,
	}

	ctrl := controller.New(controller.Config{
		LoopInterval:     time.Hour, // steps are driven explicitly
		BasePositionSize: 5,
	}, clock, feed, nil, nil, risk, caps, controller.IdentityFiller{})

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-ctrl.Done()
	})
	return ctrl, loc
}

func enabledCaps() types.CapabilityFlags {
	return types.CapabilityFlags{
		DataCollection:   true,
		SignalGeneration: true,
		TradeExecution:   true,
		RiskManagement:   true,
	}
}

func TestSignalGenerationTaskHonorsCapability(t *testing.T) {
	feed := &countingFeed{price: 2.00}
	caps := enabledCaps()
	caps.SignalGeneration = false
	ctrl, loc := taskTestController(t, feed, caps)

	clock := marketclock.NewInLocation(loc)
	simGen := signals.NewSimGenerator(clock, []string{"SPY"}, time.Minute, 8)
	// Tuesday 2026-01-06 10:00, regular hours.
	now := func() time.Time { return time.Date(2026, time.January, 6, 10, 0, 0, 0, loc) }
	handler := signalGenerationTask(ctrl, simGen, now)

	require.NoError(t, handler(context.Background()))
	select {
	case <-simGen.Signals():
		t.Fatal("no signal expected while generation is disabled")
	default:
	}

	ctrl.UpdateCapabilities(enabledCaps())
	require.NoError(t, handler(context.Background()))
	select {
	case sig := <-simGen.Signals():
		assert.Equal(t, "SPY", sig.Symbol)
	default:
		t.Fatal("expected a signal once generation is re-enabled")
	}
}

func TestSignalGenerationTaskWithoutGenerator(t *testing.T) {
	feed := &countingFeed{price: 2.00}
	ctrl, loc := taskTestController(t, feed, enabledCaps())

	now := func() time.Time { return time.Date(2026, time.January, 6, 10, 0, 0, 0, loc) }
	handler := signalGenerationTask(ctrl, nil, now)
	require.NoError(t, handler(context.Background()))
}

func TestDataCollectionTaskHonorsCapability(t *testing.T) {
	feed := &countingFeed{price: 2.00}
	caps := enabledCaps()
	caps.DataCollection = false
	ctrl, loc := taskTestController(t, feed, caps)

	ctrl.EnqueueSignal(types.Signal{
		Symbol:         "SPY",
		OptionType:     types.Call,
		Strike:         445,
		Expiry:         types.Expiry0DTE,
		Confidence:     80,
		EstimatedEntry: 2.00,
		Strategy:       "Momentum Breakout",
		Timestamp:      time.Now(),
	})
	ctrl.StepNow(time.Date(2026, time.January, 6, 10, 0, 0, 0, loc))
	require.Equal(t, 1, ctrl.Status().OpenPositionCount)
	before := feed.calls.Load()

	handler := dataCollectionTask(ctrl, feed)
	require.NoError(t, handler(context.Background()))
	assert.Equal(t, before, feed.calls.Load(), "no quote refresh while collection is disabled")

	ctrl.UpdateCapabilities(enabledCaps())
	require.NoError(t, handler(context.Background()))
	assert.Equal(t, before+1, feed.calls.Load())
}
