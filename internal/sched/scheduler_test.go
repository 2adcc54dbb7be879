package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odte-trader/internal/marketclock"
	"odte-trader/internal/types"
)

func testClock(t *testing.T) (*marketclock.Clock, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return marketclock.NewInLocation(loc), loc
}

// Tuesday 2026-01-06, exchange-local.
func at(loc *time.Location, hour, min int) time.Time {
	return time.Date(2026, time.January, 6, hour, min, 0, 0, loc)
}

func newTestScheduler(t *testing.T) (*Scheduler, *time.Location) {
	t.Helper()
	clock, loc := testClock(t)
	return New(Config{TickInterval: time.Second, TaskTimeout: 5 * time.Second}, clock), loc
}

func TestContinuousTaskFiresEveryEligibleTick(t *testing.T) {
	s, loc := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.Register(NewTask("loop", DuringTradingHours, Continuous(),
		func(context.Context) error { runs.Add(1); return nil })))

	s.Tick(context.Background(), at(loc, 10, 0))
	s.Tick(context.Background(), at(loc, 10, 1))
	assert.Equal(t, int32(2), runs.Load())

	// Not eligible outside regular hours.
	s.Tick(context.Background(), at(loc, 17, 0))
	assert.Equal(t, int32(2), runs.Load())
}

func TestEveryNMinutesGating(t *testing.T) {
	s, loc := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.Register(NewTask("periodic", DuringTradingHours, EveryNMinutes(5),
		func(context.Context) error { runs.Add(1); return nil })))

	s.Tick(context.Background(), at(loc, 10, 0))
	assert.Equal(t, int32(1), runs.Load())

	s.Tick(context.Background(), at(loc, 10, 2))
	assert.Equal(t, int32(1), runs.Load(), "2 minutes elapsed, not due")

	s.Tick(context.Background(), at(loc, 10, 5))
	assert.Equal(t, int32(2), runs.Load())
}

func TestOncePerCalendarDay(t *testing.T) {
	s, loc := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.Register(NewTask("daily", DuringPreMarket, OncePerCalendarDay(),
		func(context.Context) error { runs.Add(1); return nil })))

	s.Tick(context.Background(), at(loc, 5, 0))
	s.Tick(context.Background(), at(loc, 8, 0))
	assert.Equal(t, int32(1), runs.Load())

	nextDay := time.Date(2026, time.January, 7, 5, 0, 0, 0, loc)
	s.Tick(context.Background(), nextDay)
	assert.Equal(t, int32(2), runs.Load())
}

func TestOncePerWeekUsesExchangeWeek(t *testing.T) {
	clock, loc := testClock(t)

	// Saturday 2026-01-10 exchange-local, ISO week 2.
	lastRun := time.Date(2026, time.January, 10, 15, 0, 0, 0, loc)

	// Sunday 21:00 exchange-local is still week 2, even though UTC has
	// already rolled into Monday of week 3.
	now := time.Date(2026, time.January, 12, 2, 0, 0, 0, time.UTC)
	assert.False(t, OncePerWeek().due(clock, lastRun, now))

	nextWeek := time.Date(2026, time.January, 17, 15, 0, 0, 0, loc)
	assert.True(t, OncePerWeek().due(clock, lastRun, nextWeek))
}

func TestLastRunAdvancesOnFailureToo(t *testing.T) {
	s, loc := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.Register(NewTask("flaky", DuringTradingHours, EveryNMinutes(5),
		func(context.Context) error { runs.Add(1); return errors.New("boom") })))

	s.Tick(context.Background(), at(loc, 10, 0))
	s.Tick(context.Background(), at(loc, 10, 1))
	assert.Equal(t, int32(1), runs.Load(), "failed run still consumed its slot")
}

func TestFailingTaskDoesNotStopOthers(t *testing.T) {
	s, loc := newTestScheduler(t)
	var ran atomic.Bool
	require.NoError(t, s.Register(NewTask("bad", DuringTradingHours, Continuous(),
		func(context.Context) error { return errors.New("boom") })))
	require.NoError(t, s.Register(NewTask("good", DuringTradingHours, Continuous(),
		func(context.Context) error { ran.Store(true); return nil })))

	s.Tick(context.Background(), at(loc, 10, 0))
	assert.True(t, ran.Load())

	snap := s.Status(10)
	require.Len(t, snap.RecentHistory, 2)
	assert.Equal(t, OutcomeFailure, snap.RecentHistory[0].Outcome)
	assert.Contains(t, snap.RecentHistory[0].Error, "boom")
	assert.Equal(t, OutcomeSuccess, snap.RecentHistory[1].Outcome)
}

func TestPanicIsRecordedAsFailure(t *testing.T) {
	s, loc := newTestScheduler(t)
	require.NoError(t, s.Register(NewTask("panicky", DuringTradingHours, Continuous(),
		func(context.Context) error { panic("kaboom") })))

	s.Tick(context.Background(), at(loc, 10, 0))

	snap := s.Status(1)
	require.Len(t, snap.RecentHistory, 1)
	assert.Equal(t, OutcomeFailure, snap.RecentHistory[0].Outcome)
	assert.Contains(t, snap.RecentHistory[0].Error, "panic")
}

func TestTimeoutAbandonsAndGuardsReentry(t *testing.T) {
	clock, loc := testClock(t)
	s := New(Config{TickInterval: time.Second, TaskTimeout: 20 * time.Millisecond}, clock)

	release := make(chan struct{})
	require.NoError(t, s.Register(NewTask("slow", DuringTradingHours, Continuous(),
		func(context.Context) error { <-release; return nil })))

	s.Tick(context.Background(), at(loc, 10, 0))
	snap := s.Status(1)
	require.Len(t, snap.RecentHistory, 1)
	assert.Equal(t, OutcomeTimeout, snap.RecentHistory[0].Outcome)

	// The abandoned handler is still in flight, so the next tick skips.
	s.Tick(context.Background(), at(loc, 10, 1))
	snap = s.Status(2)
	require.Len(t, snap.RecentHistory, 2)
	assert.Equal(t, OutcomeSkipped, snap.RecentHistory[1].Outcome)

	close(release)
}

func TestDisableAndEnable(t *testing.T) {
	s, loc := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.Register(NewTask("toggle", DuringTradingHours, Continuous(),
		func(context.Context) error { runs.Add(1); return nil })))

	require.NoError(t, s.DisableTask("toggle"))
	s.Tick(context.Background(), at(loc, 10, 0))
	assert.Equal(t, int32(0), runs.Load())

	require.NoError(t, s.EnableTask("toggle"))
	s.Tick(context.Background(), at(loc, 10, 1))
	assert.Equal(t, int32(1), runs.Load())

	var nf *types.NotFoundError
	err := s.DisableTask("nope")
	require.Error(t, err)
	assert.ErrorAs(t, err, &nf)
}

func TestTransitionHookFiresOncePerTransition(t *testing.T) {
	s, loc := newTestScheduler(t)
	var calls []types.TradingPhase
	s.OnTransition(func(_ context.Context, from, to types.TradingPhase) {
		calls = append(calls, to)
	})

	// First tick always fires a hook for the initial phase.
	s.Tick(context.Background(), at(loc, 8, 0))
	s.Tick(context.Background(), at(loc, 8, 1))
	require.Equal(t, []types.TradingPhase{types.PhasePreMarket}, calls)

	s.Tick(context.Background(), at(loc, 9, 30))
	s.Tick(context.Background(), at(loc, 9, 31))
	require.Equal(t, []types.TradingPhase{types.PhasePreMarket, types.PhaseRegular}, calls)
}

func TestHooksRunBeforeTasks(t *testing.T) {
	s, loc := newTestScheduler(t)
	var order []string
	s.OnTransition(func(_ context.Context, _, _ types.TradingPhase) {
		order = append(order, "hook")
	})
	require.NoError(t, s.Register(NewTask("obs", DuringTradingHours, Continuous(),
		func(context.Context) error { order = append(order, "task"); return nil })))

	s.Tick(context.Background(), at(loc, 10, 0))
	assert.Equal(t, []string{"hook", "task"}, order)
}

func TestExecutedTodayResetsOnNewDay(t *testing.T) {
	s, loc := newTestScheduler(t)
	require.NoError(t, s.Register(NewTask("loop", DuringTradingHours, Continuous(),
		func(context.Context) error { return nil })))

	s.Tick(context.Background(), at(loc, 10, 0))
	s.Tick(context.Background(), at(loc, 10, 1))
	assert.Equal(t, 2, s.Status(10).TasksExecutedToday)

	nextDay := time.Date(2026, time.January, 7, 10, 0, 0, 0, loc)
	s.Tick(context.Background(), nextDay)
	assert.Equal(t, 1, s.Status(10).TasksExecutedToday)
}

func TestStatusHistoryCappedAtTen(t *testing.T) {
	s, loc := newTestScheduler(t)
	require.NoError(t, s.Register(NewTask("loop", DuringTradingHours, Continuous(),
		func(context.Context) error { return nil })))

	for i := 0; i < 15; i++ {
		s.Tick(context.Background(), at(loc, 10, i))
	}
	snap := s.Status(100)
	assert.Len(t, snap.RecentHistory, 10)
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, 15, snap.Tasks[0].RunCount)
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.Register(NewTask("dup", DuringTradingHours, Continuous(), nil)))
	assert.Error(t, s.Register(NewTask("dup", DuringWeekend, Continuous(), nil)))
}
