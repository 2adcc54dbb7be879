package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odte-trader/internal/marketclock"
	"odte-trader/internal/types"
)

func TestChanSourcePreservesOrder(t *testing.T) {
	s := NewChanSource(4)
	for _, sym := range []string{"SPY", "QQQ", "IWM"} {
		s.Push(types.Signal{Symbol: sym})
	}
	assert.Equal(t, "SPY", (<-s.Signals()).Symbol)
	assert.Equal(t, "QQQ", (<-s.Signals()).Symbol)
	assert.Equal(t, "IWM", (<-s.Signals()).Symbol)
}

func TestChanSourceEvictsOldestWhenFull(t *testing.T) {
	s := NewChanSource(2)
	s.Push(types.Signal{Symbol: "A"})
	s.Push(types.Signal{Symbol: "B"})
	s.Push(types.Signal{Symbol: "C"})

	assert.Equal(t, "B", (<-s.Signals()).Symbol)
	assert.Equal(t, "C", (<-s.Signals()).Symbol)
}

func TestChanSourceStopIsIdempotent(t *testing.T) {
	s := NewChanSource(2)
	s.Stop()
	s.Stop()
	_, open := <-s.Signals()
	assert.False(t, open)
}

func TestChanSourcePushAfterStopIsDropped(t *testing.T) {
	s := NewChanSource(2)
	s.Push(types.Signal{Symbol: "A"})
	s.Stop()

	require.NotPanics(t, func() { s.Push(types.Signal{Symbol: "B"}) })

	sig, open := <-s.Signals()
	require.True(t, open)
	assert.Equal(t, "A", sig.Symbol)
	_, open = <-s.Signals()
	assert.False(t, open)
}

func simClock(t *testing.T) (*marketclock.Clock, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return marketclock.NewInLocation(loc), loc
}

func TestSimGeneratorEmitsOnlyDuringRegularHours(t *testing.T) {
	clock, loc := simClock(t)
	g := NewSimGenerator(clock, []string{"SPY", "QQQ"}, time.Minute, 8)

	g.EmitNow(time.Date(2026, time.January, 6, 8, 0, 0, 0, loc))
	select {
	case <-g.Signals():
		t.Fatal("no signal expected outside regular hours")
	default:
	}

	g.EmitNow(time.Date(2026, time.January, 6, 10, 0, 0, 0, loc))
	select {
	case sig := <-g.Signals():
		assert.Contains(t, []string{"SPY", "QQQ"}, sig.Symbol)
		assert.Equal(t, types.Expiry0DTE, sig.Expiry)
		assert.GreaterOrEqual(t, sig.Confidence, 70.0)
		assert.LessOrEqual(t, sig.Confidence, 95.0)
		assert.GreaterOrEqual(t, sig.EstimatedEntry, 1.50)
		assert.LessOrEqual(t, sig.EstimatedEntry, 4.00)
	default:
		t.Fatal("expected a signal during regular hours")
	}
}

func TestSimGeneratorStopClosesStream(t *testing.T) {
	clock, _ := simClock(t)
	g := NewSimGenerator(clock, []string{"SPY"}, 50*time.Millisecond, 8)
	require.NoError(t, g.Start(context.Background()))
	g.Stop()

	// Drain until the source closes; anything the interval loop managed to
	// emit before Stop is fine, hanging here is not.
	for range g.Signals() {
	}
}

func TestSimGeneratorIsDeterministic(t *testing.T) {
	clock, loc := simClock(t)
	at := time.Date(2026, time.January, 6, 10, 0, 0, 0, loc)

	g1 := NewSimGenerator(clock, []string{"SPY", "QQQ", "IWM"}, time.Minute, 8)
	g2 := NewSimGenerator(clock, []string{"SPY", "QQQ", "IWM"}, time.Minute, 8)
	g1.EmitNow(at)
	g2.EmitNow(at)

	s1 := <-g1.Signals()
	s2 := <-g2.Signals()
	assert.Equal(t, s1, s2)
}
