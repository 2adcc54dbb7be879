package marketclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odte-trader/internal/types"
)

func nyLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

// Tuesday 2026-01-06 is a plain weekday.
func nyTime(t *testing.T, hour, min, sec int) time.Time {
	t.Helper()
	return time.Date(2026, time.January, 6, hour, min, sec, 0, nyLoc(t))
}

func TestPhaseBoundaries(t *testing.T) {
	c := NewInLocation(nyLoc(t))

	cases := []struct {
		name string
		at   time.Time
		want types.TradingPhase
	}{
		{"before pre-market", nyTime(t, 3, 59, 59), types.PhaseClosed},
		{"pre-market open", nyTime(t, 4, 0, 0), types.PhasePreMarket},
		{"last pre-market second", nyTime(t, 9, 29, 59), types.PhasePreMarket},
		{"regular open exactly", nyTime(t, 9, 30, 0), types.PhaseRegular},
		{"mid regular", nyTime(t, 12, 0, 0), types.PhaseRegular},
		{"last regular second", nyTime(t, 15, 59, 59), types.PhaseRegular},
		{"regular close exactly", nyTime(t, 16, 0, 0), types.PhaseAfterHours},
		{"last after-hours second", nyTime(t, 19, 59, 59), types.PhaseAfterHours},
		{"after-hours end", nyTime(t, 20, 0, 0), types.PhaseClosed},
		{"midnight", nyTime(t, 0, 0, 0), types.PhaseClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.PhaseAt(tc.at))
		})
	}
}

func TestWeekendBeatsTimeOfDay(t *testing.T) {
	c := NewInLocation(nyLoc(t))

	sat := time.Date(2026, time.January, 10, 12, 0, 0, 0, nyLoc(t))
	sun := time.Date(2026, time.January, 11, 9, 30, 0, 0, nyLoc(t))
	assert.Equal(t, types.PhaseWeekend, c.PhaseAt(sat))
	assert.Equal(t, types.PhaseWeekend, c.PhaseAt(sun))
}

func TestPhaseUsesExchangeTimezone(t *testing.T) {
	c := NewInLocation(nyLoc(t))

	// 15:00 UTC on a winter weekday is 10:00 in New York.
	utc := time.Date(2026, time.January, 6, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, types.PhaseRegular, c.PhaseAt(utc))
}

func TestTimeToOpen(t *testing.T) {
	c := NewInLocation(nyLoc(t))

	t.Run("during regular hours", func(t *testing.T) {
		_, ok := c.TimeToOpen(nyTime(t, 10, 0, 0))
		assert.False(t, ok)
	})

	t.Run("pre-market same day", func(t *testing.T) {
		d, ok := c.TimeToOpen(nyTime(t, 8, 30, 0))
		require.True(t, ok)
		assert.Equal(t, time.Hour, d)
	})

	t.Run("evening resolves to next day", func(t *testing.T) {
		d, ok := c.TimeToOpen(nyTime(t, 17, 0, 0))
		require.True(t, ok)
		assert.Equal(t, 16*time.Hour+30*time.Minute, d)
	})

	t.Run("friday evening resolves to monday", func(t *testing.T) {
		fri := time.Date(2026, time.January, 9, 17, 0, 0, 0, nyLoc(t))
		d, ok := c.TimeToOpen(fri)
		require.True(t, ok)
		mon := time.Date(2026, time.January, 12, 9, 30, 0, 0, nyLoc(t))
		assert.Equal(t, mon.Sub(fri), d)
	})
}

func TestTimeToClose(t *testing.T) {
	c := NewInLocation(nyLoc(t))

	d, ok := c.TimeToClose(nyTime(t, 15, 30, 0))
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, d)

	_, ok = c.TimeToClose(nyTime(t, 17, 0, 0))
	assert.False(t, ok)
}

func TestHelperWindows(t *testing.T) {
	c := NewInLocation(nyLoc(t))

	assert.True(t, c.IsDataHours(nyTime(t, 5, 0, 0)))
	assert.True(t, c.IsDataHours(nyTime(t, 12, 0, 0)))
	assert.True(t, c.IsDataHours(nyTime(t, 18, 0, 0)))
	assert.False(t, c.IsDataHours(nyTime(t, 22, 0, 0)))

	assert.True(t, c.IsLearningHours(nyTime(t, 22, 0, 0)))
	sat := time.Date(2026, time.January, 10, 12, 0, 0, 0, nyLoc(t))
	assert.True(t, c.IsLearningHours(sat))
	assert.False(t, c.IsLearningHours(nyTime(t, 12, 0, 0)))

	assert.True(t, c.IsEODWindow(nyTime(t, 16, 30, 0)))
	assert.True(t, c.IsEODWindow(nyTime(t, 16, 25, 0)))
	assert.True(t, c.IsEODWindow(nyTime(t, 16, 35, 0)))
	assert.False(t, c.IsEODWindow(nyTime(t, 16, 40, 0)))
	assert.False(t, c.IsEODWindow(time.Date(2026, time.January, 10, 16, 30, 0, 0, nyLoc(t))))
}

func TestSameCalendarDay(t *testing.T) {
	c := NewInLocation(nyLoc(t))

	assert.True(t, c.SameCalendarDay(nyTime(t, 0, 1, 0), nyTime(t, 23, 59, 0)))
	next := time.Date(2026, time.January, 7, 0, 1, 0, 0, nyLoc(t))
	assert.False(t, c.SameCalendarDay(nyTime(t, 23, 59, 0), next))

	// 2026-01-07 01:00 UTC is still Jan 6 in New York.
	lateUTC := time.Date(2026, time.January, 7, 1, 0, 0, 0, time.UTC)
	assert.True(t, c.SameCalendarDay(nyTime(t, 12, 0, 0), lateUTC))
}
