// Package marketclock classifies wall-clock time into trading phases against
// the exchange calendar. All computation is done in the exchange's local
// timezone regardless of the caller's; there is no state and no failure mode.
package marketclock

import (
	"time"

	"odte-trader/internal/types"
)

// Session boundaries in exchange-local minutes of day. Comparisons are
// half-open [start,end): 09:30:00 exactly is Regular, not PreMarket.
const (
	preMarketStartMin = 4 * 60     // 04:00
	regularStartMin   = 9*60 + 30  // 09:30
	regularEndMin     = 16 * 60    // 16:00
	afterHoursEndMin  = 20 * 60    // 20:00
	eodReportMin      = 16*60 + 30 // 16:30
	eodWindowMinutes  = 5          // report window around 16:30
)

type Clock struct {
	loc *time.Location
}

// New builds a clock for the given exchange timezone, e.g. "America/New_York".
func New(tz string) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc}, nil
}

// NewInLocation builds a clock with an already-loaded location. Handy in tests.
func NewInLocation(loc *time.Location) *Clock {
	return &Clock{loc: loc}
}

// Location returns the exchange timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// PhaseAt returns the trading phase at t. Exactly one phase holds for any
// timestamp; Saturday and Sunday are Weekend at any time of day.
func (c *Clock) PhaseAt(t time.Time) types.TradingPhase {
	local := t.In(c.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return types.PhaseWeekend
	}
	switch m := minuteOfDay(local); {
	case m >= preMarketStartMin && m < regularStartMin:
		return types.PhasePreMarket
	case m >= regularStartMin && m < regularEndMin:
		return types.PhaseRegular
	case m >= regularEndMin && m < afterHoursEndMin:
		return types.PhaseAfterHours
	default:
		return types.PhaseClosed
	}
}

// TimeToOpen returns the duration until the next Regular open. ok is false
// iff the market is already in Regular hours. Friday evening resolves to
// Monday 09:30, never Saturday.
func (c *Clock) TimeToOpen(t time.Time) (time.Duration, bool) {
	local := t.In(c.loc)
	if c.PhaseAt(t) == types.PhaseRegular {
		return 0, false
	}

	day := local
	if minuteOfDay(local) >= regularStartMin {
		day = day.AddDate(0, 0, 1)
	}
	for wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday; wd = day.Weekday() {
		day = day.AddDate(0, 0, 1)
	}
	open := time.Date(day.Year(), day.Month(), day.Day(), regularStartMin/60, regularStartMin%60, 0, 0, c.loc)
	return open.Sub(local), true
}

// TimeToClose returns the duration until today's Regular close. ok is true
// iff the market is currently in Regular hours.
func (c *Clock) TimeToClose(t time.Time) (time.Duration, bool) {
	local := t.In(c.loc)
	if c.PhaseAt(t) != types.PhaseRegular {
		return 0, false
	}
	close := time.Date(local.Year(), local.Month(), local.Day(), regularEndMin/60, regularEndMin%60, 0, 0, c.loc)
	return close.Sub(local), true
}

// IsDataHours reports whether market data collection should run:
// PreMarket, Regular, or AfterHours.
func (c *Clock) IsDataHours(t time.Time) bool {
	switch c.PhaseAt(t) {
	case types.PhasePreMarket, types.PhaseRegular, types.PhaseAfterHours:
		return true
	}
	return false
}

// IsLearningHours reports whether model training should run: Closed or Weekend.
func (c *Clock) IsLearningHours(t time.Time) bool {
	switch c.PhaseAt(t) {
	case types.PhaseClosed, types.PhaseWeekend:
		return true
	}
	return false
}

// IsEODWindow reports whether t falls in the end-of-day report window:
// a weekday, within five minutes of 16:30 exchange time.
func (c *Clock) IsEODWindow(t time.Time) bool {
	local := t.In(c.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	diff := minuteOfDay(local) - eodReportMin
	if diff < 0 {
		diff = -diff
	}
	return diff <= eodWindowMinutes
}

// SameCalendarDay reports whether a and b fall on the same exchange-local
// calendar date. Used by once-per-day task gating.
func (c *Clock) SameCalendarDay(a, b time.Time) bool {
	la, lb := a.In(c.loc), b.In(c.loc)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
