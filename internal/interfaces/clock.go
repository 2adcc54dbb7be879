package interfaces

import (
	"time"

	"odte-trader/internal/types"
)

// SessionClock classifies timestamps into trading phases and computes
// durations to phase boundaries. Implementations must be pure and total.
type SessionClock interface {
	Location() *time.Location
	PhaseAt(t time.Time) types.TradingPhase
	TimeToOpen(t time.Time) (time.Duration, bool)
	TimeToClose(t time.Time) (time.Duration, bool)
	IsDataHours(t time.Time) bool
	IsLearningHours(t time.Time) bool
	IsEODWindow(t time.Time) bool
	SameCalendarDay(a, b time.Time) bool
}
