package sched

import (
	"context"
	"time"

	"odte-trader/internal/interfaces"
	"odte-trader/internal/types"
)

// Eligibility names the session window a task is allowed to run in.
type Eligibility string

const (
	DuringPreMarket     Eligibility = "pre_market"
	DuringTradingHours  Eligibility = "trading_hours"
	DuringDataHours     Eligibility = "data_hours"
	DuringLearningHours Eligibility = "learning_hours"
	DuringWeekend       Eligibility = "weekend"
	DuringEndOfDay      Eligibility = "end_of_day"
)

// Frequency gates how often an eligible task fires.
type Frequency struct {
	kind  freqKind
	every time.Duration
}

type freqKind int

const (
	freqContinuous freqKind = iota
	freqDaily
	freqWeekly
	freqInterval
)

// Continuous fires on every tick the task is eligible.
func Continuous() Frequency { return Frequency{kind: freqContinuous} }

// OncePerCalendarDay fires at most once per exchange-local calendar day.
func OncePerCalendarDay() Frequency { return Frequency{kind: freqDaily} }

// OncePerWeek fires at most once per ISO week, exchange-local.
func OncePerWeek() Frequency { return Frequency{kind: freqWeekly} }

// EveryNMinutes fires when at least n minutes have passed since the last run.
func EveryNMinutes(n int) Frequency {
	return Frequency{kind: freqInterval, every: time.Duration(n) * time.Minute}
}

// EveryNHours fires when at least n hours have passed since the last run.
func EveryNHours(n int) Frequency {
	return Frequency{kind: freqInterval, every: time.Duration(n) * time.Hour}
}

func (f Frequency) String() string {
	switch f.kind {
	case freqDaily:
		return "once_per_day"
	case freqWeekly:
		return "once_per_week"
	case freqInterval:
		return "every_" + f.every.String()
	default:
		return "continuous"
	}
}

// due reports whether a task with this frequency should fire now given its
// last run time. A zero lastRun is always due.
func (f Frequency) due(clock interfaces.SessionClock, lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	switch f.kind {
	case freqContinuous:
		return true
	case freqDaily:
		return !clock.SameCalendarDay(lastRun, now)
	case freqWeekly:
		loc := clock.Location()
		ly, lw := lastRun.In(loc).ISOWeek()
		ny, nw := now.In(loc).ISOWeek()
		return ly != ny || lw != nw
	case freqInterval:
		return now.Sub(lastRun) >= f.every
	}
	return false
}

// Handler does the task's actual work. A non-nil error marks the run Failed;
// the scheduler and its other tasks are unaffected either way.
type Handler func(ctx context.Context) error

// Task is a named unit of scheduled work. Mutable fields are owned by the
// scheduler and guarded by its lock.
type Task struct {
	Name        string
	Eligibility Eligibility
	Frequency   Frequency
	Handler     Handler

	enabled     bool
	running     bool
	lastRun     time.Time
	lastOutcome Outcome
	runCount    int
}

// NewTask builds an enabled task.
func NewTask(name string, elig Eligibility, freq Frequency, h Handler) *Task {
	return &Task{Name: name, Eligibility: elig, Frequency: freq, Handler: h, enabled: true}
}

// eligibleAt reports whether the session window admits this task at now.
func (t *Task) eligibleAt(clock interfaces.SessionClock, now time.Time) bool {
	switch t.Eligibility {
	case DuringPreMarket:
		return clock.PhaseAt(now) == types.PhasePreMarket
	case DuringTradingHours:
		return clock.PhaseAt(now) == types.PhaseRegular
	case DuringDataHours:
		return clock.IsDataHours(now)
	case DuringLearningHours:
		return clock.IsLearningHours(now)
	case DuringWeekend:
		return clock.PhaseAt(now) == types.PhaseWeekend
	case DuringEndOfDay:
		return clock.IsEODWindow(now)
	}
	return false
}

// Outcome classifies one task execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
	OutcomeSkipped Outcome = "skipped"
)

// ExecutionRecord is one entry in the bounded execution history.
type ExecutionRecord struct {
	Task       string    `json:"task"`
	Start      time.Time `json:"start"`
	DurationMs int64     `json:"duration_ms"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// TaskStatus is a read-only view of one task for status surfaces.
type TaskStatus struct {
	Name        string      `json:"name"`
	Eligibility Eligibility `json:"eligibility"`
	Frequency   string      `json:"frequency"`
	Enabled     bool        `json:"enabled"`
	Running     bool        `json:"running"`
	LastRun     time.Time   `json:"last_run,omitempty"`
	LastOutcome Outcome     `json:"last_outcome,omitempty"`
	RunCount    int         `json:"run_count"`
}

// Snapshot is a consistent view of the scheduler for status surfaces.
type Snapshot struct {
	IsRunning          bool               `json:"is_running"`
	CurrentPhase       types.TradingPhase `json:"current_phase"`
	TasksExecutedToday int                `json:"tasks_executed_today"`
	Tasks              []TaskStatus       `json:"tasks"`
	RecentHistory      []ExecutionRecord  `json:"recent_history"`
}
