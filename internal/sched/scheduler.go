// Package sched runs the periodic task scheduler: a single ticking loop that
// fires registered tasks when their session window and frequency admit them,
// and session-transition hooks when the trading phase changes.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"odte-trader/internal/interfaces"
	"odte-trader/internal/logger"
	"odte-trader/internal/metrics"
	"odte-trader/internal/types"
)

const historyCap = 100

// TransitionHook observes a session phase change. Hooks run synchronously on
// the scheduler goroutine, in registration order, before any task fires.
type TransitionHook func(ctx context.Context, from, to types.TradingPhase)

type Config struct {
	TickInterval time.Duration
	TaskTimeout  time.Duration
}

func (c *Config) withDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = 60 * time.Second
	}
}

type Scheduler struct {
	cfg   Config
	clock interfaces.SessionClock

	mu           sync.Mutex
	running      bool
	tasks        []*Task
	byName       map[string]*Task
	hooks        []TransitionHook
	phaseKnown   bool
	currentPhase types.TradingPhase
	execsToday   int
	execsDay     time.Time
	history      []ExecutionRecord
}

func New(cfg Config, clock interfaces.SessionClock) *Scheduler {
	cfg.withDefaults()
	return &Scheduler{
		cfg:    cfg,
		clock:  clock,
		byName: map[string]*Task{},
	}
}

// Register adds a task. Names must be unique; registration order is
// execution order within a tick.
func (s *Scheduler) Register(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byName[t.Name]; dup {
		return fmt.Errorf("task %q already registered", t.Name)
	}
	s.tasks = append(s.tasks, t)
	s.byName[t.Name] = t
	return nil
}

// OnTransition registers a session-transition hook.
func (s *Scheduler) OnTransition(h TransitionHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// EnableTask re-enables a disabled task.
func (s *Scheduler) EnableTask(name string) error { return s.setEnabled(name, true) }

// DisableTask stops a task from firing until re-enabled. Its lastRun and
// history are preserved.
func (s *Scheduler) DisableTask(name string) error { return s.setEnabled(name, false) }

func (s *Scheduler) setEnabled(name string, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byName[name]
	if !ok {
		return &types.NotFoundError{Kind: "task", ID: name}
	}
	t.enabled = v
	return nil
}

// Run ticks until ctx is cancelled. The last started tick completes before
// Run returns; abandoned timed-out handlers may still be draining.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick runs one scheduling pass at the given instant: phase hooks first, then
// every enabled, eligible, due task in registration order. Tasks run inline
// on the caller's goroutine; a timed-out handler is abandoned and its task
// stays marked running until the handler returns.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	metrics.SchedulerTicks.Inc()

	s.fireTransition(ctx, now)
	s.rollExecCounter(now)

	for _, t := range s.dueTasks(now) {
		s.execute(ctx, t, now)
	}
}

// dueTasks selects under lock; execution happens outside it.
func (s *Scheduler) dueTasks(now time.Time) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*Task
	for _, t := range s.tasks {
		if !t.enabled || !t.eligibleAt(s.clock, now) {
			continue
		}
		if !t.Frequency.due(s.clock, t.lastRun, now) {
			continue
		}
		due = append(due, t)
	}
	return due
}

func (s *Scheduler) fireTransition(ctx context.Context, now time.Time) {
	phase := s.clock.PhaseAt(now)

	s.mu.Lock()
	changed := !s.phaseKnown || phase != s.currentPhase
	from := s.currentPhase
	if !s.phaseKnown {
		from = ""
	}
	s.currentPhase = phase
	s.phaseKnown = true
	hooks := s.hooks
	s.mu.Unlock()

	if !changed {
		return
	}
	logger.Info(ctx, "Session transition", "from", string(from), "to", string(phase))
	for _, h := range hooks {
		h(ctx, from, phase)
	}
}

func (s *Scheduler) rollExecCounter(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execsDay.IsZero() || !s.clock.SameCalendarDay(s.execsDay, now) {
		s.execsToday = 0
		s.execsDay = now
	}
}

// execute runs one task with the per-task timeout. An overrunning previous
// invocation turns this one into a Skipped record instead of overlapping it.
func (s *Scheduler) execute(ctx context.Context, t *Task, now time.Time) {
	s.mu.Lock()
	if t.running {
		s.mu.Unlock()
		s.record(t, ExecutionRecord{Task: t.Name, Start: now, Outcome: OutcomeSkipped, Error: "previous run still in progress"})
		logger.Warn(ctx, "Task skipped, previous run still in progress", "task", t.Name)
		return
	}
	t.running = true
	t.lastRun = now
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	done := make(chan error, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
			s.mu.Lock()
			t.running = false
			s.mu.Unlock()
		}()
		done <- t.Handler(runCtx)
	}()

	var rec ExecutionRecord
	select {
	case err := <-done:
		cancel()
		rec = ExecutionRecord{Task: t.Name, Start: now, DurationMs: time.Since(start).Milliseconds()}
		if err != nil {
			rec.Outcome = OutcomeFailure
			rec.Error = (&types.TaskHandlerError{Task: t.Name, Err: err}).Error()
		} else {
			rec.Outcome = OutcomeSuccess
		}
	case <-runCtx.Done():
		cancel()
		// The handler goroutine is abandoned; the running guard keeps the
		// task from firing again until it actually returns.
		rec = ExecutionRecord{
			Task:       t.Name,
			Start:      now,
			DurationMs: time.Since(start).Milliseconds(),
			Outcome:    OutcomeTimeout,
			Error:      (&types.TaskHandlerError{Task: t.Name, TimedOut: true, Err: runCtx.Err()}).Error(),
		}
	}

	s.record(t, rec)
	logger.Task(ctx, t.Name, string(rec.Outcome), rec.DurationMs)
}

func (s *Scheduler) record(t *Task, rec ExecutionRecord) {
	metrics.TaskExecutions.WithLabelValues(rec.Task, string(rec.Outcome)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	t.lastOutcome = rec.Outcome
	if rec.Outcome != OutcomeSkipped {
		t.runCount++
		s.execsToday++
	}
	s.history = append(s.history, rec)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
}

// Status returns a consistent snapshot with up to limit most recent history
// records (at most 10).
func (s *Scheduler) Status(limit int) Snapshot {
	if limit <= 0 || limit > 10 {
		limit = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		IsRunning:          s.running,
		CurrentPhase:       s.currentPhase,
		TasksExecutedToday: s.execsToday,
	}
	for _, t := range s.tasks {
		snap.Tasks = append(snap.Tasks, TaskStatus{
			Name:        t.Name,
			Eligibility: t.Eligibility,
			Frequency:   t.Frequency.String(),
			Enabled:     t.enabled,
			Running:     t.running,
			LastRun:     t.lastRun,
			LastOutcome: t.lastOutcome,
			RunCount:    t.runCount,
		})
	}
	if n := len(s.history); n > 0 {
		if limit > n {
			limit = n
		}
		snap.RecentHistory = make([]ExecutionRecord, limit)
		copy(snap.RecentHistory, s.history[n-limit:])
	}
	return snap
}
