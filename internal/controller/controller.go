// Package controller owns the automation state machine, the position
// lifecycle, and the risk gates. All mutable state lives on a single actor
// goroutine; manual commands, scheduler hooks, and snapshot reads are
// messages on its mailbox, so no two mutations ever interleave.
package controller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"odte-trader/internal/interfaces"
	"odte-trader/internal/logger"
	"odte-trader/internal/metrics"
	"odte-trader/internal/types"
)

type Config struct {
	LoopInterval      time.Duration
	ErrorBackoff      time.Duration
	SignalQueueSize   int
	SignalHistorySize int
	BasePositionSize  int
	TimeExitWindow    time.Duration
	ClosedRetention   int
}

func (c *Config) withDefaults() {
	if c.LoopInterval == 0 {
		c.LoopInterval = 5 * time.Second
	}
	if c.ErrorBackoff == 0 {
		c.ErrorBackoff = 10 * time.Second
	}
	if c.SignalQueueSize == 0 {
		c.SignalQueueSize = 64
	}
	if c.SignalHistorySize == 0 {
		c.SignalHistorySize = 50
	}
	if c.BasePositionSize == 0 {
		c.BasePositionSize = 5
	}
	if c.TimeExitWindow == 0 {
		c.TimeExitWindow = 30 * time.Minute
	}
	if c.ClosedRetention == 0 {
		c.ClosedRetention = 100
	}
}

// state is touched only by the actor goroutine.
type state struct {
	status     types.AutomationStatus
	master     bool
	caps       types.CapabilityFlags
	risk       types.RiskParams
	queue      []types.Signal
	open       []*types.Position
	closed     []types.Position
	sigHistory []types.Signal
	dayTrades  int
	dailyPnL   float64
	sessionDay time.Time

	totalTrades int
	wins        int
	totalPnL    float64

	lastIterErrored bool
}

type Controller struct {
	cfg    Config
	clock  interfaces.SessionClock
	feed   interfaces.PriceFeed
	ledger interfaces.Ledger
	source interfaces.SignalSource
	filler Filler

	cmds  chan *command
	estop atomic.Bool
	done  chan struct{}

	st state
}

// New builds a controller in the Active state with the given risk parameters
// and capability flags. source may be nil when signals are pushed externally.
func New(cfg Config, clock interfaces.SessionClock, feed interfaces.PriceFeed, ledg interfaces.Ledger, source interfaces.SignalSource, risk types.RiskParams, caps types.CapabilityFlags, filler Filler) *Controller {
	cfg.withDefaults()
	if filler == nil {
		filler = SlippageFiller{MaxSlippagePct: 5.0}
	}
	return &Controller{
		cfg:    cfg,
		clock:  clock,
		feed:   feed,
		ledger: ledg,
		source: source,
		filler: filler,
		cmds:   make(chan *command, 32),
		done:   make(chan struct{}),
		st: state{
			status: types.StatusActive,
			master: true,
			caps:   caps,
			risk:   risk,
		},
	}
}

type cmdKind int

const (
	cmdPause cmdKind = iota
	cmdResume
	cmdEmergencyStop
	cmdClearEmergencyStop
	cmdSetMaster
	cmdUpdateRisk
	cmdUpdateCapabilities
	cmdManualClose
	cmdEnqueueSignal
	cmdResetSession
	cmdStatus
	cmdPositions
	cmdRecentSignals
	cmdStep
	cmdShutdown
)

var cmdNames = map[cmdKind]string{
	cmdPause:              "pause",
	cmdResume:             "resume",
	cmdEmergencyStop:      "emergency_stop",
	cmdClearEmergencyStop: "clear_emergency_stop",
	cmdSetMaster:          "set_master_switch",
	cmdUpdateRisk:         "update_risk_params",
	cmdUpdateCapabilities: "update_capabilities",
	cmdManualClose:        "manual_close",
	cmdEnqueueSignal:      "enqueue_signal",
	cmdResetSession:       "reset_session",
	cmdStatus:             "status",
	cmdPositions:          "positions",
	cmdRecentSignals:      "recent_signals",
	cmdStep:               "step",
	cmdShutdown:           "shutdown",
}

type cmdResult struct {
	err       error
	status    types.StatusSnapshot
	positions []types.Position
	signals   []types.Signal
}

type command struct {
	id     string
	kind   cmdKind
	flag   bool
	posID  string
	risk   types.RiskParams
	caps   types.CapabilityFlags
	signal types.Signal
	limit  int
	at     time.Time
	reply  chan cmdResult
}

// Run starts the actor loop: the mailbox, the signal intake, and the cadence
// timer. It blocks until ctx is cancelled; the final iteration always
// completes before it returns (cooperative cancellation).
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)

	timer := time.NewTimer(c.cfg.LoopInterval)
	defer timer.Stop()

	var src <-chan types.Signal
	if c.source != nil {
		src = c.source.Signals()
	}

	for {
		// Pending commands win over the timer.
		select {
		case cmd := <-c.cmds:
			c.handle(ctx, cmd)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			c.st.status = types.StatusDisabled
			return
		case cmd := <-c.cmds:
			c.handle(ctx, cmd)
		case sig, ok := <-src:
			if !ok {
				src = nil
				continue
			}
			c.enqueue(sig)
		case now := <-timer.C:
			c.iterate(ctx, now)
			timer.Reset(c.nextInterval())
		}
	}
}

// Done is closed when the actor loop has exited.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) nextInterval() time.Duration {
	if c.st.lastIterErrored {
		return c.cfg.ErrorBackoff
	}
	return c.cfg.LoopInterval
}

func (c *Controller) send(cmd *command) cmdResult {
	cmd.id = uuid.New().String()
	cmd.reply = make(chan cmdResult, 1)
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return cmdResult{err: &types.StateTransitionError{Op: cmdNames[cmd.kind], From: types.StatusDisabled}}
	}
	select {
	case res := <-cmd.reply:
		return res
	case <-c.done:
		return cmdResult{err: &types.StateTransitionError{Op: cmdNames[cmd.kind], From: types.StatusDisabled}}
	}
}

// Pause moves Active to Paused. No-op under EmergencyStop or Disabled.
func (c *Controller) Pause() error {
	return c.send(&command{kind: cmdPause}).err
}

// Resume moves Paused to Active only; any other state is a StateTransitionError.
func (c *Controller) Resume() error {
	return c.send(&command{kind: cmdResume}).err
}

// EmergencyStop halts trading from any state, always succeeds, and forces the
// master switch off. The flag is also observed at every iteration step
// boundary so it takes effect within one step's latency.
func (c *Controller) EmergencyStop() {
	c.estop.Store(true)
	c.send(&command{kind: cmdEmergencyStop})
}

// ClearEmergencyStop leaves EmergencyStop into Paused. An operator must then
// resume explicitly; clearing never re-enables trading by itself.
func (c *Controller) ClearEmergencyStop() error {
	return c.send(&command{kind: cmdClearEmergencyStop}).err
}

// SetMasterSwitch flips the master gate. Turning it on while Paused also
// resumes, matching the manual-override semantics.
func (c *Controller) SetMasterSwitch(v bool) {
	c.send(&command{kind: cmdSetMaster, flag: v})
}

// UpdateRiskParams validates and atomically replaces the risk parameters.
func (c *Controller) UpdateRiskParams(p types.RiskParams) error {
	return c.send(&command{kind: cmdUpdateRisk, risk: p}).err
}

// UpdateCapabilities replaces the capability flags.
func (c *Controller) UpdateCapabilities(f types.CapabilityFlags) {
	c.send(&command{kind: cmdUpdateCapabilities, caps: f})
}

// ManualClosePosition closes an open position immediately, independent of the
// loop cadence.
func (c *Controller) ManualClosePosition(id string) error {
	return c.send(&command{kind: cmdManualClose, posID: id}).err
}

// EnqueueSignal pushes a signal onto the pending queue (FIFO).
func (c *Controller) EnqueueSignal(sig types.Signal) {
	c.send(&command{kind: cmdEnqueueSignal, signal: sig})
}

// ResetSessionCounters starts a fresh session: the previous day's counters are
// reported to the ledger, then day trades and daily P&L reset to zero.
// Invoked by the scheduler's pre-market hook.
func (c *Controller) ResetSessionCounters() {
	c.send(&command{kind: cmdResetSession})
}

// Status returns a consistent snapshot, never a state mid-transition.
func (c *Controller) Status() types.StatusSnapshot {
	return c.send(&command{kind: cmdStatus}).status
}

// Positions returns open positions followed by recently closed ones.
func (c *Controller) Positions() []types.Position {
	return c.send(&command{kind: cmdPositions}).positions
}

// RecentSignals returns up to limit most recent signals seen by the queue.
func (c *Controller) RecentSignals(limit int) []types.Signal {
	return c.send(&command{kind: cmdRecentSignals, limit: limit}).signals
}

// StepNow runs one trade-loop iteration at the given instant, synchronously.
// The cadence timer is untouched; this exists for session hooks and tests.
func (c *Controller) StepNow(at time.Time) {
	c.send(&command{kind: cmdStep, at: at})
}

// Shutdown disables the loop. When liquidate is set, every open position is
// closed first with the Emergency exit reason.
func (c *Controller) Shutdown(liquidate bool) {
	c.send(&command{kind: cmdShutdown, flag: liquidate, at: time.Now()})
}

func (c *Controller) handle(ctx context.Context, cmd *command) {
	res := cmdResult{}

	switch cmd.kind {
	case cmdPause:
		if c.st.status == types.StatusActive {
			c.st.status = types.StatusPaused
			logger.Info(ctx, "Trading paused", "command_id", cmd.id)
		}
	case cmdResume:
		if c.st.status == types.StatusPaused {
			c.st.status = types.StatusActive
			logger.Info(ctx, "Trading resumed", "command_id", cmd.id)
		} else if c.st.status != types.StatusActive {
			res.err = &types.StateTransitionError{Op: "resume", From: c.st.status}
		}
	case cmdEmergencyStop:
		c.applyEmergencyStop(ctx)
	case cmdClearEmergencyStop:
		if c.st.status != types.StatusEmergencyStop {
			res.err = &types.StateTransitionError{Op: "clear_emergency_stop", From: c.st.status}
		} else {
			c.estop.Store(false)
			c.st.status = types.StatusPaused
			logger.Warn(ctx, "Emergency stop cleared; controller is paused", "command_id", cmd.id)
		}
	case cmdSetMaster:
		c.st.master = cmd.flag
		if cmd.flag && c.st.status == types.StatusPaused {
			c.st.status = types.StatusActive
		}
		logger.Info(ctx, "Master switch set", "enabled", cmd.flag, "command_id", cmd.id)
	case cmdUpdateRisk:
		if err := types.ValidateRiskParams(cmd.risk); err != nil {
			res.err = err
		} else {
			c.st.risk = cmd.risk
			logger.Info(ctx, "Risk parameters updated",
				"max_positions", cmd.risk.MaxPositions,
				"max_day_trades", cmd.risk.MaxDayTrades,
				"min_confidence", cmd.risk.MinConfidence,
				"command_id", cmd.id,
			)
		}
	case cmdUpdateCapabilities:
		c.st.caps = cmd.caps
	case cmdManualClose:
		res.err = c.manualClose(ctx, cmd.posID)
	case cmdEnqueueSignal:
		c.enqueue(cmd.signal)
	case cmdResetSession:
		c.rollSession(ctx, time.Now())
	case cmdStatus:
		res.status = c.snapshot()
	case cmdPositions:
		res.positions = c.positionsCopy()
	case cmdRecentSignals:
		res.signals = c.recentSignals(cmd.limit)
	case cmdStep:
		c.iterate(ctx, cmd.at)
	case cmdShutdown:
		if cmd.flag {
			c.closeAll(ctx, cmd.at, types.ExitEmergency)
		}
		c.st.status = types.StatusDisabled
		logger.Info(ctx, "Controller disabled", "command_id", cmd.id)
	}

	result := "ok"
	if res.err != nil {
		result = "error"
	}
	metrics.Commands.WithLabelValues(cmdNames[cmd.kind], result).Inc()

	if cmd.reply != nil {
		cmd.reply <- res
	}
}

func (c *Controller) applyEmergencyStop(ctx context.Context) {
	if c.st.status == types.StatusEmergencyStop {
		return
	}
	c.st.status = types.StatusEmergencyStop
	c.st.master = false
	logger.Risk(ctx, "EMERGENCY_STOP", "detail", "all trading halted, master switch forced off")
}

// checkEstop applies a pending emergency stop between iteration steps.
func (c *Controller) checkEstop(ctx context.Context) {
	if c.estop.Load() {
		c.applyEmergencyStop(ctx)
	}
}

// drainCommands gives queued manual commands priority over the next
// iteration step. A committed step is never preempted.
func (c *Controller) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-c.cmds:
			// Nested steps are not allowed mid-iteration.
			if cmd.kind == cmdStep {
				if cmd.reply != nil {
					cmd.reply <- cmdResult{}
				}
				continue
			}
			c.handle(ctx, cmd)
		default:
			return
		}
	}
}

func (c *Controller) enqueue(sig types.Signal) {
	if len(c.st.queue) >= c.cfg.SignalQueueSize {
		// Oldest pending signal gives way to the freshest view.
		c.st.queue = c.st.queue[1:]
		metrics.Signals.WithLabelValues("dropped").Inc()
	}
	c.st.queue = append(c.st.queue, sig)
	c.st.sigHistory = append(c.st.sigHistory, sig)
	if len(c.st.sigHistory) > c.cfg.SignalHistorySize {
		c.st.sigHistory = c.st.sigHistory[len(c.st.sigHistory)-c.cfg.SignalHistorySize:]
	}
	metrics.Signals.WithLabelValues("queued").Inc()
}

func (c *Controller) snapshot() types.StatusSnapshot {
	openCount := 0
	for _, p := range c.st.open {
		if p.Status == types.PositionOpen {
			openCount++
		}
	}
	return types.StatusSnapshot{
		AutomationStatus:  c.st.status,
		MasterSwitch:      c.st.master,
		Capabilities:      c.st.caps,
		RiskParams:        c.st.risk,
		Phase:             c.clock.PhaseAt(time.Now()),
		OpenPositionCount: openCount,
		DayTradesUsed:     c.st.dayTrades,
		QueueDepth:        len(c.st.queue),
		Performance:       c.performance(),
	}
}

func (c *Controller) performance() types.Performance {
	winRate := 0.0
	if c.st.totalTrades > 0 {
		winRate = float64(c.st.wins) / float64(c.st.totalTrades) * 100
	}
	return types.Performance{
		TotalTrades:   c.st.totalTrades,
		WinningTrades: c.st.wins,
		WinRate:       winRate,
		TotalPnL:      c.st.totalPnL,
		DailyPnL:      c.st.dailyPnL,
	}
}

func (c *Controller) positionsCopy() []types.Position {
	out := make([]types.Position, 0, len(c.st.open)+len(c.st.closed))
	for _, p := range c.st.open {
		out = append(out, *p)
	}
	out = append(out, c.st.closed...)
	return out
}

func (c *Controller) recentSignals(limit int) []types.Signal {
	if limit <= 0 || limit > len(c.st.sigHistory) {
		limit = len(c.st.sigHistory)
	}
	out := make([]types.Signal, limit)
	copy(out, c.st.sigHistory[len(c.st.sigHistory)-limit:])
	return out
}
