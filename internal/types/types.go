package types

import "time"

// TradingPhase classifies wall-clock time against the exchange calendar.
// It is derived, never persisted; recompute from a timestamp on every query.
type TradingPhase string

const (
	PhasePreMarket  TradingPhase = "pre_market"
	PhaseRegular    TradingPhase = "regular"
	PhaseAfterHours TradingPhase = "after_hours"
	PhaseClosed     TradingPhase = "closed"
	PhaseWeekend    TradingPhase = "weekend"
)

// AutomationStatus is the controller's top-level state machine.
type AutomationStatus string

const (
	StatusActive        AutomationStatus = "active"
	StatusPaused        AutomationStatus = "paused"
	StatusEmergencyStop AutomationStatus = "emergency_stop"
	StatusDisabled      AutomationStatus = "disabled"
)

type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

type PositionStatus string

const (
	PositionPending PositionStatus = "pending"
	PositionOpen    PositionStatus = "open"
	PositionClosing PositionStatus = "closing"
	PositionClosed  PositionStatus = "closed"
)

type ExitReason string

const (
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitTime        ExitReason = "TIME_EXIT"
	ExitManualClose ExitReason = "MANUAL_CLOSE"
	ExitEmergency   ExitReason = "EMERGENCY"
)

// Expiry0DTE marks an option expiring the same trading day it is traded.
const Expiry0DTE = "0DTE"

// Signal is an externally produced trade candidate. The core treats it as
// opaque read-only input; arrival order is queue order.
type Signal struct {
	Symbol         string     `json:"symbol"`
	OptionType     OptionType `json:"option_type"`
	Strike         float64    `json:"strike"`
	Expiry         string     `json:"expiry"`
	Confidence     float64    `json:"confidence"` // 0..100
	EstimatedEntry float64    `json:"estimated_entry"`
	Strategy       string     `json:"strategy"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Position is owned exclusively by the trading controller. It mutates every
// controller tick while open and becomes immutable once closed.
type Position struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	OptionType      OptionType     `json:"option_type"`
	Strike          float64        `json:"strike"`
	Expiry          string         `json:"expiry"`
	Quantity        int            `json:"quantity"`
	EntryPrice      float64        `json:"entry_price"`
	CurrentPrice    float64        `json:"current_price"`
	StopLossPrice   float64        `json:"stop_loss_price"`
	TakeProfitPrice float64        `json:"take_profit_price"`
	Status          PositionStatus `json:"status"`
	Strategy        string         `json:"strategy"`
	Confidence      float64        `json:"confidence"`
	EntryTime       time.Time      `json:"entry_time"`
	ExitTime        time.Time      `json:"exit_time,omitempty"`
	ExitPrice       float64        `json:"exit_price,omitempty"`
	ExitReason      ExitReason     `json:"exit_reason,omitempty"`
	PnL             float64        `json:"pnl"`
	PnLPercent      float64        `json:"pnl_percent"`
}

// RiskParams bound what the automatic loop is allowed to do. Validated on
// every update; an invalid update is rejected without mutating state.
type RiskParams struct {
	MaxPositions       int     `yaml:"max_positions" json:"max_positions" validate:"min=1"`
	MaxDayTrades       int     `yaml:"max_day_trades" json:"max_day_trades" validate:"min=1"`
	MaxRiskPerTradePct float64 `yaml:"max_risk_per_trade_pct" json:"max_risk_per_trade_pct" validate:"gte=0,lte=100"`
	StopLossPct        float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gte=0,lte=100"`
	TakeProfitPct      float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gte=0,lte=100"`
	MinConfidence      float64 `yaml:"min_confidence" json:"min_confidence" validate:"gte=0,lte=100"`
}

// CapabilityFlags gate individual automation subsystems independently of the
// top-level status.
type CapabilityFlags struct {
	DataCollection   bool `yaml:"data_collection" json:"data_collection"`
	SignalGeneration bool `yaml:"signal_generation" json:"signal_generation"`
	TradeExecution   bool `yaml:"trade_execution" json:"trade_execution"`
	RiskManagement   bool `yaml:"risk_management" json:"risk_management"`
}

// Performance aggregates recomputed at the end of every controller iteration.
type Performance struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	DailyPnL      float64 `json:"daily_pnl"`
}

// StatusSnapshot is a consistent read of controller state, taken through the
// controller mailbox so it never observes a state mid-transition.
type StatusSnapshot struct {
	AutomationStatus  AutomationStatus `json:"automation_status"`
	MasterSwitch      bool             `json:"master_switch"`
	Capabilities      CapabilityFlags  `json:"capabilities"`
	RiskParams        RiskParams       `json:"risk_params"`
	Phase             TradingPhase     `json:"phase"`
	OpenPositionCount int              `json:"open_position_count"`
	DayTradesUsed     int              `json:"day_trades_used"`
	QueueDepth        int              `json:"queue_depth"`
	Performance       Performance      `json:"performance"`
}
