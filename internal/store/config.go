package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"odte-trader/internal/types"
)

type Config struct {
	ExchangeTimezone string `yaml:"exchange_timezone"`

	Scheduler struct {
		TickSeconds        int `yaml:"tick_seconds"`
		TaskTimeoutSeconds int `yaml:"task_timeout_seconds"`
	} `yaml:"scheduler"`

	Controller struct {
		LoopSeconds           int     `yaml:"loop_seconds"`
		ErrorBackoffSeconds   int     `yaml:"error_backoff_seconds"`
		SignalQueueSize       int     `yaml:"signal_queue_size"`
		SignalHistorySize     int     `yaml:"signal_history_size"`
		BasePositionSize      int     `yaml:"base_position_size"`
		MaxSlippagePct        float64 `yaml:"max_slippage_pct"`
		TimeExitWindowMinutes int     `yaml:"time_exit_window_minutes"`
	} `yaml:"controller"`

	Risk         types.RiskParams      `yaml:"risk"`
	Capabilities types.CapabilityFlags `yaml:"capabilities"`

	Feed struct {
		Mode               string `yaml:"mode"` // SIM or HTTP
		BaseURL            string `yaml:"base_url"`
		RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
		TimeoutSeconds     int    `yaml:"timeout_seconds"`
	} `yaml:"feed"`

	Signals struct {
		Mode            string   `yaml:"mode"` // SIM or NONE
		IntervalSeconds int      `yaml:"interval_seconds"`
		Symbols         []string `yaml:"symbols"`
	} `yaml:"signals"`

	Ledger struct {
		Path       string `yaml:"path"`
		JournalDir string `yaml:"journal_dir"`
	} `yaml:"ledger"`

	EOD struct {
		Dir string `yaml:"dir"`
	} `yaml:"eod"`

	Server struct {
		Addr           string `yaml:"addr"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
	} `yaml:"server"`
}

func (c *Config) Validate() error {
	if c.Feed.Mode != "SIM" && c.Feed.Mode != "HTTP" {
		return fmt.Errorf("invalid feed.mode '%s': must be 'SIM' or 'HTTP'", c.Feed.Mode)
	}
	if c.Feed.Mode == "HTTP" && c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required when feed.mode is HTTP")
	}
	if c.Signals.Mode != "SIM" && c.Signals.Mode != "NONE" {
		return fmt.Errorf("invalid signals.mode '%s': must be 'SIM' or 'NONE'", c.Signals.Mode)
	}
	if c.Controller.LoopSeconds <= 0 {
		return fmt.Errorf("controller.loop_seconds must be positive, got %d", c.Controller.LoopSeconds)
	}
	if c.Controller.MaxSlippagePct < 0 || c.Controller.MaxSlippagePct > 100 {
		return fmt.Errorf("controller.max_slippage_pct must be between 0-100, got %.2f", c.Controller.MaxSlippagePct)
	}
	if err := types.ValidateRiskParams(c.Risk); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.ExchangeTimezone == "" {
		c.ExchangeTimezone = "America/New_York"
	}
	if c.Scheduler.TickSeconds == 0 {
		c.Scheduler.TickSeconds = 30
	}
	if c.Scheduler.TaskTimeoutSeconds == 0 {
		c.Scheduler.TaskTimeoutSeconds = 60
	}
	if c.Controller.LoopSeconds == 0 {
		c.Controller.LoopSeconds = 5
	}
	if c.Controller.ErrorBackoffSeconds == 0 {
		c.Controller.ErrorBackoffSeconds = 10
	}
	if c.Controller.SignalQueueSize == 0 {
		c.Controller.SignalQueueSize = 64
	}
	if c.Controller.SignalHistorySize == 0 {
		c.Controller.SignalHistorySize = 50
	}
	if c.Controller.BasePositionSize == 0 {
		c.Controller.BasePositionSize = 5
	}
	if c.Controller.MaxSlippagePct == 0 {
		c.Controller.MaxSlippagePct = 5.0
	}
	if c.Controller.TimeExitWindowMinutes == 0 {
		c.Controller.TimeExitWindowMinutes = 30
	}
	if c.Risk.MaxPositions == 0 {
		c.Risk.MaxPositions = 5
	}
	if c.Risk.MaxDayTrades == 0 {
		c.Risk.MaxDayTrades = 3
	}
	if c.Risk.MaxRiskPerTradePct == 0 {
		c.Risk.MaxRiskPerTradePct = 2.0
	}
	if c.Risk.StopLossPct == 0 {
		c.Risk.StopLossPct = 15
	}
	if c.Risk.TakeProfitPct == 0 {
		c.Risk.TakeProfitPct = 25
	}
	if c.Risk.MinConfidence == 0 {
		c.Risk.MinConfidence = 75
	}
	if c.Feed.Mode == "" {
		c.Feed.Mode = "SIM"
	}
	if c.Feed.RateLimitPerMinute == 0 {
		c.Feed.RateLimitPerMinute = 60
	}
	if c.Feed.TimeoutSeconds == 0 {
		c.Feed.TimeoutSeconds = 10
	}
	if c.Signals.Mode == "" {
		c.Signals.Mode = "SIM"
	}
	if c.Signals.IntervalSeconds == 0 {
		c.Signals.IntervalSeconds = 120
	}
	if len(c.Signals.Symbols) == 0 {
		c.Signals.Symbols = []string{"SPY", "QQQ", "IWM", "TLT", "GLD"}
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "data/trades.db"
	}
	if c.Ledger.JournalDir == "" {
		c.Ledger.JournalDir = "logs"
	}
	if c.EOD.Dir == "" {
		c.EOD.Dir = "logs/eod"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}
