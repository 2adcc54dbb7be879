package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", cfg.ExchangeTimezone)
	assert.Equal(t, 30, cfg.Scheduler.TickSeconds)
	assert.Equal(t, 5, cfg.Controller.LoopSeconds)
	assert.Equal(t, "SIM", cfg.Feed.Mode)
	assert.Equal(t, "SIM", cfg.Signals.Mode)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.Equal(t, 3, cfg.Risk.MaxDayTrades)
	assert.Equal(t, 75.0, cfg.Risk.MinConfidence)
	assert.Equal(t, []string{"SPY", "QQQ", "IWM", "TLT", "GLD"}, cfg.Signals.Symbols)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
controller:
  loop_seconds: 2
risk:
  max_positions: 10
  min_confidence: 90
signals:
  mode: NONE
  symbols: [SPY]
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Controller.LoopSeconds)
	assert.Equal(t, 10, cfg.Risk.MaxPositions)
	assert.Equal(t, 90.0, cfg.Risk.MinConfidence)
	assert.Equal(t, "NONE", cfg.Signals.Mode)
	assert.Equal(t, []string{"SPY"}, cfg.Signals.Symbols)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad feed mode", "feed:\n  mode: CSV\n", "feed.mode"},
		{"http requires base url", "feed:\n  mode: HTTP\n", "base_url"},
		{"bad signals mode", "signals:\n  mode: LIVE\n", "signals.mode"},
		{"negative loop", "controller:\n  loop_seconds: -1\n", "loop_seconds"},
		{"slippage range", "controller:\n  max_slippage_pct: 150\n", "max_slippage_pct"},
		{"risk bounds", "risk:\n  min_confidence: 150\n", "min_confidence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
