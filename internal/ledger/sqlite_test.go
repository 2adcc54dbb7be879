package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odte-trader/internal/types"
)

func testLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLite(filepath.Join(t.TempDir(), "data", "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func closedPosition(id, symbol string, exitTime time.Time, pnl float64) types.Position {
	return types.Position{
		ID:         id,
		Symbol:     symbol,
		OptionType: types.Call,
		Strike:     445,
		Expiry:     types.Expiry0DTE,
		Quantity:   4,
		EntryPrice: 2.00,
		ExitPrice:  2.00 + pnl/4,
		Status:     types.PositionClosed,
		Strategy:   "Momentum Breakout",
		Confidence: 80,
		EntryTime:  exitTime.Add(-time.Hour),
		ExitTime:   exitTime,
		ExitReason: types.ExitTakeProfit,
		PnL:        pnl,
	}
}

func TestRecordAndReadBack(t *testing.T) {
	l := testLedger(t)
	day := time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.RecordClosedPosition(closedPosition("p1", "SPY", day.Add(14*time.Hour), 2.2)))
	require.NoError(t, l.RecordClosedPosition(closedPosition("p2", "QQQ", day.Add(15*time.Hour), -1.4)))
	// A position from the next day must not appear.
	require.NoError(t, l.RecordClosedPosition(closedPosition("p3", "SPY", day.Add(38*time.Hour), 1.0)))

	got, err := l.ClosedPositionsOn(day)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "p1", got[0].ID, "ordered by exit time")
	assert.Equal(t, "SPY", got[0].Symbol)
	assert.Equal(t, types.Call, got[0].OptionType)
	assert.Equal(t, types.ExitTakeProfit, got[0].ExitReason)
	assert.Equal(t, types.PositionClosed, got[0].Status)
	assert.InDelta(t, 2.2, got[0].PnL, 1e-9)
	assert.Equal(t, "p2", got[1].ID)
}

func TestRecordIsIdempotentPerPosition(t *testing.T) {
	l := testLedger(t)
	day := time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)

	p := closedPosition("p1", "SPY", day.Add(14*time.Hour), 2.2)
	require.NoError(t, l.RecordClosedPosition(p))
	require.NoError(t, l.RecordClosedPosition(p))

	got, err := l.ClosedPositionsOn(day)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSessionCounters(t *testing.T) {
	l := testLedger(t)
	day := time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.RecordSessionCounters(day, 3, 12.5))
	// Same day overwrites rather than duplicating.
	require.NoError(t, l.RecordSessionCounters(day, 4, 15.0))
}

func TestEmptyDay(t *testing.T) {
	l := testLedger(t)
	got, err := l.ClosedPositionsOn(time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)
}
