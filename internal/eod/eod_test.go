package eod

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odte-trader/internal/types"
)

type stubReader struct {
	positions []types.Position
	err       error
}

func (r *stubReader) ClosedPositionsOn(time.Time) ([]types.Position, error) {
	return r.positions, r.err
}

func day() time.Time {
	return time.Date(2026, time.January, 6, 16, 30, 0, 0, time.UTC)
}

func pos(symbol string, qty int, entry, exit, pnl float64) types.Position {
	return types.Position{
		Symbol:     symbol,
		OptionType: types.Call,
		Quantity:   qty,
		EntryPrice: entry,
		ExitPrice:  exit,
		PnL:        pnl,
		Status:     types.PositionClosed,
	}
}

func TestSummarizeDay(t *testing.T) {
	reader := &stubReader{positions: []types.Position{
		pos("SPY", 4, 2.00, 2.55, 2.2),
		pos("SPY", 2, 3.00, 2.50, -1.0),
		pos("QQQ", 3, 1.50, 1.80, 0.9),
	}}
	dir := t.TempDir()
	s := NewSummarizer(reader, dir, time.UTC)

	path, err := s.SummarizeDay(day())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-01-06.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4, "header, two symbols, total")
	assert.Equal(t, []string{"symbol", "trades", "wins", "quantity", "gross_entry_value", "gross_exit_value", "realized_pnl"}, rows[0])

	// Symbols are sorted.
	assert.Equal(t, "QQQ", rows[1][0])
	assert.Equal(t, []string{"SPY", "2", "1", "6", "14.00", "15.20", "1.20"}, rows[2])
	assert.Equal(t, "TOTAL", rows[3][0])
	assert.Equal(t, "3", rows[3][1])
	assert.Equal(t, "2.10", rows[3][6])

	assert.True(t, s.AlreadyWritten(day()))
}

func TestSummarizeDayNoTrades(t *testing.T) {
	s := NewSummarizer(&stubReader{}, t.TempDir(), time.UTC)
	path, err := s.SummarizeDay(day())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.False(t, s.AlreadyWritten(day()))
}

func TestSummarizeDayReaderError(t *testing.T) {
	s := NewSummarizer(&stubReader{err: errors.New("db gone")}, t.TempDir(), time.UTC)
	_, err := s.SummarizeDay(day())
	assert.Error(t, err)
}
