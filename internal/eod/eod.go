// Package eod writes the end-of-day trading summary: one CSV per session day
// aggregating the day's closed positions by symbol. Driven by the scheduler's
// eod_report task shortly after the close.
package eod

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"odte-trader/internal/types"
)

// PositionReader supplies the day's closed positions, normally the SQLite ledger.
type PositionReader interface {
	ClosedPositionsOn(day time.Time) ([]types.Position, error)
}

type Summarizer struct {
	reader PositionReader
	dir    string
	loc    *time.Location
}

func NewSummarizer(reader PositionReader, dir string, loc *time.Location) *Summarizer {
	return &Summarizer{reader: reader, dir: dir, loc: loc}
}

type aggRow struct {
	Symbol   string
	Trades   int
	Wins     int
	Quantity int
	EntryVal float64
	ExitVal  float64
	PnL      float64
}

func (s *Summarizer) csvPath(t time.Time) string {
	d := t.In(s.loc).Format("2006-01-02")
	return filepath.Join(s.dir, d+".csv")
}

// SummarizeDay aggregates the day's closed positions into a CSV. Returns the
// output path, or "" when there were no trades.
func (s *Summarizer) SummarizeDay(t time.Time) (string, error) {
	positions, err := s.reader.ClosedPositionsOn(t.In(s.loc))
	if err != nil {
		return "", err
	}
	if len(positions) == 0 {
		return "", nil
	}

	aggs := map[string]*aggRow{}
	for _, p := range positions {
		row := aggs[p.Symbol]
		if row == nil {
			row = &aggRow{Symbol: p.Symbol}
			aggs[p.Symbol] = row
		}
		row.Trades++
		if p.PnL > 0 {
			row.Wins++
		}
		row.Quantity += p.Quantity
		row.EntryVal += p.EntryPrice * float64(p.Quantity)
		row.ExitVal += p.ExitPrice * float64(p.Quantity)
		row.PnL += p.PnL
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := s.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()

	headers := []string{"symbol", "trades", "wins", "quantity", "gross_entry_value", "gross_exit_value", "realized_pnl"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var totalTrades int
	var totalPnL, totalEntry, totalExit float64
	for _, k := range keys {
		r := aggs[k]
		rec := []string{
			r.Symbol,
			strconv.Itoa(r.Trades),
			strconv.Itoa(r.Wins),
			strconv.Itoa(r.Quantity),
			fmt.Sprintf("%.2f", r.EntryVal),
			fmt.Sprintf("%.2f", r.ExitVal),
			fmt.Sprintf("%.2f", r.PnL),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalTrades += r.Trades
		totalPnL += r.PnL
		totalEntry += r.EntryVal
		totalExit += r.ExitVal
	}
	_ = w.Write([]string{"TOTAL", strconv.Itoa(totalTrades), "", "", fmt.Sprintf("%.2f", totalEntry), fmt.Sprintf("%.2f", totalExit), fmt.Sprintf("%.2f", totalPnL)})

	return outPath, nil
}

// AlreadyWritten reports whether today's summary file exists.
func (s *Summarizer) AlreadyWritten(t time.Time) bool {
	_, err := os.Stat(s.csvPath(t))
	return err == nil
}
