package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"odte-trader/internal/types"
)

// Journal appends each closed position as a JSON line to a dated file, one
// file per exchange-local calendar day. Cheap append-only audit trail next
// to the SQLite ledger.
type Journal struct {
	mu  sync.Mutex
	dir string
	loc *time.Location
}

func NewJournal(dir string, loc *time.Location) *Journal {
	return &Journal{dir: dir, loc: loc}
}

type journalLine struct {
	Time        string          `json:"time"`
	Kind        string          `json:"kind"`
	Position    *types.Position `json:"position,omitempty"`
	SessionDate string          `json:"session_date,omitempty"`
	DayTrades   *int            `json:"day_trades,omitempty"`
	DailyPnL    *float64        `json:"daily_pnl,omitempty"`
}

func (j *Journal) dailyFilepath(t time.Time) string {
	d := t.In(j.loc).Format("2006-01-02")
	return filepath.Join(j.dir, d+".jsonl")
}

func (j *Journal) append(line journalLine) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().In(j.loc)
	line.Time = now.Format("2006-01-02 15:04:05")
	p := j.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, _ := json.Marshal(line)
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func (j *Journal) RecordClosedPosition(p types.Position) error {
	return j.append(journalLine{Kind: "close", Position: &p})
}

// RecordSessionCounters journals the counters under the session's own date;
// a roll processed after midnight still identifies the day it closed out.
func (j *Journal) RecordSessionCounters(day time.Time, dayTrades int, dailyPnL float64) error {
	return j.append(journalLine{
		Kind:        "session",
		SessionDate: day.In(j.loc).Format("2006-01-02"),
		DayTrades:   &dayTrades,
		DailyPnL:    &dailyPnL,
	})
}

func (j *Journal) Close() error { return nil }
