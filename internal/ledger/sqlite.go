// Package ledger persists completed trades and session counters. It is an
// external bookkeeping collaborator: the controller writes to it and never
// reads it back into trading decisions.
package ledger

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"odte-trader/internal/types"
)

type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) RecordClosedPosition(p types.Position) error {
	_, err := l.db.Exec(`
		INSERT OR REPLACE INTO closed_positions
		(position_id, symbol, option_type, strike, expiry, quantity, entry_price, exit_price,
		 entry_time, exit_time, exit_reason, strategy, confidence, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Symbol, string(p.OptionType), p.Strike, p.Expiry, p.Quantity,
		p.EntryPrice, p.ExitPrice, p.EntryTime, p.ExitTime, string(p.ExitReason),
		p.Strategy, p.Confidence, p.PnL,
	)
	return err
}

func (l *SQLiteLedger) RecordSessionCounters(day time.Time, dayTrades int, dailyPnL float64) error {
	_, err := l.db.Exec(`
		INSERT OR REPLACE INTO session_counters
		(session_date, day_trades, daily_pnl, recorded_at)
		VALUES (?, ?, ?, ?)`,
		day.Format("2006-01-02"), dayTrades, dailyPnL, time.Now().UTC(),
	)
	return err
}

// ClosedPositionsOn returns the positions closed on the given calendar day,
// ordered by exit time. Used by the end-of-day report.
func (l *SQLiteLedger) ClosedPositionsOn(day time.Time) ([]types.Position, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := l.db.Query(`
		SELECT position_id, symbol, option_type, strike, expiry, quantity, entry_price,
		       exit_price, entry_time, exit_time, exit_reason, strategy, confidence, pnl
		FROM closed_positions
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Position
	for rows.Next() {
		var p types.Position
		var optType, exitReason string
		if err := rows.Scan(&p.ID, &p.Symbol, &optType, &p.Strike, &p.Expiry, &p.Quantity,
			&p.EntryPrice, &p.ExitPrice, &p.EntryTime, &p.ExitTime, &exitReason,
			&p.Strategy, &p.Confidence, &p.PnL); err != nil {
			return nil, err
		}
		p.OptionType = types.OptionType(optType)
		p.ExitReason = types.ExitReason(exitReason)
		p.Status = types.PositionClosed
		p.CurrentPrice = p.ExitPrice
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
