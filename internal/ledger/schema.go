package ledger

const Schema = `
CREATE TABLE IF NOT EXISTS closed_positions (
	position_id   TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	option_type   TEXT NOT NULL,
	strike        REAL NOT NULL,
	expiry        TEXT NOT NULL,
	quantity      INTEGER NOT NULL,
	entry_price   REAL NOT NULL,
	exit_price    REAL NOT NULL,
	entry_time    TIMESTAMP NOT NULL,
	exit_time     TIMESTAMP NOT NULL,
	exit_reason   TEXT NOT NULL,
	strategy      TEXT,
	confidence    REAL,
	pnl           REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_closed_positions_exit_time ON closed_positions(exit_time);

CREATE TABLE IF NOT EXISTS session_counters (
	session_date  TEXT PRIMARY KEY,
	day_trades    INTEGER NOT NULL,
	daily_pnl     REAL NOT NULL,
	recorded_at   TIMESTAMP NOT NULL
);
`
