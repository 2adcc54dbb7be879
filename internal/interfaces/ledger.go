package interfaces

import (
	"time"

	"odte-trader/internal/types"
)

// Ledger is the external bookkeeping collaborator. The controller reports
// completed trades and session counters to it; it never feeds back into
// trading decisions.
type Ledger interface {
	RecordClosedPosition(p types.Position) error
	RecordSessionCounters(day time.Time, dayTrades int, dailyPnL float64) error
	Close() error
}
