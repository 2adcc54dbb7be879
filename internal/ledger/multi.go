package ledger

import (
	"errors"
	"time"

	"odte-trader/internal/interfaces"
	"odte-trader/internal/types"
)

// Multi fans writes out to several ledgers. Every target is attempted; the
// joined error reports any that failed.
type Multi struct {
	targets []interfaces.Ledger
}

func NewMulti(targets ...interfaces.Ledger) *Multi {
	return &Multi{targets: targets}
}

func (m *Multi) RecordClosedPosition(p types.Position) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.RecordClosedPosition(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) RecordSessionCounters(day time.Time, dayTrades int, dailyPnL float64) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.RecordSessionCounters(day, dayTrades, dailyPnL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
