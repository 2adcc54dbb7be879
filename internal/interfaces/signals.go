package interfaces

import (
	"context"

	"odte-trader/internal/types"
)

// SignalSource yields externally produced trade candidates. Arrival order is
// queue order; the controller never reorders signals.
type SignalSource interface {
	// Signals returns the channel signals arrive on. The source closes it
	// when it stops producing.
	Signals() <-chan types.Signal
	Start(ctx context.Context) error
	Stop()
}
