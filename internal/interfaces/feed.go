package interfaces

import (
	"context"

	"odte-trader/internal/types"
)

// PriceFeed supplies current prices for option contracts during position
// monitoring. The core treats prices as opaque external input.
type PriceFeed interface {
	CurrentPrice(ctx context.Context, symbol string, optType types.OptionType, strike float64, expiry string) (float64, error)
}
