package controller

import (
	"hash/fnv"

	"odte-trader/internal/types"
)

// Filler turns a signal's estimated entry into a fill price. The simulated
// default applies a bounded, hash-derived slippage so fills are reproducible;
// tests inject an identity filler.
type Filler interface {
	Fill(sig types.Signal) (float64, error)
}

// SlippageFiller shifts the estimated entry by a deterministic fraction of
// MaxSlippagePct derived from the signal itself.
type SlippageFiller struct {
	MaxSlippagePct float64
}

func (f SlippageFiller) Fill(sig types.Signal) (float64, error) {
	frac := signalFrac(sig) // [-1, 1)
	price := sig.EstimatedEntry * (1 + frac*f.MaxSlippagePct/100)
	if price < 0.01 {
		price = 0.01
	}
	return price, nil
}

// IdentityFiller fills at exactly the estimated entry.
type IdentityFiller struct{}

func (IdentityFiller) Fill(sig types.Signal) (float64, error) {
	return sig.EstimatedEntry, nil
}

// positionSize is a monotonic function of confidence, never below one
// contract: floor(base x confidence/100).
func positionSize(base int, confidence float64) int {
	size := int(float64(base) * confidence / 100)
	if size < 1 {
		size = 1
	}
	return size
}

// signedPnL gives the profit for a position at the given mark. Calls profit
// when price rises, puts the inverse.
func signedPnL(optType types.OptionType, entry, current float64, qty int) float64 {
	diff := current - entry
	if optType == types.Put {
		diff = -diff
	}
	return diff * float64(qty)
}

func signalFrac(sig types.Signal) float64 {
	h := fnv.New64a()
	h.Write([]byte(sig.Symbol))
	h.Write([]byte(sig.OptionType))
	h.Write([]byte(sig.Strategy))
	ts := sig.Timestamp.Unix()
	h.Write([]byte{
		byte(ts), byte(ts >> 8), byte(ts >> 16), byte(ts >> 24),
		byte(ts >> 32), byte(ts >> 40), byte(ts >> 48), byte(ts >> 56),
	})
	return float64(int64(h.Sum64())) / float64(1<<63)
}
