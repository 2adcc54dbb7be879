// Package feed provides PriceFeed implementations. The core never bakes in a
// pricing formula; prices are opaque input from whichever feed is wired in.
package feed

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"odte-trader/internal/types"
)

// SimFeed is a deterministic stand-in for a real market data feed. Each
// contract walks away from its seed price by a small hash-derived step per
// query, so runs are reproducible without any RNG state.
type SimFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  map[string]uint64
	// DriftPct bounds the per-query price step, in percent.
	DriftPct float64
}

func NewSimFeed() *SimFeed {
	return &SimFeed{
		prices:   make(map[string]float64),
		calls:    make(map[string]uint64),
		DriftPct: 2.0,
	}
}

// Seed fixes the starting price for a contract. Without a seed the first
// query derives a price from the strike.
func (f *SimFeed) Seed(symbol string, optType types.OptionType, strike float64, expiry string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[contractKey(symbol, optType, strike, expiry)] = price
}

func (f *SimFeed) CurrentPrice(ctx context.Context, symbol string, optType types.OptionType, strike float64, expiry string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	key := contractKey(symbol, optType, strike, expiry)
	last, ok := f.prices[key]
	if !ok {
		// Rough premium: a fraction of strike, floor at a nickel.
		last = strike * 0.005
		if last < 0.05 {
			last = 0.05
		}
	}

	f.calls[key]++
	step := hashFrac(key, f.calls[key]) * f.DriftPct / 100.0
	next := last * (1 + step)
	if next < 0.01 {
		next = 0.01
	}
	f.prices[key] = next
	return next, nil
}

func contractKey(symbol string, optType types.OptionType, strike float64, expiry string) string {
	return fmt.Sprintf("%s|%s|%.2f|%s", symbol, optType, strike, expiry)
}

// hashFrac maps (key, n) onto [-1, 1) deterministically.
func hashFrac(key string, n uint64) float64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	h.Write([]byte{
		byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56),
	})
	v := h.Sum64()
	return float64(int64(v)) / float64(1<<63)
}
