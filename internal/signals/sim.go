package signals

import (
	"context"
	"hash/fnv"
	"time"

	"odte-trader/internal/interfaces"
	"odte-trader/internal/logger"
	"odte-trader/internal/types"
)

// SimGenerator emits deterministic 0DTE candidates on a fixed interval during
// Regular hours. Confidence, strike offset, and entry estimate are derived
// from a hash of (symbol, minute) so runs are reproducible.
type SimGenerator struct {
	src      *ChanSource
	clock    interfaces.SessionClock
	symbols  []string
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

var basePrices = map[string]float64{
	"SPY": 445, "QQQ": 380, "IWM": 195, "TLT": 95, "GLD": 185,
}

var strategies = []string{"Momentum Breakout", "Mean Reversion", "Gap Fill", "VIX Spike"}

func NewSimGenerator(clock interfaces.SessionClock, symbols []string, interval time.Duration, buffer int) *SimGenerator {
	return &SimGenerator{
		src:      NewChanSource(buffer),
		clock:    clock,
		symbols:  symbols,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (g *SimGenerator) Signals() <-chan types.Signal { return g.src.Signals() }

func (g *SimGenerator) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)
	go g.run(ctx)
	return nil
}

func (g *SimGenerator) Stop() {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}
	g.src.Stop()
}

// EmitNow generates and pushes one signal for the given instant, outside the
// interval loop. Emits nothing when the market is not in Regular hours.
func (g *SimGenerator) EmitNow(now time.Time) {
	if g.clock.PhaseAt(now) != types.PhaseRegular {
		return
	}
	g.src.Push(g.makeSignal(now))
}

func (g *SimGenerator) run(ctx context.Context) {
	defer close(g.done)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if g.clock.PhaseAt(now) != types.PhaseRegular {
				continue
			}
			sig := g.makeSignal(now)
			g.src.Push(sig)
			logger.Debug(ctx, "Simulated signal emitted",
				"symbol", sig.Symbol,
				"option_type", sig.OptionType,
				"strike", sig.Strike,
				"confidence", sig.Confidence,
			)
		}
	}
}

func (g *SimGenerator) makeSignal(now time.Time) types.Signal {
	minute := now.Unix() / 60
	sym := g.symbols[hashMod(minute, "sym", len(g.symbols))]
	base := basePrices[sym]
	if base == 0 {
		base = 400
	}

	optType := types.Call
	if hashMod(minute, sym+"type", 2) == 1 {
		optType = types.Put
	}

	strike := base + float64(hashMod(minute, sym+"strike", 11)-5)
	confidence := 70 + float64(hashMod(minute, sym+"conf", 26))     // 70..95
	entry := 1.5 + float64(hashMod(minute, sym+"entry", 251))/100.0 // 1.50..4.00
	strategy := strategies[hashMod(minute, sym+"strat", len(strategies))]

	return types.Signal{
		Symbol:         sym,
		OptionType:     optType,
		Strike:         strike,
		Expiry:         types.Expiry0DTE,
		Confidence:     confidence,
		EstimatedEntry: entry,
		Strategy:       strategy,
		Timestamp:      now,
	}
}

func hashMod(minute int64, salt string, n int) int {
	h := fnv.New64a()
	h.Write([]byte(salt))
	h.Write([]byte{
		byte(minute), byte(minute >> 8), byte(minute >> 16), byte(minute >> 24),
	})
	return int(h.Sum64() % uint64(n))
}
