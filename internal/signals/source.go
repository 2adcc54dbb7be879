// Package signals provides SignalSource implementations. Signal production
// quality is out of scope for the core; these exist so the controller has a
// stream to drain in simulation and in tests.
package signals

import (
	"context"
	"sync"

	"odte-trader/internal/types"
)

// ChanSource is a SignalSource fed by external code pushing into it. Arrival
// order is preserved; a full buffer drops the oldest pending signal.
type ChanSource struct {
	ch     chan types.Signal
	mu     sync.Mutex
	closed bool
}

func NewChanSource(buffer int) *ChanSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanSource{ch: make(chan types.Signal, buffer)}
}

func (s *ChanSource) Signals() <-chan types.Signal { return s.ch }

func (s *ChanSource) Start(ctx context.Context) error { return nil }

func (s *ChanSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Push enqueues a signal, evicting the oldest pending one when full so the
// stream always reflects the freshest market view. A push after Stop is a
// silent drop; Stop cannot close the channel while a push is in flight.
func (s *ChanSource) Push(sig types.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- sig:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
