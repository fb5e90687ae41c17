package sync

import (
	gosync "sync"

	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// SequenceGuard enforces replay protection for one session. A sequence
// number is rejected when it was already seen, or when it trails the
// highest accepted number by more than the drift window. Fresh numbers
// inside the window are accepted even out of order.
type SequenceGuard struct {
	mu      gosync.Mutex
	drift   uint64
	highest uint64
	seen    map[uint64]struct{}
}

// NewSequenceGuard creates a guard with the given drift window.
func NewSequenceGuard(drift uint64) *SequenceGuard {
	if drift == 0 {
		drift = 100
	}
	return &SequenceGuard{
		drift: drift,
		seen:  make(map[uint64]struct{}),
	}
}

// Check admits or rejects one inbound sequence number.
func (g *SequenceGuard) Check(seq uint64) *types.Error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.highest > g.drift && seq <= g.highest-g.drift {
		metrics.ReplayRejections.Inc()
		return types.NewError(types.ErrReplayRejected,
			"sequence %d trails the window (highest %d, drift %d)", seq, g.highest, g.drift)
	}
	if _, dup := g.seen[seq]; dup {
		metrics.ReplayRejections.Inc()
		return types.NewError(types.ErrReplayRejected, "sequence %d already seen", seq)
	}

	g.seen[seq] = struct{}{}
	if seq > g.highest {
		g.highest = seq
		if g.highest > g.drift {
			floor := g.highest - g.drift
			for s := range g.seen {
				if s <= floor {
					delete(g.seen, s)
				}
			}
		}
	}
	return nil
}

// Highest returns the highest accepted sequence number.
func (g *SequenceGuard) Highest() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.highest
}
