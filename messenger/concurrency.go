package messenger

import (
	"context"
	"log/slog"
)

// updateSlots limits how many updates are handled at once. One slot means strictly
// sequential dispatch.
type updateSlots chan struct{}

func newUpdateSlots(n int) updateSlots {
	if n <= 0 {
		n = 1
	}
	return make(updateSlots, n)
}

// acquire blocks until a slot is available or ctx is canceled.
// Returns true if slot acquired, false if context canceled.
func (s updateSlots) acquire(ctx context.Context) bool {
	select {
	case s <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s updateSlots) release() {
	select {
	case <-s:
	default:
		// Should not happen unless mismatched acquire/release
		slog.Warn("update slot release called without corresponding acquire")
	}
}

func (s updateSlots) active() int { return len(s) }
