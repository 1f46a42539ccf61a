package state

import (
	"sync"
	"time"
)

// LatencyTracker correlates the latest tracked trigger with the next
// acknowledgment from the listener. Only one trigger is in flight; a
// newer one replaces it.
type LatencyTracker struct {
	mu        sync.Mutex
	triggered time.Time // zero until the first MarkTriggered
	lastDelay int64     // ms
}

// MarkTriggered records now as the pending trigger time.
func (l *LatencyTracker) MarkTriggered(now time.Time) {
	l.mu.Lock()
	l.triggered = now
	l.mu.Unlock()
}

// OnAcknowledge computes now minus the pending trigger in milliseconds
// and stores it as the last delay. The trigger is kept, so a later
// acknowledgment is measured against the same instant until a new trigger
// arrives. Without any recorded trigger the result is unmeasured: it
// returns (0, false) and the last delay is left as is.
func (l *LatencyTracker) OnAcknowledge(now time.Time) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.triggered.IsZero() {
		return 0, false
	}
	d := now.Sub(l.triggered).Milliseconds()
	if d < 0 {
		d = 0
	}
	l.lastDelay = d
	return d, true
}

// LastDelay returns the most recent measurement, 0 before the first one.
// Reading it does not reset it.
func (l *LatencyTracker) LastDelay() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastDelay
}
