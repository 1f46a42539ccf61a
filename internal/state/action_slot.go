package state

import (
	"sync"

	"github.com/relabs-tech/motion_link/internal/motion"
)

// ActionSlot holds at most one pending action. A new trigger replaces
// whatever is pending, sent or not.
type ActionSlot struct {
	mu      sync.Mutex
	pending motion.Action
}

// Trigger sets the pending action, dropping any unsent one.
func (s *ActionSlot) Trigger(a motion.Action) {
	s.mu.Lock()
	s.pending = a
	s.mu.Unlock()
}

// Take returns the pending action and clears the slot in one step.
// The caller owns the result: if it fails to deliver it, it is gone.
func (s *ActionSlot) Take() motion.Action {
	s.mu.Lock()
	a := s.pending
	s.pending = motion.NoAction
	s.mu.Unlock()
	return a
}
