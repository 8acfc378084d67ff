package canvas

import "sync"

// Store holds the single authoritative State for one server process.
//
// Every mutator swaps whole fields (last-writer-wins, no per-item merge) and
// returns the post-mutation snapshot while still holding the lock, so a
// caller's mutate-then-broadcast sequence observes exactly one state.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a Store with empty drawings and the default background
// and mode.
func NewStore() *Store {
	return &Store{state: emptyState()}
}

func emptyState() State {
	return State{
		Drawings:    []Item{},
		Background:  DefaultBackground,
		CurrentMode: DefaultMode,
	}
}

// Snapshot returns a copy of the current state. The drawings slice is
// copied; items themselves are immutable by protocol contract.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.copy()
}

// Replace swaps the drawings sequence and background wholesale and returns
// the new snapshot. The current mode is untouched.
func (s *Store) Replace(drawings []Item, background string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if drawings == nil {
		drawings = []Item{}
	}
	s.state.Drawings = drawings
	s.state.Background = background
	return s.state.copy()
}

// Clear resets to empty drawings, default background, and default mode, and
// returns the reset snapshot. Clearing an already-clear store is a no-op
// that returns the same state.
func (s *Store) Clear() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = emptyState()
	return s.state.copy()
}

// SetMode records the last broadcast tool mode and returns the new snapshot.
func (s *Store) SetMode(mode string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentMode = mode
	return s.state.copy()
}

func (st State) copy() State {
	out := st
	out.Drawings = make([]Item, len(st.Drawings))
	copy(out.Drawings, st.Drawings)
	return out
}
