package jobstate

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store. State is scoped to
// process uptime; production deployments use PGStore so sent flags survive
// restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]State
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]State)}
}

// Get returns the state for an RO number.
func (s *MemoryStore) Get(ctx context.Context, roNumber string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.data[roNumber]
	if !ok {
		return State{}, ErrNotFound
	}
	return cloneState(state), nil
}

// Save stores the state keyed by its RO number.
func (s *MemoryStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[state.RONumber] = cloneState(state)
	return nil
}

func cloneState(state State) State {
	out := state
	out.Documents = make(map[DocumentKind]bool, len(state.Documents))
	for k, v := range state.Documents {
		out.Documents[k] = v
	}
	if state.NeedsCalibration != nil {
		v := *state.NeedsCalibration
		out.NeedsCalibration = &v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
