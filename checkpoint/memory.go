package checkpoint

import (
	"context"
	"sync"

	"tablechat/graph"
)

// MemorySaver keeps the latest snapshot per session in process memory.
// Used by tests and by best-effort degradation.
type MemorySaver struct {
	mu     sync.Mutex
	states map[string]*graph.State
}

func NewMemorySaver() *MemorySaver {
	return &MemorySaver{states: make(map[string]*graph.State)}
}

func (s *MemorySaver) Save(ctx context.Context, sessionID, node string, state *graph.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = state.Clone()
	return nil
}

func (s *MemorySaver) Load(ctx context.Context, sessionID string) (*graph.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sessionID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (s *MemorySaver) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}
