// Package memstore provides an in-memory implementation of assistant.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/opsdash/internal/assistant"
)

// Store holds assistant runs in memory. Suitable for dev/testing.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*assistant.RunResult // run ID -> result
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		runs: make(map[string]*assistant.RunResult),
	}
}

// Get retrieves a run by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*assistant.RunResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// Put stores a copy of the run.
func (s *Store) Put(_ context.Context, r *assistant.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}
