// Package memstore provides an in-memory implementation of incident.Store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

// Store holds incident markers in memory. Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	incidents map[int64]*incident.Incident
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		nextID:    1,
		incidents: make(map[int64]*incident.Incident),
	}
}

// Create assigns the next id and stores a copy of the incident.
func (s *Store) Create(_ context.Context, inc *incident.Incident) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	cp := *inc
	cp.ID = id
	s.incidents[id] = &cp
	return id, nil
}

// Get retrieves an incident by id. Returns a copy.
func (s *Store) Get(_ context.Context, id int64) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

// Resolve applies the conditional close under the store lock, mirroring the
// single conditional UPDATE the SQL store issues.
func (s *Store) Resolve(_ context.Context, id int64, resolvedAt time.Time, rootCause, resolution string, pack incident.KnowledgePack) (*incident.Incident, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok || inc.ResolvedAt != nil {
		return nil, false, nil
	}

	inc.ResolvedAt = &resolvedAt
	inc.RootCause = rootCause
	inc.Resolution = resolution
	inc.Pack = pack

	cp := *inc
	return &cp, true, nil
}

// Search filters incidents with OR-combined service-overlap and keyword
// conditions, most recent started_at first.
func (s *Store) Search(_ context.Context, f incident.SearchFilter) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyword := strings.ToLower(f.Keyword)
	var matches []incident.Incident
	for _, inc := range s.incidents {
		if matchesServices(inc, f.Services) || matchesKeyword(inc, keyword) {
			matches = append(matches, *inc)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartedAt.After(matches[j].StartedAt)
	})

	if f.Limit > 0 && len(matches) > f.Limit {
		matches = matches[:f.Limit]
	}
	return matches, nil
}

// UpdateKnowledgePack replaces the stored pack document.
func (s *Store) UpdateKnowledgePack(_ context.Context, id int64, pack incident.KnowledgePack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return incident.ErrNotFound
	}
	inc.Pack = pack
	return nil
}

func matchesServices(inc *incident.Incident, services []string) bool {
	for _, want := range services {
		for _, have := range inc.AffectedServices {
			if have == want {
				return true
			}
		}
	}
	return false
}

func matchesKeyword(inc *incident.Incident, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(inc.Title), keyword) ||
		strings.Contains(strings.ToLower(inc.RootCause), keyword)
}
