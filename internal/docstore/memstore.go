package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemStore is an in-memory collection. Suitable for dev/testing.
type MemStore struct {
	mu    sync.RWMutex
	docs  map[string]string
	order []string // insertion order, for deterministic search results
}

// NewMemStore initializes an empty in-memory collection.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]string)}
}

// Insert stores a document, honoring skip-if-exists semantics.
func (s *MemStore) Insert(_ context.Context, name, content string, skipIfExists bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[name]; exists {
		if skipIfExists {
			return false, nil
		}
		return false, fmt.Errorf("document %q already exists", name)
	}
	s.docs[name] = content
	s.order = append(s.order, name)
	return true, nil
}

// Search matches the query as a case-insensitive substring of name or
// content, in insertion order.
func (s *MemStore) Search(_ context.Context, query string, limit int) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var out []Doc
	for _, name := range s.order {
		content := s.docs[name]
		if q == "" || strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(content), q) {
			out = append(out, Doc{Name: name, Content: content})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Get returns a stored document's content, for test assertions.
func (s *MemStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[name]
	return content, ok
}

// Len returns the number of stored documents.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
