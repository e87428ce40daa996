// Package memstore provides an in-memory implementation of timeline.Store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/linnemanlabs/opsdash/internal/timeline"
)

// Store holds events in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	events []timeline.Event
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{}
}

// Add appends events to the store.
func (s *Store) Add(events ...timeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// Events returns events in [w.Start, w.End] inclusive, ascending, honoring
// the entity filter and effective limit.
func (s *Store) Events(_ context.Context, w timeline.Window) ([]timeline.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := strings.ToLower(w.EntityFilter)
	var out []timeline.Event
	for _, ev := range s.events {
		if ev.OccurredAt.Before(w.Start) || ev.OccurredAt.After(w.End) {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(ev.Entity), filter) {
			continue
		}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})

	if limit := w.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
