package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/linnemanlabs/opsdash/internal/timeline"
)

var base = time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)

func seeded() *Store {
	s := New()
	s.Add(
		timeline.Event{OccurredAt: base.Add(30 * time.Minute), Source: timeline.SourceDeploy, EventType: "deploy_finished", Entity: "ghost"},
		timeline.Event{OccurredAt: base.Add(10 * time.Minute), Source: timeline.SourceDocker, EventType: "restart", Entity: "ghost-blog"},
		timeline.Event{OccurredAt: base.Add(50 * time.Minute), Source: timeline.SourceDocker, EventType: "oom_kill", Entity: "mysql"},
		timeline.Event{OccurredAt: base.Add(2 * time.Hour), Source: timeline.SourceIncident, EventType: "incident_start", Entity: "ghost"},
	)
	return s
}

func TestEvents_WindowInclusive(t *testing.T) {
	t.Parallel()

	s := seeded()
	events, err := s.Events(context.Background(), timeline.Window{
		Start: base.Add(10 * time.Minute),
		End:   base.Add(50 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (bounds are inclusive)", len(events))
	}
}

func TestEvents_Ascending(t *testing.T) {
	t.Parallel()

	s := seeded()
	events, err := s.Events(context.Background(), timeline.Window{Start: base, End: base.Add(3 * time.Hour)})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	for i := 1; i < len(events); i++ {
		if events[i].OccurredAt.Before(events[i-1].OccurredAt) {
			t.Errorf("events out of order at %d: %v before %v", i, events[i].OccurredAt, events[i-1].OccurredAt)
		}
	}
}

func TestEvents_EntityFilter(t *testing.T) {
	t.Parallel()

	s := seeded()
	events, err := s.Events(context.Background(), timeline.Window{
		Start:        base,
		End:          base.Add(3 * time.Hour),
		EntityFilter: "GHOST",
	})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	// substring match, case-insensitive: ghost, ghost-blog, and the
	// incident marker all qualify
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for _, ev := range events {
		if ev.Entity == "mysql" {
			t.Errorf("filter leaked entity %q", ev.Entity)
		}
	}
}

func TestEvents_Limit(t *testing.T) {
	t.Parallel()

	s := New()
	for i := range 10 {
		s.Add(timeline.Event{OccurredAt: base.Add(time.Duration(i) * time.Minute), Entity: fmt.Sprintf("svc-%d", i)})
	}

	events, err := s.Events(context.Background(), timeline.Window{
		Start: base,
		End:   base.Add(time.Hour),
		Limit: 4,
	})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	// the limit keeps the earliest events, not an arbitrary slice
	if events[0].Entity != "svc-0" || events[3].Entity != "svc-3" {
		t.Errorf("limit kept wrong events: first %q last %q", events[0].Entity, events[3].Entity)
	}
}

func TestEvents_EmptyWindow(t *testing.T) {
	t.Parallel()

	s := seeded()
	events, err := s.Events(context.Background(), timeline.Window{
		Start: base.Add(5 * time.Hour),
		End:   base.Add(6 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}
