package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

var base = time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, title string, startedAt time.Time, services ...string) int64 {
	t.Helper()
	id, err := s.Create(context.Background(), &incident.Incident{
		Title:            title,
		Severity:         incident.SeverityCritical,
		StartedAt:        startedAt,
		AffectedServices: services,
	})
	if err != nil {
		t.Fatalf("seed %q: %v", title, err)
	}
	return id
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	s := New()
	first := seed(t, s, "a", base, "ghost")
	second := seed(t, s, "b", base, "mysql")

	if first != 1 || second != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", first, second)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	id := seed(t, s, "ghost OOM loop", base, "ghost")

	inc, ok, err := s.Get(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	inc.Title = "mutated"

	again, _, _ := s.Get(context.Background(), id)
	if again.Title != "ghost OOM loop" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing incident")
	}
}

func TestResolve_Conditional(t *testing.T) {
	t.Parallel()

	s := New()
	id := seed(t, s, "ghost OOM loop", base, "ghost")

	resolvedAt := base.Add(90 * time.Minute)
	inc, ok, err := s.Resolve(context.Background(), id, resolvedAt, "memory limit", "raised to 1g", incident.KnowledgePack{})
	if err != nil || !ok {
		t.Fatalf("first Resolve: ok=%v err=%v", ok, err)
	}
	if inc.ResolvedAt == nil || !inc.ResolvedAt.Equal(resolvedAt) {
		t.Errorf("ResolvedAt = %v", inc.ResolvedAt)
	}

	// second resolve loses: already closed
	_, ok, err = s.Resolve(context.Background(), id, resolvedAt, "x", "y", incident.KnowledgePack{})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if ok {
		t.Error("resolving a closed incident must report ok=false")
	}

	// missing id behaves identically
	_, ok, _ = s.Resolve(context.Background(), 999, resolvedAt, "x", "y", incident.KnowledgePack{})
	if ok {
		t.Error("resolving a missing incident must report ok=false")
	}
}

func TestSearch_ServiceOverlapOrKeyword(t *testing.T) {
	t.Parallel()

	s := New()
	seed(t, s, "ghost OOM loop", base.Add(time.Hour), "ghost")
	seed(t, s, "mysql disk full", base, "mysql")
	seed(t, s, "unrelated deploy failure", base.Add(2*time.Hour), "ci")

	// service match OR keyword match, union not intersection
	matches, err := s.Search(context.Background(), incident.SearchFilter{
		Services: []string{"ghost"},
		Keyword:  "disk",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	// most recent started_at first
	if matches[0].Title != "ghost OOM loop" || matches[1].Title != "mysql disk full" {
		t.Errorf("order = %q, %q", matches[0].Title, matches[1].Title)
	}
}

func TestSearch_KeywordMatchesRootCause(t *testing.T) {
	t.Parallel()

	s := New()
	id := seed(t, s, "ghost OOM loop", base, "ghost")
	if _, ok, err := s.Resolve(context.Background(), id, base.Add(time.Hour), "swap exhausted on host", "added swap", incident.KnowledgePack{}); err != nil || !ok {
		t.Fatalf("Resolve: ok=%v err=%v", ok, err)
	}

	matches, err := s.Search(context.Background(), incident.SearchFilter{Keyword: "SWAP"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (keyword is case-insensitive over title and root cause)", len(matches))
	}
}

func TestSearch_Limit(t *testing.T) {
	t.Parallel()

	s := New()
	for i := 0; i < 5; i++ {
		seed(t, s, "ghost incident", base.Add(time.Duration(i)*time.Hour), "ghost")
	}

	matches, err := s.Search(context.Background(), incident.SearchFilter{Services: []string{"ghost"}, Limit: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("got %d matches, want 3", len(matches))
	}
}

func TestUpdateKnowledgePack(t *testing.T) {
	t.Parallel()

	s := New()
	id := seed(t, s, "ghost OOM loop", base, "ghost")

	pack := incident.KnowledgePack{Gotchas: []string{"container name is ghost-blog"}}
	if err := s.UpdateKnowledgePack(context.Background(), id, pack); err != nil {
		t.Fatalf("UpdateKnowledgePack: %v", err)
	}

	inc, _, _ := s.Get(context.Background(), id)
	if len(inc.Pack.Gotchas) != 1 {
		t.Errorf("Pack.Gotchas = %v", inc.Pack.Gotchas)
	}

	if err := s.UpdateKnowledgePack(context.Background(), 999, pack); err == nil {
		t.Error("expected error for missing incident")
	}
}
