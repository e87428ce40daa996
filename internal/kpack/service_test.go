package kpack

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/opsdash/internal/docstore"
	"github.com/linnemanlabs/opsdash/internal/incident"
	"github.com/linnemanlabs/opsdash/internal/incident/memstore"
	"github.com/linnemanlabs/opsdash/internal/timeline"
)

// failingDocs implements docstore.Store with a forced insert error.
type failingDocs struct {
	err error
}

func (f *failingDocs) Insert(context.Context, string, string, bool) (bool, error) {
	return false, f.err
}

func (f *failingDocs) Search(context.Context, string, int) ([]docstore.Doc, error) {
	return nil, f.err
}

func seedResolvedIncident(t *testing.T, store *memstore.Store) *incident.Incident {
	t.Helper()
	ctx := context.Background()

	started := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	id, err := store.Create(ctx, &incident.Incident{
		Title:            "Ghost OOM crash",
		Severity:         incident.SeverityCritical,
		StartedAt:        started,
		AffectedServices: []string{"ghost", "mysql"},
		TimelineQuery:    timeline.InvestigationQuery(started),
		Pack: incident.KnowledgePack{
			Gotchas: []string{"container restarts hide the OOM in docker logs"},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved := started.Add(90 * time.Minute)
	inc, ok, err := store.Resolve(ctx, id, resolved,
		"memory limit too low after content import",
		"raised container memory limit to 2GB and restarted",
		incident.KnowledgePack{Gotchas: []string{"container restarts hide the OOM in docker logs"}},
	)
	if err != nil || !ok {
		t.Fatalf("Resolve: ok=%v err=%v", ok, err)
	}
	return inc
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	incidents := memstore.New()
	knowledge := docstore.NewMemStore()
	learnings := docstore.NewMemStore()
	inc := seedResolvedIncident(t, incidents)

	genAt := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)
	svc := NewService(incidents, knowledge, learnings, log.Nop(),
		WithClock(func() time.Time { return genAt }))

	res, err := svc.Generate(ctx, inc.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if res.QueryName != QueryName(inc.ID) {
		t.Errorf("QueryName = %q, want %q", res.QueryName, QueryName(inc.ID))
	}
	wantLearning := LearningName(inc.ID, inc.Title)
	if res.LearningName != wantLearning {
		t.Errorf("LearningName = %q, want %q", res.LearningName, wantLearning)
	}

	queryDoc, ok := knowledge.Get(res.QueryName)
	if !ok {
		t.Fatalf("validated query %q not stored", res.QueryName)
	}
	var qp ValidatedQueryPayload
	if err := json.Unmarshal([]byte(queryDoc), &qp); err != nil {
		t.Fatalf("unmarshal query payload: %v", err)
	}
	if qp.Type != "validated_query" || qp.IncidentID != inc.ID {
		t.Errorf("query payload = %+v", qp)
	}
	if len(qp.TablesUsed) != 1 || qp.TablesUsed[0] != "ops_unified_timeline" {
		t.Errorf("tables_used = %v", qp.TablesUsed)
	}

	sigDoc, ok := learnings.Get(res.LearningName)
	if !ok {
		t.Fatalf("signature %q not stored", res.LearningName)
	}
	var sig SignaturePayload
	if err := json.Unmarshal([]byte(sigDoc), &sig); err != nil {
		t.Fatalf("unmarshal signature: %v", err)
	}
	if sig.Type != "incident_signature" {
		t.Errorf("signature type = %q", sig.Type)
	}
	if sig.DurationMinutes == nil || *sig.DurationMinutes != 90 {
		t.Errorf("duration_minutes = %v, want 90", sig.DurationMinutes)
	}
	wantSymptoms := []string{
		"Out of memory / OOM kill",
		"Service crash / restart loop",
		"Memory pressure",
	}
	if len(sig.Symptoms) != len(wantSymptoms) {
		t.Fatalf("symptoms = %v, want %v", sig.Symptoms, wantSymptoms)
	}
	if len(sig.Gotchas) != 1 {
		t.Errorf("gotchas = %v, want the carried gotcha", sig.Gotchas)
	}

	if !strings.Contains(res.Runbook, "### Root Cause") ||
		!strings.Contains(res.Runbook, "### Resolution Steps") ||
		!strings.Contains(res.Runbook, "### Gotchas") ||
		!strings.Contains(res.Runbook, "### Prevention") ||
		!strings.Contains(res.Runbook, "### Detection") {
		t.Errorf("runbook missing sections:\n%s", res.Runbook)
	}
	if !strings.Contains(res.Runbook, res.QueryName) {
		t.Errorf("runbook does not reference %q", res.QueryName)
	}

	stored, ok, err := incidents.Get(ctx, inc.ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !stored.Pack.Generated {
		t.Error("pack not marked generated")
	}
	if stored.Pack.GeneratedAt == nil || !stored.Pack.GeneratedAt.Equal(genAt) {
		t.Errorf("generated_at = %v, want %v", stored.Pack.GeneratedAt, genAt)
	}
	if stored.Pack.Artifacts == nil ||
		stored.Pack.Artifacts.ValidatedQuery != res.QueryName ||
		stored.Pack.Artifacts.Learning != res.LearningName {
		t.Errorf("artifacts = %+v", stored.Pack.Artifacts)
	}
	if len(stored.Pack.Gotchas) != 1 {
		t.Errorf("gotchas dropped during metadata merge: %v", stored.Pack.Gotchas)
	}

	if len(res.Notes) != 4 {
		t.Errorf("notes = %v, want 4 entries", res.Notes)
	}
}

func TestGenerate_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(memstore.New(), docstore.NewMemStore(), docstore.NewMemStore(), log.Nop())

	_, err := svc.Generate(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGenerate_NotResolved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	incidents := memstore.New()
	id, err := incidents.Create(ctx, &incident.Incident{
		Title:     "ongoing outage",
		Severity:  incident.SeverityWarning,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc := NewService(incidents, docstore.NewMemStore(), docstore.NewMemStore(), log.Nop())

	_, err = svc.Generate(ctx, id)
	if !errors.Is(err, ErrNotResolved) {
		t.Errorf("err = %v, want ErrNotResolved", err)
	}
}

func TestGenerate_MissingResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	incidents := memstore.New()
	started := time.Now().UTC().Add(-time.Hour)
	id, err := incidents.Create(ctx, &incident.Incident{
		Title:     "half-documented outage",
		Severity:  incident.SeverityWarning,
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := incidents.Resolve(ctx, id, started.Add(time.Hour), "root cause known", "", incident.KnowledgePack{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	svc := NewService(incidents, docstore.NewMemStore(), docstore.NewMemStore(), log.Nop())

	_, err = svc.Generate(ctx, id)
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
}

func TestGenerate_ArtifactFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	incidents := memstore.New()
	inc := seedResolvedIncident(t, incidents)

	broken := &failingDocs{err: errors.New("collection offline")}
	learnings := docstore.NewMemStore()
	svc := NewService(incidents, broken, learnings, log.Nop())

	res, err := svc.Generate(ctx, inc.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var failed bool
	for _, n := range res.Notes {
		if strings.HasPrefix(n, "Query save failed:") {
			failed = true
		}
	}
	if !failed {
		t.Errorf("notes = %v, want a query failure entry", res.Notes)
	}
	if _, ok := learnings.Get(res.LearningName); !ok {
		t.Error("signature should still be stored when query save fails")
	}

	stored, _, err := incidents.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.Pack.Generated {
		t.Error("metadata update should proceed despite artifact failure")
	}
}

func TestGenerate_NoTimelineQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	incidents := memstore.New()
	started := time.Now().UTC().Add(-time.Hour)
	id, err := incidents.Create(ctx, &incident.Incident{
		Title:     "manual marker",
		Severity:  incident.SeverityInfo,
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := incidents.Resolve(ctx, id, started.Add(time.Hour), "cause", "fix", incident.KnowledgePack{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	knowledge := docstore.NewMemStore()
	svc := NewService(incidents, knowledge, docstore.NewMemStore(), log.Nop())

	res, err := svc.Generate(ctx, id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.QueryName != "" {
		t.Errorf("QueryName = %q, want empty", res.QueryName)
	}
	if knowledge.Len() != 0 {
		t.Errorf("knowledge docs = %d, want 0", knowledge.Len())
	}

	stored, _, err := incidents.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Pack.Artifacts == nil || stored.Pack.Artifacts.ValidatedQuery != "" {
		t.Errorf("artifacts = %+v, want empty validated_query", stored.Pack.Artifacts)
	}
}

func TestRetrieve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	incidents := memstore.New()
	inc := seedResolvedIncident(t, incidents)
	svc := NewService(incidents, docstore.NewMemStore(), docstore.NewMemStore(), log.Nop())

	got, err := svc.Retrieve(ctx, inc.ID)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.Title != inc.Title {
		t.Errorf("title = %q, want %q", got.Title, inc.Title)
	}

	if _, err := svc.Retrieve(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
