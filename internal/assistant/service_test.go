package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/opsdash/internal/tools"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu     sync.Mutex
	runs   map[string]*RunResult
	puts   int
	putErr error
	getErr error
}

func newMockStore() *mockStore {
	return &mockStore{runs: make(map[string]*RunResult)}
}

func (m *mockStore) Get(_ context.Context, id string) (*RunResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	r, ok := m.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (m *mockStore) Put(_ context.Context, r *RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	cp := *r
	m.runs[r.ID] = &cp
	return nil
}

func newTestEngine(provider Provider) *Engine {
	return NewEngine(provider, tools.NewRegistry(), log.Nop(), EngineHooks{})
}

func TestAsk_EmptyQuestion(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), newTestEngine(&mockProvider{}), log.Nop())

	_, err := svc.Ask(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestAsk_RunsAndPersists(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	provider := &mockProvider{
		responses: []*LLMResponse{{
			Content:    []ContentBlock{{Type: "text", Text: "the deploy at 03:10 caused it"}},
			StopReason: StopEnd,
			Usage:      Usage{InputTokens: 100, OutputTokens: 50},
		}},
	}
	svc := NewService(store, newTestEngine(provider), log.Nop())

	rr, err := svc.Ask(context.Background(), "why did ghost restart?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if rr.ID == "" {
		t.Error("expected non-empty run ID")
	}
	if rr.Status != StatusComplete {
		t.Errorf("status = %q, want %q", rr.Status, StatusComplete)
	}
	if rr.Answer != "the deploy at 03:10 caused it" {
		t.Errorf("answer = %q", rr.Answer)
	}

	got, ok, err := store.Get(context.Background(), rr.ID)
	if err != nil || !ok {
		t.Fatalf("Get(%q): ok=%v err=%v", rr.ID, ok, err)
	}
	if got.Status != StatusComplete {
		t.Errorf("stored status = %q, want %q", got.Status, StatusComplete)
	}
	if got.Answer != rr.Answer {
		t.Errorf("stored answer = %q, want %q", got.Answer, rr.Answer)
	}
	// pending row then final result
	if store.puts != 2 {
		t.Errorf("puts = %d, want 2", store.puts)
	}
}

func TestAsk_PendingPutError(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.putErr = errors.New("db down")

	svc := NewService(store, newTestEngine(&mockProvider{}), log.Nop())

	_, err := svc.Ask(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error from store")
	}
}

func TestGet_Passthrough(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.runs["r-1"] = &RunResult{ID: "r-1", Status: StatusComplete, Answer: "cached"}

	svc := NewService(store, newTestEngine(&mockProvider{}), log.Nop())

	got, ok, err := svc.Get(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected result to be found")
	}
	if got.Answer != "cached" {
		t.Errorf("answer = %q, want %q", got.Answer, "cached")
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), newTestEngine(&mockProvider{}), log.Nop())

	_, ok, err := svc.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing ID")
	}
}
