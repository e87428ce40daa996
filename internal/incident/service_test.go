package incident

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var testStart = time.Date(2026, 3, 14, 3, 12, 0, 0, time.UTC)

type mockStore struct {
	mu        sync.Mutex
	created   []*Incident
	createErr error
	nextID    int64

	getInc *Incident
	getOK  bool
	getErr error

	resolveInc *Incident
	resolveOK  bool
	resolveErr error

	searchGot     SearchFilter
	searchMatches []Incident
	searchErr     error
}

func (m *mockStore) Create(_ context.Context, inc *Incident) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.nextID++
	m.created = append(m.created, inc)
	return m.nextID, nil
}

func (m *mockStore) Get(_ context.Context, _ int64) (*Incident, bool, error) {
	return m.getInc, m.getOK, m.getErr
}

func (m *mockStore) Resolve(_ context.Context, _ int64, resolvedAt time.Time, rootCause, resolution string, pack KnowledgePack) (*Incident, bool, error) {
	if m.resolveErr != nil {
		return nil, false, m.resolveErr
	}
	if !m.resolveOK {
		return nil, false, nil
	}
	inc := m.resolveInc
	inc.ResolvedAt = &resolvedAt
	inc.RootCause = rootCause
	inc.Resolution = resolution
	inc.Pack = pack
	return inc, true, nil
}

func (m *mockStore) Search(_ context.Context, f SearchFilter) ([]Incident, error) {
	m.searchGot = f
	return m.searchMatches, m.searchErr
}

func (m *mockStore) UpdateKnowledgePack(_ context.Context, _ int64, _ KnowledgePack) error {
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	notified []*Incident
	done     chan struct{}
}

func (m *mockNotifier) IncidentResolved(_ context.Context, inc *Incident) {
	m.mu.Lock()
	m.notified = append(m.notified, inc)
	m.mu.Unlock()
	close(m.done)
}

func validParams() CreateParams {
	return CreateParams{
		Title:            "ghost OOM loop",
		Severity:         SeverityCritical,
		StartedAt:        testStart,
		AffectedServices: []string{"ghost", "mysql"},
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	svc := NewService(store, nil, nil)

	inc, err := svc.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inc.ID != 1 {
		t.Errorf("ID = %d, want store-assigned 1", inc.ID)
	}
	if inc.Severity != SeverityCritical {
		t.Errorf("Severity = %q", inc.Severity)
	}
	if !strings.Contains(inc.TimelineQuery, "ops_unified_timeline") {
		t.Errorf("TimelineQuery = %q, want the replayable investigation query", inc.TimelineQuery)
	}
	if !strings.Contains(inc.TimelineQuery, "2026-03-14T03:12:00Z") {
		t.Errorf("TimelineQuery not anchored on started_at: %q", inc.TimelineQuery)
	}
}

func TestCreate_TrimsServices(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	svc := NewService(store, nil, nil)

	p := validParams()
	p.AffectedServices = []string{" ghost ", "", "  ", "mysql"}
	inc, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(inc.AffectedServices) != 2 || inc.AffectedServices[0] != "ghost" || inc.AffectedServices[1] != "mysql" {
		t.Errorf("AffectedServices = %v", inc.AffectedServices)
	}
}

func TestCreate_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"bad severity", func(p *CreateParams) { p.Severity = "catastrophic" }},
		{"empty severity", func(p *CreateParams) { p.Severity = "" }},
		{"no services", func(p *CreateParams) { p.AffectedServices = nil }},
		{"only blank services", func(p *CreateParams) { p.AffectedServices = []string{" ", ""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := NewService(&mockStore{}, nil, nil)
			p := validParams()
			tt.mutate(&p)
			_, err := svc.Create(context.Background(), p)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Create error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreate_StoreError(t *testing.T) {
	t.Parallel()

	store := &mockStore{createErr: errors.New("disk full")}
	svc := NewService(store, nil, nil)

	_, err := svc.Create(context.Background(), validParams())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Create error = %v, want wrapped store error", err)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		resolveOK:  true,
		resolveInc: &Incident{ID: 7, Title: "ghost OOM loop"},
	}
	svc := NewService(store, nil, nil)

	inc, err := svc.Resolve(context.Background(), 7, "memory limit too low", "raised limit to 1g",
		json.RawMessage(`{"gotchas":["container name is ghost-blog"]}`))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !inc.Resolved() {
		t.Error("incident not resolved")
	}
	if inc.RootCause != "memory limit too low" {
		t.Errorf("RootCause = %q", inc.RootCause)
	}
	if len(inc.Pack.Gotchas) != 1 {
		t.Errorf("Pack.Gotchas = %v", inc.Pack.Gotchas)
	}
}

func TestResolve_MalformedPack(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockStore{resolveOK: true, resolveInc: &Incident{ID: 7}}, nil, nil)

	_, err := svc.Resolve(context.Background(), 7, "x", "y", json.RawMessage(`{broken`))
	if !errors.Is(err, ErrMalformedPack) {
		t.Errorf("Resolve error = %v, want ErrMalformedPack", err)
	}
}

func TestResolve_NotFoundOrAlreadyResolved(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockStore{resolveOK: false}, nil, nil)

	_, err := svc.Resolve(context.Background(), 99, "x", "y", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "not found or already resolved") {
		t.Errorf("error = %v, closed incidents and missing ones are indistinguishable by contract", err)
	}
}

func TestResolve_Notifies(t *testing.T) {
	t.Parallel()

	notifier := &mockNotifier{done: make(chan struct{})}
	store := &mockStore{resolveOK: true, resolveInc: &Incident{ID: 7, Title: "ghost OOM loop"}}
	svc := NewService(store, notifier, nil)

	if _, err := svc.Resolve(context.Background(), 7, "x", "y", nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.notified) != 1 || notifier.notified[0].ID != 7 {
		t.Errorf("notified = %v", notifier.notified)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	store := &mockStore{getInc: &Incident{ID: 3, Title: "mysql disk full"}, getOK: true}
	svc := NewService(store, nil, nil)

	inc, err := svc.Get(context.Background(), 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inc.Title != "mysql disk full" {
		t.Errorf("Title = %q", inc.Title)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockStore{}, nil, nil)

	_, err := svc.Get(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestSearch_RequiresCriteria(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockStore{}, nil, nil)

	tests := []struct {
		name   string
		filter SearchFilter
	}{
		{"empty filter", SearchFilter{}},
		{"blank keyword", SearchFilter{Keyword: "   "}},
		{"blank services", SearchFilter{Services: []string{" ", ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Search(context.Background(), tt.filter)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Search error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSearch_LimitDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, DefaultSearchLimit},
		{"negative uses default", -1, DefaultSearchLimit},
		{"in range passes through", 25, 25},
		{"above cap clamps", 500, MaxSearchLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &mockStore{}
			svc := NewService(store, nil, nil)
			if _, err := svc.Search(context.Background(), SearchFilter{Keyword: "oom", Limit: tt.limit}); err != nil {
				t.Fatalf("Search: %v", err)
			}
			if store.searchGot.Limit != tt.want {
				t.Errorf("store saw limit %d, want %d", store.searchGot.Limit, tt.want)
			}
		})
	}
}

func TestParseServices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "ghost,mysql", []string{"ghost", "mysql"}},
		{"spaces trimmed", " ghost , mysql ", []string{"ghost", "mysql"}},
		{"empty parts dropped", "ghost,,mysql,", []string{"ghost", "mysql"}},
		{"empty input", "", nil},
		{"only commas", ",,,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseServices(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseServices(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("ParseServices(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}
