package docstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPStore_Insert(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotDoc Doc
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotDoc); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "ops_knowledge", "secret-key", time.Second)
	inserted, err := s.Insert(context.Background(), "runbook-ghost-oom", "restart it", false)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true")
	}
	if gotPath != "/v1/collections/ops_knowledge/documents" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotDoc.Name != "runbook-ghost-oom" || gotDoc.Content != "restart it" {
		t.Errorf("doc = %+v", gotDoc)
	}
}

func TestHTTPStore_InsertConflict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "ops_knowledge", "", time.Second)

	// conflict with skipIfExists is a successful skip
	inserted, err := s.Insert(context.Background(), "doc", "x", true)
	if err != nil {
		t.Fatalf("Insert skip: %v", err)
	}
	if inserted {
		t.Error("expected inserted=false on conflict skip")
	}

	// conflict without the flag is an error
	if _, err := s.Insert(context.Background(), "doc", "x", false); err == nil {
		t.Error("expected error for conflict without skipIfExists")
	}
}

func TestHTTPStore_InsertServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collection quota exceeded", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "ops_knowledge", "", time.Second)
	_, err := s.Insert(context.Background(), "doc", "x", true)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestHTTPStore_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/collections/ops_learnings/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "ghost oom" {
			t.Errorf("q = %q", q)
		}
		if l := r.URL.Query().Get("limit"); l != "5" {
			t.Errorf("limit = %q", l)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []Doc{{Name: "incident-7-signature", Content: "ghost oom loop"}},
		})
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "ops_learnings", "", time.Second)
	docs, err := s.Search(context.Background(), "ghost oom", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "incident-7-signature" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestHTTPStore_SearchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "ops_knowledge", "", time.Second)
	if _, err := s.Search(context.Background(), "anything", 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestHTTPStore_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/collections/ops_knowledge/documents" {
			t.Errorf("path = %q, trailing slash should not double up", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL+"/", "ops_knowledge", "", time.Second)
	if _, err := s.Insert(context.Background(), "doc", "x", false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}
