package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// HTTPStore talks to one collection of the document-store service over its
// REST API. All requests carry a bounded timeout via the underlying client.
type HTTPStore struct {
	endpoint   string
	collection string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPStore creates a client for a single collection.
func NewHTTPStore(endpoint, collection, apiKey string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPStore{
		endpoint:   strings.TrimRight(endpoint, "/"),
		collection: collection,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Collection returns the collection this store writes to.
func (s *HTTPStore) Collection() string { return s.collection }

// Insert stores a document. The server answers 409 for an existing name;
// with skipIfExists that is a successful skip, not an error.
func (s *HTTPStore) Insert(ctx context.Context, name, content string, skipIfExists bool) (bool, error) {
	body, err := json.Marshal(Doc{Name: name, Content: content})
	if err != nil {
		return false, fmt.Errorf("marshal document: %w", err)
	}

	u := fmt.Sprintf("%s/v1/collections/%s/documents", s.endpoint, url.PathEscape(s.collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("docstore insert %q: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusConflict && skipIfExists:
		return false, nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return false, fmt.Errorf("docstore insert %q: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(detail)))
}

// Search queries the collection's full-text/embedding search.
func (s *HTTPStore) Search(ctx context.Context, query string, limit int) ([]Doc, error) {
	u := fmt.Sprintf("%s/v1/collections/%s/search?q=%s&limit=%s",
		s.endpoint, url.PathEscape(s.collection), url.QueryEscape(query), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docstore search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("docstore search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out struct {
		Results []Doc `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}
