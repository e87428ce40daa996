package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/opsdash/internal/timeline"
)

// Sentinel errors for the registry. Callers classify with errors.Is;
// wrapped messages carry the specifics.
var (
	// ErrInvalidInput marks rejected input: an unknown severity, an empty
	// service set, or a search with no criteria.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a missing incident. On resolve it deliberately does
	// not distinguish "never existed" from "already resolved": the store's
	// conditional update sees both as "no open incident with this id".
	ErrNotFound = errors.New("incident not found")

	// ErrMalformedPack marks a knowledge_pack payload that is not a JSON
	// object.
	ErrMalformedPack = errors.New("malformed knowledge pack")
)

const (
	// DefaultSearchLimit applies when a search requests zero results.
	DefaultSearchLimit = 10

	// MaxSearchLimit caps search results regardless of the requested limit.
	MaxSearchLimit = 50
)

// Notifier is told about resolved incidents. Implementations must tolerate
// being called concurrently.
type Notifier interface {
	IncidentResolved(ctx context.Context, inc *Incident)
}

// Service is the business boundary for the incident registry.
type Service struct {
	store    Store
	notifier Notifier
	logger   log.Logger
}

// NewService creates an incident registry service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// CreateParams are the inputs for opening an incident.
type CreateParams struct {
	Title            string
	Severity         Severity
	StartedAt        time.Time
	AffectedServices []string
	RootCause        string
	Resolution       string
}

// ParseServices splits a comma-separated service list into trimmed,
// non-empty names.
func ParseServices(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Create validates and records a new incident marker. The replayable
// timeline query is computed once here, anchored on the incident start.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Incident, error) {
	if !p.Severity.Valid() {
		return nil, fmt.Errorf("%w: severity must be 'critical', 'warning', or 'info', got %q", ErrInvalidInput, p.Severity)
	}

	services := make([]string, 0, len(p.AffectedServices))
	for _, svc := range p.AffectedServices {
		if name := strings.TrimSpace(svc); name != "" {
			services = append(services, name)
		}
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: at least one affected service is required", ErrInvalidInput)
	}

	inc := &Incident{
		Title:            p.Title,
		Severity:         p.Severity,
		StartedAt:        p.StartedAt,
		AffectedServices: services,
		RootCause:        p.RootCause,
		Resolution:       p.Resolution,
		TimelineQuery:    timeline.InvestigationQuery(p.StartedAt),
	}

	id, err := s.store.Create(ctx, inc)
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	inc.ID = id

	s.logger.Info(ctx, "incident created",
		"incident_id", id,
		"title", inc.Title,
		"severity", inc.Severity,
		"services", inc.AffectedServices,
	)
	return inc, nil
}

// Resolve closes an open incident with its root cause and resolution. The
// packExtra payload, when present, becomes the incident's knowledge pack
// (gotchas and similar discovered during resolution). The transition is a
// single conditional write: concurrent resolves yield one winner and one
// ErrNotFound.
func (s *Service) Resolve(ctx context.Context, id int64, rootCause, resolution string, packExtra json.RawMessage) (*Incident, error) {
	var pack KnowledgePack
	if len(packExtra) > 0 {
		if err := json.Unmarshal(packExtra, &pack); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPack, err)
		}
	}

	now := time.Now().UTC()
	inc, ok, err := s.store.Resolve(ctx, id, now, rootCause, resolution, pack)
	if err != nil {
		return nil, fmt.Errorf("resolve incident %d: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: incident #%d not found or already resolved", ErrNotFound, id)
	}

	s.logger.Info(ctx, "incident resolved",
		"incident_id", id,
		"title", inc.Title,
		"resolved_at", now,
	)

	if s.notifier != nil {
		go s.notifier.IncidentResolved(context.WithoutCancel(ctx), inc)
	}
	return inc, nil
}

// Get retrieves an incident by id. Returns ErrNotFound when missing.
func (s *Service) Get(ctx context.Context, id int64) (*Incident, error) {
	inc, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident %d: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: incident #%d", ErrNotFound, id)
	}
	return inc, nil
}

// Search finds past incidents by service overlap and/or keyword. At least
// one criterion is required; an empty result set is a valid outcome.
func (s *Service) Search(ctx context.Context, f SearchFilter) ([]Incident, error) {
	services := make([]string, 0, len(f.Services))
	for _, svc := range f.Services {
		if name := strings.TrimSpace(svc); name != "" {
			services = append(services, name)
		}
	}
	f.Services = services
	f.Keyword = strings.TrimSpace(f.Keyword)

	if len(f.Services) == 0 && f.Keyword == "" {
		return nil, fmt.Errorf("%w: provide at least services or keywords to search", ErrInvalidInput)
	}

	switch {
	case f.Limit <= 0:
		f.Limit = DefaultSearchLimit
	case f.Limit > MaxSearchLimit:
		f.Limit = MaxSearchLimit
	}

	matches, err := s.store.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search incidents: %w", err)
	}
	return matches, nil
}
