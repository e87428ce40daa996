// Package kpack turns resolved incidents into durable knowledge artifacts:
// a validated timeline query, an incident signature learning, and a runbook
// suggestion for human review.
package kpack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/opsdash/internal/docstore"
	"github.com/linnemanlabs/opsdash/internal/incident"
)

// Generation precondition failures.
var (
	ErrNotFound    = errors.New("incident not found")
	ErrNotResolved = errors.New("incident not resolved")
	ErrIncomplete  = errors.New("incident missing root cause or resolution")
)

// GenerateResult reports what a generation run produced. Individual artifact
// failures are recorded in Notes rather than aborting the run; the query,
// signature, runbook, and metadata update fail independently.
type GenerateResult struct {
	IncidentID   int64
	Title        string
	QueryName    string // empty when the incident has no timeline query
	LearningName string
	Runbook      string
	Notes        []string
	Pack         incident.KnowledgePack
}

// Service generates and retrieves knowledge packs.
type Service struct {
	incidents incident.Store
	knowledge docstore.Store
	learnings docstore.Store
	patterns  []SymptomPattern
	now       func() time.Time
	logger    log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSymptomPatterns replaces the built-in symptom table.
func WithSymptomPatterns(patterns []SymptomPattern) Option {
	return func(s *Service) { s.patterns = patterns }
}

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a knowledge pack service over the incident store and the
// two document collections.
func NewService(incidents incident.Store, knowledge, learnings docstore.Store, logger log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		incidents: incidents,
		knowledge: knowledge,
		learnings: learnings,
		patterns:  DefaultSymptomPatterns,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate builds the knowledge pack for a resolved incident. Preconditions
// fail fast with a typed error; once generation starts, each artifact is
// attempted independently and its outcome recorded in the result Notes.
func (s *Service) Generate(ctx context.Context, incidentID int64) (*GenerateResult, error) {
	inc, ok, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("load incident: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrNotFound, incidentID)
	}
	if !inc.Resolved() {
		return nil, fmt.Errorf("%w: #%d", ErrNotResolved, incidentID)
	}
	if inc.RootCause == "" || inc.Resolution == "" {
		return nil, fmt.Errorf("%w: #%d", ErrIncomplete, incidentID)
	}

	res := &GenerateResult{
		IncidentID:   inc.ID,
		Title:        inc.Title,
		LearningName: LearningName(inc.ID, inc.Title),
	}

	if inc.TimelineQuery != "" {
		res.QueryName = QueryName(inc.ID)
		s.saveQuery(ctx, inc, res)
	}
	s.saveSignature(ctx, inc, res)

	res.Runbook = RunbookSuggestion(inc)
	res.Notes = append(res.Notes, "Runbook suggestion generated (see below)")

	s.updatePackMetadata(ctx, inc, res)

	s.logger.Info(ctx, "knowledge pack generated",
		"incident_id", inc.ID,
		"query_name", res.QueryName,
		"learning_name", res.LearningName,
	)
	return res, nil
}

func (s *Service) saveQuery(ctx context.Context, inc *incident.Incident, res *GenerateResult) {
	content, err := marshalPayload(buildQueryPayload(inc))
	if err == nil {
		_, err = s.knowledge.Insert(ctx, res.QueryName, content, true)
	}
	if err != nil {
		s.logger.Warn(ctx, "validated query save failed", "incident_id", inc.ID, "error", err)
		res.Notes = append(res.Notes, fmt.Sprintf("Query save failed: %v", err))
		return
	}
	res.Notes = append(res.Notes, fmt.Sprintf("Validated query '%s' saved", res.QueryName))
}

func (s *Service) saveSignature(ctx context.Context, inc *incident.Incident, res *GenerateResult) {
	content, err := marshalPayload(buildSignature(inc, s.patterns))
	if err == nil {
		_, err = s.learnings.Insert(ctx, res.LearningName, content, true)
	}
	if err != nil {
		s.logger.Warn(ctx, "incident signature save failed", "incident_id", inc.ID, "error", err)
		res.Notes = append(res.Notes, fmt.Sprintf("Learning save failed: %v", err))
		return
	}
	res.Notes = append(res.Notes, fmt.Sprintf("Incident signature '%s' saved", res.LearningName))
}

func (s *Service) updatePackMetadata(ctx context.Context, inc *incident.Incident, res *GenerateResult) {
	generatedAt := s.now().UTC()
	updated := inc.Pack.Merge(incident.KnowledgePack{
		Generated:   true,
		GeneratedAt: &generatedAt,
		Artifacts: &incident.PackArtifacts{
			ValidatedQuery: res.QueryName,
			Learning:       res.LearningName,
		},
	})

	if err := s.incidents.UpdateKnowledgePack(ctx, inc.ID, updated); err != nil {
		s.logger.Warn(ctx, "knowledge pack update failed", "incident_id", inc.ID, "error", err)
		res.Notes = append(res.Notes, fmt.Sprintf("Knowledge pack update failed: %v", err))
		res.Pack = inc.Pack
		return
	}
	res.Notes = append(res.Notes, "Incident knowledge_pack metadata updated")
	res.Pack = updated
}

// Retrieve loads the incident whose pack is being inspected. The caller
// distinguishes a generated pack via Pack.Generated.
func (s *Service) Retrieve(ctx context.Context, incidentID int64) (*incident.Incident, error) {
	inc, ok, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("load incident: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrNotFound, incidentID)
	}
	return inc, nil
}
