package kpack

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

const maxSummaryCauseBytes = 100

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ValidatedQueryPayload is the document stored in the knowledge collection
// for an incident's timeline reconstruction query.
type ValidatedQueryPayload struct {
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Question   string   `json:"question"`
	Query      string   `json:"query"`
	Summary    string   `json:"summary"`
	TablesUsed []string `json:"tables_used"`
	IncidentID int64    `json:"incident_id"`
}

// SignaturePayload is the incident signature stored in the learnings
// collection: a symptom to root-cause mapping that search can surface for
// future incidents.
type SignaturePayload struct {
	Type             string   `json:"type"`
	IncidentID       int64    `json:"incident_id"`
	Title            string   `json:"title"`
	Severity         string   `json:"severity"`
	AffectedServices []string `json:"affected_services"`
	Symptoms         []string `json:"symptoms"`
	RootCause        string   `json:"root_cause"`
	Resolution       string   `json:"resolution"`
	StartedAt        string   `json:"started_at"`
	ResolvedAt       string   `json:"resolved_at"`
	DurationMinutes  *int     `json:"duration_minutes"`
	Gotchas          []string `json:"gotchas,omitempty"`
}

// QueryName returns the knowledge-base name for an incident's validated
// timeline query.
func QueryName(incidentID int64) string {
	return fmt.Sprintf("incident_%d_timeline", incidentID)
}

// LearningName returns the learnings name for an incident signature.
func LearningName(incidentID int64, title string) string {
	return fmt.Sprintf("incident_sig_%d_%s", incidentID, Slugify(title))
}

func buildQueryPayload(inc *incident.Incident) ValidatedQueryPayload {
	summaryCause := truncateRunes(inc.RootCause, maxSummaryCauseBytes)
	return ValidatedQueryPayload{
		Type:     "validated_query",
		Name:     QueryName(inc.ID),
		Question: fmt.Sprintf("Reconstruct the timeline for incident #%d: %s", inc.ID, inc.Title),
		Query:    inc.TimelineQuery,
		Summary: fmt.Sprintf("Timeline reconstruction for %s incident affecting %s. Root cause: %s",
			inc.Severity, strings.Join(inc.AffectedServices, ", "), summaryCause),
		TablesUsed: []string{"ops_unified_timeline"},
		IncidentID: inc.ID,
	}
}

func buildSignature(inc *incident.Incident, patterns []SymptomPattern) SignaturePayload {
	sig := SignaturePayload{
		Type:             "incident_signature",
		IncidentID:       inc.ID,
		Title:            inc.Title,
		Severity:         string(inc.Severity),
		AffectedServices: inc.AffectedServices,
		Symptoms:         ExtractSymptoms(inc.Title, inc.RootCause, &inc.Pack, patterns),
		RootCause:        inc.RootCause,
		Resolution:       inc.Resolution,
		StartedAt:        formatStamp(inc.StartedAt),
		ResolvedAt:       formatStampPtr(inc.ResolvedAt),
		Gotchas:          inc.Pack.Gotchas,
	}
	if minutes, ok := ComputeDuration(inc.StartedAt, inc.ResolvedAt); ok {
		sig.DurationMinutes = &minutes
	}
	return sig
}

func marshalPayload(v any) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(raw), nil
}
