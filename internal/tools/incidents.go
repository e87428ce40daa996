package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/opsdash/internal/incident"
	"github.com/linnemanlabs/opsdash/internal/timeline"
)

// ReconstructTimeline reads the unified event stream for a time window.
type ReconstructTimeline struct {
	timelines *timeline.Service
}

// NewReconstructTimeline creates the timeline reconstruction tool.
func NewReconstructTimeline(timelines *timeline.Service) *ReconstructTimeline {
	return &ReconstructTimeline{timelines: timelines}
}

type reconstructInput struct {
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	EntityFilter string `json:"entity_filter,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

func (t *ReconstructTimeline) Name() string { return "reconstruct_timeline" }

func (t *ReconstructTimeline) Description() string {
	return `Reconstruct an incident timeline for a given time window.

Queries the unified timeline which merges deploy events, docker container
events, and incident markers into a single chronological stream. This is the
primary tool for incident investigation and post-mortem analysis.

Use entity_filter to narrow to one service (partial match, e.g. 'ghost').`
}

func (t *ReconstructTimeline) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "start_time": {
                "type": "string",
                "description": "Start of time window (ISO 8601, e.g. '2025-01-15T03:00:00Z')."
            },
            "end_time": {
                "type": "string",
                "description": "End of time window (ISO 8601, e.g. '2025-01-15T04:00:00Z')."
            },
            "entity_filter": {
                "type": "string",
                "description": "Optional entity name filter (partial match, e.g. 'ghost')."
            },
            "limit": {
                "type": "integer",
                "description": "Maximum events to return. Default 200, max 500."
            }
        },
        "required": ["start_time", "end_time"]
    }`)
}

func (t *ReconstructTimeline) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input reconstructInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}

	start, err := time.Parse(time.RFC3339, input.StartTime)
	if err != nil {
		return errorReport("start_time must be ISO 8601, got %q", input.StartTime)
	}
	end, err := time.Parse(time.RFC3339, input.EndTime)
	if err != nil {
		return errorReport("end_time must be ISO 8601, got %q", input.EndTime)
	}

	window := timeline.Window{
		Start:        start,
		End:          end,
		EntityFilter: strings.TrimSpace(input.EntityFilter),
		Limit:        input.Limit,
	}

	events, err := t.timelines.Reconstruct(ctx, window)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return reportResult(timeline.RenderEmpty(window))
	}
	return reportResult(timeline.Render(events, window))
}

// CreateIncidentMarker records a new incident in the registry.
type CreateIncidentMarker struct {
	incidents *incident.Service
}

// NewCreateIncidentMarker creates the incident creation tool.
func NewCreateIncidentMarker(incidents *incident.Service) *CreateIncidentMarker {
	return &CreateIncidentMarker{incidents: incidents}
}

type createMarkerInput struct {
	Title            string `json:"title"`
	Severity         string `json:"severity"`
	StartedAt        string `json:"started_at"`
	AffectedServices string `json:"affected_services"`
	RootCause        string `json:"root_cause,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
}

func (t *CreateIncidentMarker) Name() string { return "create_incident_marker" }

func (t *CreateIncidentMarker) Description() string {
	return `Create an incident marker in the ops warehouse.

Records a new incident for tracking and future pattern matching. Incident
markers anchor timeline reconstructions and link to knowledge packs when the
incident is resolved.`
}

func (t *CreateIncidentMarker) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "title": {
                "type": "string",
                "description": "Short incident title (e.g. 'Ghost OOM crash loop')."
            },
            "severity": {
                "type": "string",
                "enum": ["critical", "warning", "info"],
                "description": "Incident severity."
            },
            "started_at": {
                "type": "string",
                "description": "When the incident began (ISO 8601)."
            },
            "affected_services": {
                "type": "string",
                "description": "Comma-separated service names (e.g. 'ghost-blog,ghost-db')."
            },
            "root_cause": {
                "type": "string",
                "description": "Root cause analysis (if known)."
            },
            "resolution": {
                "type": "string",
                "description": "How the incident was resolved (if resolved)."
            }
        },
        "required": ["title", "severity", "started_at", "affected_services"]
    }`)
}

func (t *CreateIncidentMarker) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input createMarkerInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}

	startedAt, err := time.Parse(time.RFC3339, input.StartedAt)
	if err != nil {
		return errorReport("started_at must be ISO 8601, got %q", input.StartedAt)
	}

	inc, err := t.incidents.Create(ctx, incident.CreateParams{
		Title:            input.Title,
		Severity:         incident.Severity(input.Severity),
		StartedAt:        startedAt,
		AffectedServices: incident.ParseServices(input.AffectedServices),
		RootCause:        input.RootCause,
		Resolution:       input.Resolution,
	})
	if err != nil {
		if errors.Is(err, incident.ErrInvalidInput) {
			return errorReport("%v", err)
		}
		return nil, err
	}

	return reportResult(fmt.Sprintf(
		"**Incident Created:** #%d\n- Title: %s\n- Severity: %s\n- Started: %s\n- Services: %s\n- Timeline query stored for replay",
		inc.ID, inc.Title, inc.Severity, input.StartedAt, strings.Join(inc.AffectedServices, ", "),
	))
}

// ResolveIncident closes an open incident with its findings.
type ResolveIncident struct {
	incidents *incident.Service
}

// NewResolveIncident creates the incident resolution tool.
func NewResolveIncident(incidents *incident.Service) *ResolveIncident {
	return &ResolveIncident{incidents: incidents}
}

type resolveInput struct {
	IncidentID    int64  `json:"incident_id"`
	RootCause     string `json:"root_cause"`
	Resolution    string `json:"resolution"`
	KnowledgePack string `json:"knowledge_pack,omitempty"`
}

func (t *ResolveIncident) Name() string { return "resolve_incident" }

func (t *ResolveIncident) Description() string {
	return `Mark an incident as resolved and store resolution details.

Updates the incident marker with root cause, resolution, and an optional
knowledge pack (JSON) containing gotchas, validated queries, and runbook
patches discovered during resolution.`
}

func (t *ResolveIncident) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "incident_id": {
                "type": "integer",
                "description": "The incident ID to resolve."
            },
            "root_cause": {
                "type": "string",
                "description": "Root cause analysis."
            },
            "resolution": {
                "type": "string",
                "description": "How the incident was resolved."
            },
            "knowledge_pack": {
                "type": "string",
                "description": "JSON string with resolution artifacts (optional)."
            }
        },
        "required": ["incident_id", "root_cause", "resolution"]
    }`)
}

func (t *ResolveIncident) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input resolveInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.RootCause == "" || input.Resolution == "" {
		return errorReport("root_cause and resolution are both required")
	}

	var packExtra json.RawMessage
	if input.KnowledgePack != "" {
		packExtra = json.RawMessage(input.KnowledgePack)
	}

	inc, err := t.incidents.Resolve(ctx, input.IncidentID, input.RootCause, input.Resolution, packExtra)
	switch {
	case errors.Is(err, incident.ErrMalformedPack):
		return errorReport("Invalid JSON in knowledge_pack: %s", truncate(input.KnowledgePack, 100))
	case errors.Is(err, incident.ErrNotFound):
		return errorReport("Incident #%d not found or already resolved.", input.IncidentID)
	case err != nil:
		return nil, err
	}

	packNote := "none"
	if !inc.Pack.IsZero() {
		packNote = "stored"
	}
	return reportResult(fmt.Sprintf(
		"**Incident Resolved:** #%d — %s\n- Started: %s\n- Resolved: %s\n- Root Cause: %s\n- Resolution: %s\n- Knowledge Pack: %s",
		inc.ID, inc.Title, fmtTime(inc.StartedAt), fmtTimePtr(inc.ResolvedAt), inc.RootCause, inc.Resolution, packNote,
	))
}

// FindSimilarIncidents searches incident history by symptom pattern.
type FindSimilarIncidents struct {
	incidents *incident.Service
}

// NewFindSimilarIncidents creates the incident search tool.
func NewFindSimilarIncidents(incidents *incident.Service) *FindSimilarIncidents {
	return &FindSimilarIncidents{incidents: incidents}
}

type searchInput struct {
	Services string `json:"services,omitempty"`
	Keywords string `json:"keywords,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (t *FindSimilarIncidents) Name() string { return "find_similar_incidents" }

func (t *FindSimilarIncidents) Description() string {
	return `Find past incidents matching a symptom pattern.

Searches incident history by affected services and/or keyword matching
against title and root cause. Use this to check if a current issue matches a
known incident pattern before improvising a fix.`
}

func (t *FindSimilarIncidents) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "services": {
                "type": "string",
                "description": "Comma-separated service names to match (e.g. 'ghost-blog,traefik')."
            },
            "keywords": {
                "type": "string",
                "description": "Keywords to match in title or root_cause (e.g. 'OOM crash')."
            },
            "limit": {
                "type": "integer",
                "description": "Maximum results. Default 10, max 50."
            }
        }
    }`)
}

func (t *FindSimilarIncidents) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input searchInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}

	matches, err := t.incidents.Search(ctx, incident.SearchFilter{
		Services: incident.ParseServices(input.Services),
		Keyword:  input.Keywords,
		Limit:    input.Limit,
	})
	if err != nil {
		if errors.Is(err, incident.ErrInvalidInput) {
			return errorReport("Provide at least services or keywords to search.")
		}
		return nil, err
	}

	if len(matches) == 0 {
		return reportResult(fmt.Sprintf(
			"No matching incidents found.\nSearched: services=%s, keywords=%s",
			input.Services, input.Keywords,
		))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Similar Incidents** (%d matches)\n\n", len(matches))
	for i := range matches {
		inc := &matches[i]
		status := "ONGOING"
		if inc.Resolved() {
			status = "resolved"
		}
		packTag := "-"
		if !inc.Pack.IsZero() {
			packTag = "+"
		}
		fmt.Fprintf(&b, "[%s] #%d [%s] %s (%s)\n", packTag, inc.ID, inc.Severity, inc.Title, status)
		if inc.RootCause != "" {
			fmt.Fprintf(&b, "    Root cause: %s\n", truncate(inc.RootCause, 100))
		}
		if inc.Resolution != "" {
			fmt.Fprintf(&b, "    Resolution: %s\n", truncate(inc.Resolution, 100))
		}
		services := strings.Join(inc.AffectedServices, ", ")
		if services == "" {
			services = "unknown"
		}
		fmt.Fprintf(&b, "    Services: %s\n\n", services)
	}
	return reportResult(strings.TrimRight(b.String(), "\n"))
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return fmtTime(*t)
}
