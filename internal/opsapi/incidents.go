package opsapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

type createIncidentRequest struct {
	Title            string    `json:"title"`
	Severity         string    `json:"severity"`
	StartedAt        time.Time `json:"started_at"`
	AffectedServices []string  `json:"affected_services"`
	RootCause        string    `json:"root_cause,omitempty"`
	Resolution       string    `json:"resolution,omitempty"`
}

func (a *API) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if req.StartedAt.IsZero() {
		req.StartedAt = time.Now().UTC()
	}

	inc, err := a.incidents.Create(r.Context(), incident.CreateParams{
		Title:            req.Title,
		Severity:         incident.Severity(req.Severity),
		StartedAt:        req.StartedAt,
		AffectedServices: req.AffectedServices,
		RootCause:        req.RootCause,
		Resolution:       req.Resolution,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int64("opsdash.incident.id", inc.ID),
	)
	a.writeJSON(w, r, http.StatusCreated, inc)
}

type resolveIncidentRequest struct {
	RootCause     string          `json:"root_cause"`
	Resolution    string          `json:"resolution"`
	KnowledgePack json.RawMessage `json:"knowledge_pack,omitempty"`
}

func (a *API) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := a.incidentID(w, r)
	if !ok {
		return
	}

	var req resolveIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	inc, err := a.incidents.Resolve(r.Context(), id, req.RootCause, req.Resolution, req.KnowledgePack)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, inc)
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := a.incidentID(w, r)
	if !ok {
		return
	}

	inc, err := a.incidents.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, inc)
}

func (a *API) handleSearchIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := incident.SearchFilter{
		Services: incident.ParseServices(q.Get("services")),
		Keyword:  strings.TrimSpace(q.Get("keywords")),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		filter.Limit = n
	}

	matches, err := a.incidents.Search(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []incident.Incident{}
	}
	a.writeJSON(w, r, http.StatusOK, map[string]any{
		"incidents": matches,
		"count":     len(matches),
	})
}

// incidentID parses the {id} route parameter. A malformed id is a client
// error, not a lookup miss.
func (a *API) incidentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "incident id must be a positive integer"})
		return 0, false
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int64("opsdash.incident.id", id),
	)
	return id, true
}
