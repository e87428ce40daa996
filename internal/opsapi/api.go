// Package opsapi exposes the incident registry, timeline reconstructor,
// knowledge pack pipeline, and assistant over HTTP under /api/v1.
package opsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/opsdash/internal/assistant"
	"github.com/linnemanlabs/opsdash/internal/incident"
	"github.com/linnemanlabs/opsdash/internal/kpack"
	"github.com/linnemanlabs/opsdash/internal/timeline"
)

// IncidentService defines the incident operations opsapi needs.
type IncidentService interface {
	Create(ctx context.Context, p incident.CreateParams) (*incident.Incident, error)
	Resolve(ctx context.Context, id int64, rootCause, resolution string, packExtra json.RawMessage) (*incident.Incident, error)
	Get(ctx context.Context, id int64) (*incident.Incident, error)
	Search(ctx context.Context, f incident.SearchFilter) ([]incident.Incident, error)
}

// TimelineService defines the timeline operations opsapi needs.
type TimelineService interface {
	Reconstruct(ctx context.Context, w timeline.Window) ([]timeline.Event, error)
}

// PackService defines the knowledge pack operations opsapi needs.
type PackService interface {
	Generate(ctx context.Context, incidentID int64) (*kpack.GenerateResult, error)
	Retrieve(ctx context.Context, incidentID int64) (*incident.Incident, error)
}

// AssistantService defines the assistant operations opsapi needs.
// Nil disables the /assistant routes.
type AssistantService interface {
	Ask(ctx context.Context, question string) (*assistant.RunResult, error)
	Get(ctx context.Context, id string) (*assistant.RunResult, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	incidents IncidentService
	timelines TimelineService
	packs     PackService
	assistant AssistantService
}

// New creates a new API handler. assistant may be nil.
func New(logger log.Logger, incidents IncidentService, timelines TimelineService, packs PackService, assistantSvc AssistantService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if incidents == nil {
		panic(xerrors.New("incident service is required"))
	}
	if timelines == nil {
		panic(xerrors.New("timeline service is required"))
	}
	if packs == nil {
		panic(xerrors.New("pack service is required"))
	}
	return &API{
		logger:    logger,
		incidents: incidents,
		timelines: timelines,
		packs:     packs,
		assistant: assistantSvc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/incidents", a.handleCreateIncident)
		r.Get("/incidents/search", a.handleSearchIncidents)
		r.Get("/incidents/{id}", a.handleGetIncident)
		r.Post("/incidents/{id}/resolve", a.handleResolveIncident)
		r.Post("/incidents/{id}/knowledge-pack", a.handleGeneratePack)
		r.Get("/incidents/{id}/knowledge-pack", a.handleGetPack)
		r.Get("/timeline", a.handleTimeline)
		if a.assistant != nil {
			r.Post("/assistant/ask", a.handleAsk)
			r.Get("/assistant/runs/{id}", a.handleGetRun)
		}
	})
}

// writeJSON writes v with the given status. Encoding failures are logged
// only; the status line is already on the wire.
func (a *API) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error(r.Context(), err, "encode response")
	}
}

// writeError maps a domain error onto an HTTP status and a JSON error body.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, incident.ErrInvalidInput),
		errors.Is(err, incident.ErrMalformedPack),
		errors.Is(err, assistant.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, incident.ErrNotFound),
		errors.Is(err, kpack.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, kpack.ErrNotResolved),
		errors.Is(err, kpack.ErrIncomplete):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		a.logger.Error(r.Context(), err, "request failed",
			"method", r.Method,
			"path", r.URL.Path,
		)
		a.writeJSON(w, r, status, map[string]string{"error": "internal error"})
		return
	}
	a.writeJSON(w, r, status, map[string]string{"error": err.Error()})
}
