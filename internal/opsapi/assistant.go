package opsapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
)

type askRequest struct {
	Question string `json:"question"`
}

func (a *API) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	rr, err := a.assistant.Ask(r.Context(), req.Question)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("opsdash.run.id", rr.ID),
	)
	a.writeJSON(w, r, http.StatusOK, rr)
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rr, ok, err := a.assistant.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !ok {
		a.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	a.writeJSON(w, r, http.StatusOK, rr)
}
