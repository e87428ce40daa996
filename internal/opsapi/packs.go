package opsapi

import (
	"net/http"
)

func (a *API) handleGeneratePack(w http.ResponseWriter, r *http.Request) {
	id, ok := a.incidentID(w, r)
	if !ok {
		return
	}

	res, err := a.packs.Generate(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, map[string]any{
		"incident_id":   res.IncidentID,
		"title":         res.Title,
		"query_name":    res.QueryName,
		"learning_name": res.LearningName,
		"runbook":       res.Runbook,
		"notes":         res.Notes,
		"pack":          res.Pack,
	})
}

func (a *API) handleGetPack(w http.ResponseWriter, r *http.Request) {
	id, ok := a.incidentID(w, r)
	if !ok {
		return
	}

	inc, err := a.packs.Retrieve(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, map[string]any{
		"incident_id": inc.ID,
		"title":       inc.Title,
		"resolved":    inc.Resolved(),
		"pack":        inc.Pack,
	})
}
