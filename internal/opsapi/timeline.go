package opsapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/linnemanlabs/opsdash/internal/timeline"
)

func (a *API) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "start must be an RFC3339 timestamp"})
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "end must be an RFC3339 timestamp"})
		return
	}
	// The window is inclusive on both ends; start == end is a valid
	// zero-width query.
	if end.Before(start) {
		a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "end must not be before start"})
		return
	}

	win := timeline.Window{
		Start:        start,
		End:          end,
		EntityFilter: q.Get("entity"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			a.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		win.Limit = n
	}

	events, err := a.timelines.Reconstruct(r.Context(), win)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rendered := timeline.RenderEmpty(win)
	if len(events) > 0 {
		rendered = timeline.Render(events, win)
	}
	if events == nil {
		events = []timeline.Event{}
	}
	a.writeJSON(w, r, http.StatusOK, map[string]any{
		"events":   events,
		"count":    len(events),
		"rendered": rendered,
	})
}
