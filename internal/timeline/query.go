package timeline

import (
	"fmt"
	"time"
)

// investigationPadding widens the stored replay window on both sides of the
// incident start so surrounding deploys and container churn are captured.
const investigationPadding = 15 * time.Minute

// QueryText builds the SQL text for an ad-hoc window so the exact query, not
// just its rendering, is reproducible from (start, end, entityFilter, limit).
func QueryText(w Window) string {
	filter := ""
	if w.EntityFilter != "" {
		filter = fmt.Sprintf("AND entity ILIKE '%%%s%%' ", w.EntityFilter)
	}
	return fmt.Sprintf(
		"SELECT occurred_at, source, event_type, entity, environment, details "+
			"FROM ops_unified_timeline "+
			"WHERE occurred_at BETWEEN '%s' AND '%s' "+
			"%sORDER BY occurred_at LIMIT %d",
		w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339),
		filter, w.EffectiveLimit(),
	)
}

// InvestigationQuery builds the replayable query stored on an incident at
// creation time. The window is [started_at - 15min, NOW() + 15min]. The
// upper bound uses the database's wall clock at replay time, so the window
// keeps widening the longer after creation the query is replayed.
func InvestigationQuery(startedAt time.Time) string {
	return fmt.Sprintf(
		"SELECT occurred_at, source, event_type, entity, environment, details "+
			"FROM ops_unified_timeline "+
			"WHERE occurred_at BETWEEN '%s'::timestamptz - INTERVAL '15 minutes' "+
			"AND NOW() + INTERVAL '15 minutes' "+
			"ORDER BY occurred_at",
		startedAt.UTC().Format(time.RFC3339),
	)
}

// InvestigationWindow is the concrete window InvestigationQuery describes,
// evaluated against the given wall clock. Used when replaying through the
// Store instead of as raw SQL.
func InvestigationWindow(startedAt, now time.Time) Window {
	return Window{
		Start: startedAt.Add(-investigationPadding),
		End:   now.Add(investigationPadding),
	}
}
