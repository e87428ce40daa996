package incident

import (
	"context"
	"time"
)

// SearchFilter selects incidents by service overlap and/or keyword
// substring. Conditions are combined with OR: recall over precision.
type SearchFilter struct {
	Services []string // match when affected_services intersects this set
	Keyword  string   // case-insensitive substring on title OR root_cause
	Limit    int
}

// Store is the persistence interface for incident markers.
type Store interface {
	// Create inserts the incident and returns its store-assigned id.
	Create(ctx context.Context, inc *Incident) (int64, error)

	// Get retrieves an incident by id.
	Get(ctx context.Context, id int64) (*Incident, bool, error)

	// Resolve atomically sets resolution fields on an incident iff it is
	// currently open. Returns ok=false when no open incident with that id
	// exists, covering both "never existed" and "already resolved".
	Resolve(ctx context.Context, id int64, resolvedAt time.Time, rootCause, resolution string, pack KnowledgePack) (*Incident, bool, error)

	// Search returns incidents matching the filter, most recent started_at
	// first.
	Search(ctx context.Context, f SearchFilter) ([]Incident, error)

	// UpdateKnowledgePack replaces the stored pack document for an incident.
	// Callers are expected to have merged into the loaded pack first.
	UpdateKnowledgePack(ctx context.Context, id int64, pack KnowledgePack) error
}
