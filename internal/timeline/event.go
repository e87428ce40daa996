package timeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event sources merged into the unified view.
const (
	SourceDeploy   = "deploy"
	SourceDocker   = "docker"
	SourceIncident = "incident"
)

// Event is a single entry from the ops_unified_timeline view. Events are
// produced by upstream ingestion and never mutated here.
type Event struct {
	OccurredAt  time.Time       `json:"occurred_at"`
	Source      string          `json:"source"`
	EventType   string          `json:"event_type"`
	Entity      string          `json:"entity,omitempty"`
	Environment string          `json:"environment,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
}

// sourceTag maps a source to its one-character timeline tag.
func sourceTag(source string) string {
	switch source {
	case SourceDeploy:
		return "D"
	case SourceDocker:
		return "C"
	case SourceIncident:
		return "!"
	}
	return "?"
}

// Line renders the event in the compact timeline encoding.
func (e Event) Line() string {
	ts := "?"
	if !e.OccurredAt.IsZero() {
		ts = e.OccurredAt.UTC().Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("[%s] %s | %s/%s | %s (%s)",
		sourceTag(e.Source), ts, orUnknown(e.Source), orUnknown(e.EventType),
		orUnknown(e.Entity), orUnknown(e.Environment))
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
