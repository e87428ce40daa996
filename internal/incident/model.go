package incident

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity classifies an incident. The set is closed and enforced at the
// boundary: anything else is rejected with ErrInvalidInput.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the accepted severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Incident is a tracked operational event with a lifecycle. An incident is
// open iff ResolvedAt is nil; resolution is a one-way transition.
type Incident struct {
	ID               int64         `json:"id"`
	Title            string        `json:"title"`
	Severity         Severity      `json:"severity"`
	StartedAt        time.Time     `json:"started_at"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
	AffectedServices []string      `json:"affected_services"`
	RootCause        string        `json:"root_cause,omitempty"`
	Resolution       string        `json:"resolution,omitempty"`
	TimelineQuery    string        `json:"timeline_query,omitempty"`
	Pack             KnowledgePack `json:"knowledge_pack,omitempty"`
}

// Resolved reports whether the incident has been resolved.
func (i *Incident) Resolved() bool {
	return i.ResolvedAt != nil
}

// PackArtifacts links an incident to its derived knowledge documents.
type PackArtifacts struct {
	ValidatedQuery string `json:"validated_query,omitempty"`
	Learning       string `json:"learning"`
}

// KnowledgePack is the structured document attached to an incident. Known
// sub-fields are typed; unknown keys survive round-trips through Extra so
// updates merge rather than overwrite.
type KnowledgePack struct {
	Gotchas     []string       `json:"-"`
	Symptoms    []string       `json:"-"`
	Generated   bool           `json:"-"`
	GeneratedAt *time.Time     `json:"-"`
	Artifacts   *PackArtifacts `json:"-"`

	// Extra holds keys this core does not interpret.
	Extra map[string]json.RawMessage `json:"-"`
}

// pack field names on the wire.
const (
	packKeyGotchas     = "gotchas"
	packKeySymptoms    = "symptoms"
	packKeyGenerated   = "knowledge_pack_generated"
	packKeyGeneratedAt = "generated_at"
	packKeyArtifacts   = "artifacts"
)

// IsZero reports whether the pack carries no data at all.
func (p KnowledgePack) IsZero() bool {
	return len(p.Gotchas) == 0 && len(p.Symptoms) == 0 && !p.Generated &&
		p.GeneratedAt == nil && p.Artifacts == nil && len(p.Extra) == 0
}

// MarshalJSON flattens the known fields and Extra into a single object.
func (p KnowledgePack) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+5)
	for k, v := range p.Extra {
		out[k] = v
	}

	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal pack field %s: %w", key, err)
		}
		out[key] = raw
		return nil
	}

	if len(p.Gotchas) > 0 {
		if err := set(packKeyGotchas, p.Gotchas); err != nil {
			return nil, err
		}
	}
	if len(p.Symptoms) > 0 {
		if err := set(packKeySymptoms, p.Symptoms); err != nil {
			return nil, err
		}
	}
	if p.Generated {
		if err := set(packKeyGenerated, true); err != nil {
			return nil, err
		}
	}
	if p.GeneratedAt != nil {
		if err := set(packKeyGeneratedAt, p.GeneratedAt.UTC().Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}
	if p.Artifacts != nil {
		if err := set(packKeyArtifacts, p.Artifacts); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON lifts known keys into typed fields and stashes the rest in
// Extra.
func (p *KnowledgePack) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal knowledge pack: %w", err)
	}

	*p = KnowledgePack{}
	for key, val := range raw {
		switch key {
		case packKeyGotchas:
			if err := json.Unmarshal(val, &p.Gotchas); err != nil {
				return fmt.Errorf("unmarshal pack gotchas: %w", err)
			}
		case packKeySymptoms:
			if err := json.Unmarshal(val, &p.Symptoms); err != nil {
				return fmt.Errorf("unmarshal pack symptoms: %w", err)
			}
		case packKeyGenerated:
			if err := json.Unmarshal(val, &p.Generated); err != nil {
				return fmt.Errorf("unmarshal pack generated flag: %w", err)
			}
		case packKeyGeneratedAt:
			var ts string
			if err := json.Unmarshal(val, &ts); err != nil {
				return fmt.Errorf("unmarshal pack generated_at: %w", err)
			}
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return fmt.Errorf("parse pack generated_at: %w", err)
			}
			p.GeneratedAt = &t
		case packKeyArtifacts:
			if err := json.Unmarshal(val, &p.Artifacts); err != nil {
				return fmt.Errorf("unmarshal pack artifacts: %w", err)
			}
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[key] = val
		}
	}
	return nil
}

// Merge overlays the non-zero fields of update onto p and returns the
// result. Keys present only in p survive: the update rule for knowledge
// packs is merge, never overwrite.
func (p KnowledgePack) Merge(update KnowledgePack) KnowledgePack {
	out := p

	if len(update.Gotchas) > 0 {
		out.Gotchas = update.Gotchas
	}
	if len(update.Symptoms) > 0 {
		out.Symptoms = update.Symptoms
	}
	if update.Generated {
		out.Generated = true
	}
	if update.GeneratedAt != nil {
		out.GeneratedAt = update.GeneratedAt
	}
	if update.Artifacts != nil {
		out.Artifacts = update.Artifacts
	}
	if len(update.Extra) > 0 {
		merged := make(map[string]json.RawMessage, len(p.Extra)+len(update.Extra))
		for k, v := range p.Extra {
			merged[k] = v
		}
		for k, v := range update.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}
