package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/opsdash/internal/kpack"
)

// GenerateKnowledgePack turns a resolved incident into durable knowledge
// artifacts.
type GenerateKnowledgePack struct {
	packs *kpack.Service
}

// NewGenerateKnowledgePack creates the knowledge pack generation tool.
func NewGenerateKnowledgePack(packs *kpack.Service) *GenerateKnowledgePack {
	return &GenerateKnowledgePack{packs: packs}
}

type packInput struct {
	IncidentID int64 `json:"incident_id"`
}

func (t *GenerateKnowledgePack) Name() string { return "generate_knowledge_pack" }

func (t *GenerateKnowledgePack) Description() string {
	return `Generate a knowledge pack from a resolved incident.

Reads the incident marker, extracts the timeline query, root cause,
resolution, and affected services, then auto-generates:
1. A validated query saved to the knowledge base
2. An incident signature saved as a learning
3. A runbook suggestion (returned as markdown, not auto-merged)

Call this AFTER resolving an incident with resolve_incident.`
}

func (t *GenerateKnowledgePack) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "incident_id": {
                "type": "integer",
                "description": "The resolved incident's ID."
            }
        },
        "required": ["incident_id"]
    }`)
}

func (t *GenerateKnowledgePack) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input packInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}

	res, err := t.packs.Generate(ctx, input.IncidentID)
	switch {
	case errors.Is(err, kpack.ErrNotFound):
		return errorReport("Incident #%d not found.", input.IncidentID)
	case errors.Is(err, kpack.ErrNotResolved):
		return errorReport("Incident #%d is not yet resolved. Resolve it first.", input.IncidentID)
	case errors.Is(err, kpack.ErrIncomplete):
		return errorReport("Incident #%d is missing root_cause or resolution. Both are required to generate a knowledge pack.", input.IncidentID)
	case err != nil:
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Knowledge Pack Generated** for Incident #%d: %s\n\n**Artifacts:**\n", res.IncidentID, res.Title)
	for _, note := range res.Notes {
		fmt.Fprintf(&b, "- %s\n", note)
	}
	fmt.Fprintf(&b, "\n---\n\n**Runbook Suggestion** (review before merging):\n\n%s", res.Runbook)
	return reportResult(b.String())
}

// GetIncidentKnowledgePack reads an incident's knowledge pack back out.
type GetIncidentKnowledgePack struct {
	packs *kpack.Service
}

// NewGetIncidentKnowledgePack creates the knowledge pack retrieval tool.
func NewGetIncidentKnowledgePack(packs *kpack.Service) *GetIncidentKnowledgePack {
	return &GetIncidentKnowledgePack{packs: packs}
}

func (t *GetIncidentKnowledgePack) Name() string { return "get_incident_knowledge_pack" }

func (t *GetIncidentKnowledgePack) Description() string {
	return `Retrieve the knowledge pack for a resolved incident.

Returns the full knowledge pack including root cause, resolution, gotchas,
validated queries, and any learnings generated.`
}

func (t *GetIncidentKnowledgePack) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "incident_id": {
                "type": "integer",
                "description": "The incident ID to look up."
            }
        },
        "required": ["incident_id"]
    }`)
}

func (t *GetIncidentKnowledgePack) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input packInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}

	inc, err := t.packs.Retrieve(ctx, input.IncidentID)
	if err != nil {
		if errors.Is(err, kpack.ErrNotFound) {
			return errorReport("Incident #%d not found.", input.IncidentID)
		}
		return nil, err
	}

	services := strings.Join(inc.AffectedServices, ", ")
	if services == "" {
		services = "unknown"
	}
	status := "ONGOING"
	if inc.Resolved() {
		status = "Resolved"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Knowledge Pack** — Incident #%d: %s\n", inc.ID, inc.Title)
	fmt.Fprintf(&b, "- Severity: %s\n- Services: %s\n- Status: %s\n\n", inc.Severity, services, status)

	if inc.RootCause != "" {
		fmt.Fprintf(&b, "**Root Cause:** %s\n", inc.RootCause)
	}
	if inc.Resolution != "" {
		fmt.Fprintf(&b, "**Resolution:** %s\n", inc.Resolution)
	}

	if inc.Pack.IsZero() {
		b.WriteString("\n_No knowledge pack generated yet. Use `generate_knowledge_pack` after resolving._")
		return reportResult(b.String())
	}

	b.WriteString("\n")
	if len(inc.Pack.Gotchas) > 0 {
		b.WriteString("**Gotchas:**\n")
		for _, g := range inc.Pack.Gotchas {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	if inc.Pack.Artifacts != nil {
		b.WriteString("\n**Linked Artifacts:**\n")
		if inc.Pack.Artifacts.ValidatedQuery != "" {
			fmt.Fprintf(&b, "- Query: `%s`\n", inc.Pack.Artifacts.ValidatedQuery)
		}
		if inc.Pack.Artifacts.Learning != "" {
			fmt.Fprintf(&b, "- Learning: `%s`\n", inc.Pack.Artifacts.Learning)
		}
	}
	if inc.Pack.GeneratedAt != nil {
		fmt.Fprintf(&b, "\n_Knowledge pack generated: %s_", inc.Pack.GeneratedAt.UTC().Format(time.RFC3339))
	}
	return reportResult(b.String())
}
