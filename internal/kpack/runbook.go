package kpack

import (
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

// RunbookSuggestion renders a markdown runbook patch for a resolved
// incident. The patch is a suggestion for human review, never merged
// automatically.
func RunbookSuggestion(inc *incident.Incident) string {
	services := strings.Join(inc.AffectedServices, ", ")
	if services == "" {
		services = "unknown"
	}

	var gotchas string
	if len(inc.Pack.Gotchas) > 0 {
		var b strings.Builder
		for _, g := range inc.Pack.Gotchas {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		gotchas = fmt.Sprintf("\n### Gotchas\n\n%s", b.String())
	}

	return fmt.Sprintf(`### Incident #%d: %s

**Severity:** %s
**Affected Services:** %s
**Duration:** %s → %s

### Root Cause

%s

### Resolution Steps

%s
%s
### Prevention

<!-- TODO: Add prevention steps based on root cause analysis -->

### Detection

To detect this issue early, monitor for:
- Timeline query: `+"`incident_%d_timeline`"+` (saved to knowledge base)
- Similar incidents: `+"`find_similar_incidents(services=%q)`"+` or keywords from root cause

---
_Auto-generated from incident #%d. Review before merging into runbooks._`,
		inc.ID, inc.Title,
		inc.Severity,
		services,
		formatStamp(inc.StartedAt), formatStampPtr(inc.ResolvedAt),
		inc.RootCause,
		inc.Resolution,
		gotchas,
		inc.ID,
		services,
		inc.ID,
	)
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatStampPtr(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return formatStamp(*t)
}
