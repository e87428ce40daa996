package kpack

import (
	"strings"
	"time"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

// SymptomPattern maps a lowercase substring to its symptom label. Patterns
// are checked in order; several may fire for the same text (e.g. "oom" and
// "memory" both matching an OOM kill).
type SymptomPattern struct {
	Pattern string
	Label   string
}

// DefaultSymptomPatterns is the built-in symptom table. Keep it an ordered
// list, not a rules engine.
var DefaultSymptomPatterns = []SymptomPattern{
	{"oom", "Out of memory / OOM kill"},
	{"crash", "Service crash / restart loop"},
	{"timeout", "Request timeout"},
	{"502", "HTTP 502 Bad Gateway"},
	{"503", "HTTP 503 Service Unavailable"},
	{"521", "Cloudflare 521 (origin down)"},
	{"cert", "TLS certificate issue"},
	{"dns", "DNS resolution failure"},
	{"disk", "Disk space exhaustion"},
	{"memory", "Memory pressure"},
	{"cpu", "CPU saturation"},
	{"connection refused", "Connection refused"},
	{"deploy", "Deployment failure"},
	{"rollback", "Rollback required"},
}

// ExtractSymptoms tags the lowercased title+rootCause text against the
// pattern table, appends symptoms carried in the prior pack, and
// deduplicates preserving first-seen order.
func ExtractSymptoms(title, rootCause string, prior *incident.KnowledgePack, patterns []SymptomPattern) []string {
	if patterns == nil {
		patterns = DefaultSymptomPatterns
	}

	text := strings.ToLower(title + " " + rootCause)

	var symptoms []string
	for _, p := range patterns {
		if strings.Contains(text, p.Pattern) {
			symptoms = append(symptoms, p.Label)
		}
	}
	if prior != nil {
		symptoms = append(symptoms, prior.Symptoms...)
	}

	seen := make(map[string]struct{}, len(symptoms))
	out := symptoms[:0]
	for _, sym := range symptoms {
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// ComputeDuration returns the incident duration in whole minutes, clamped
// to zero so clock skew never yields a negative duration. ok=false when
// either timestamp is missing.
func ComputeDuration(startedAt time.Time, resolvedAt *time.Time) (int, bool) {
	if startedAt.IsZero() || resolvedAt == nil || resolvedAt.IsZero() {
		return 0, false
	}
	minutes := int(resolvedAt.Sub(startedAt).Seconds() / 60)
	if minutes < 0 {
		minutes = 0
	}
	return minutes, true
}

// ComputeDurationText is ComputeDuration for RFC3339 textual timestamps.
func ComputeDurationText(startedAt, resolvedAt string) (int, bool) {
	start, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339, resolvedAt)
	if err != nil {
		return 0, false
	}
	return ComputeDuration(start, &end)
}

// Slugify converts text into a short safe identifier: lowercased, spaces to
// underscores, all other non-alphanumerics stripped, at most 40 characters.
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '_', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
		if b.Len() >= 40 {
			break
		}
	}
	return b.String()
}
