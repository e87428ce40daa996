package kpack

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"under budget", "oom kill", 100, "oom kill"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"cut inside two-byte rune", "caché", 5, "cach"},
		{"cut inside emoji", "ok \U0001F525", 5, "ok "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := truncateRunes(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateRunes(%q, %d) = %q is not valid UTF-8", tt.in, tt.n, got)
			}
		})
	}
}

func TestBuildQueryPayload_MultibyteRootCause(t *testing.T) {
	t.Parallel()

	// 102 bytes of two-byte runes puts the 100-byte cut mid-rune.
	cause := strings.Repeat("é", 51)
	inc := &incident.Incident{
		ID:               7,
		Title:            "ghost OOM loop",
		Severity:         incident.SeverityCritical,
		AffectedServices: []string{"ghost-blog"},
		RootCause:        cause,
		TimelineQuery:    "SELECT 1",
	}

	payload := buildQueryPayload(inc)
	if !utf8.ValidString(payload.Summary) {
		t.Errorf("summary is not valid UTF-8: %q", payload.Summary)
	}
	if !strings.Contains(payload.Summary, strings.Repeat("é", 50)) {
		t.Errorf("summary lost too much of the root cause: %q", payload.Summary)
	}
	if strings.Contains(payload.Summary, cause) {
		t.Errorf("root cause was not truncated: %q", payload.Summary)
	}
}
