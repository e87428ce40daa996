// Package slack sends incident notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

const (
	maxFieldLen = 3000
	httpTimeout = 10 * time.Second
)

// Notifier posts incident lifecycle events to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, sends are no-ops.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// IncidentResolved posts a resolution summary for the incident. It satisfies
// incident.Notifier: failures are logged, never propagated, so notification
// cannot affect the resolve path.
func (n *Notifier) IncidentResolved(ctx context.Context, inc *incident.Incident) {
	if err := n.send(ctx, buildResolvedMessage(inc)); err != nil {
		n.logger.Error(ctx, err, "slack notification failed", "incident_id", inc.ID)
	}
}

func (n *Notifier) send(ctx context.Context, msg map[string]any) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildResolvedMessage(inc *incident.Incident) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(inc),
			{"type": "divider"},
			fieldsBlock(inc),
			{"type": "divider"},
			resolutionBlock(inc),
			{"type": "divider"},
			contextBlock(inc),
		},
	}
}

func headerBlock(inc *incident.Incident) map[string]any {
	text := fmt.Sprintf("%s Incident Resolved: #%d %s", severityEmoji(inc.Severity), inc.ID, inc.Title)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(inc *incident.Incident) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", inc.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Services:* %s", strings.Join(inc.AffectedServices, ", ")),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Started:* %s", inc.StartedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %s", durationText(inc)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func resolutionBlock(inc *incident.Incident) map[string]any {
	rootCause := truncate(inc.RootCause, maxFieldLen)
	if rootCause == "" {
		rootCause = "_Not recorded._"
	}
	resolution := truncate(inc.Resolution, maxFieldLen)
	if resolution == "" {
		resolution = "_Not recorded._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Root Cause*\n%s\n\n*Resolution*\n%s", rootCause, resolution),
		},
	}
}

func contextBlock(inc *incident.Incident) map[string]any {
	ts := inc.StartedAt
	if inc.ResolvedAt != nil {
		ts = *inc.ResolvedAt
	}

	pack := "no knowledge pack"
	if !inc.Pack.IsZero() {
		pack = "knowledge pack attached"
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("opsdash • incident #%d • %s • %s", inc.ID, pack, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func durationText(inc *incident.Incident) string {
	if inc.ResolvedAt == nil {
		return "ongoing"
	}
	d := inc.ResolvedAt.Sub(inc.StartedAt)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Minute).String()
}

func severityEmoji(severity incident.Severity) string {
	switch severity {
	case incident.SeverityCritical:
		return "\U0001f534" // red circle
	case incident.SeverityWarning:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
