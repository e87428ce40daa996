package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/linnemanlabs/opsdash/internal/infra"
)

// statusTags mark job states in listings.
var statusTags = map[string]string{
	"succeeded":        "+",
	"failed":           "!",
	"running":          "~",
	"waiting_approval": "?",
}

// infraError renders portal refusals as tool output and passes transport
// failures through as errors.
func infraError(err error) (json.RawMessage, error) {
	var re *infra.RemoteError
	if errors.As(err, &re) {
		return reportResult(fmt.Sprintf("Error (%d): %s", re.StatusCode, re.Detail))
	}
	return nil, err
}

// indentJSON pretty-prints raw JSON, truncated to max bytes.
func indentJSON(raw json.RawMessage, max int) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return truncate(string(raw), max)
	}
	s := buf.String()
	if len(s) > max {
		return truncate(s, max) + "\n... (truncated)"
	}
	return s
}

// syncJobReport renders a synchronous job's inline result, or the submission
// receipt when the job queued instead.
func syncJobReport(job *infra.Job, max int) (json.RawMessage, error) {
	if len(job.Result) > 0 {
		return reportResult(indentJSON(job.Result, max))
	}
	return reportResult(fmt.Sprintf("Job submitted: %s — status: %s", orQuestion(job.JobID), orQuestion(job.Status)))
}

func orQuestion(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func orUnknownStr(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// titleWords turns a snake_case deduction key into display form, e.g.
// "stale_updates" into "Stale Updates".
func titleWords(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SubmitInfraJob queues an infrastructure job through the portal.
type SubmitInfraJob struct {
	client *infra.Client
}

// NewSubmitInfraJob creates the job submission tool.
func NewSubmitInfraJob(client *infra.Client) *SubmitInfraJob {
	return &SubmitInfraJob{client: client}
}

type submitJobInput struct {
	Kind        string `json:"kind"`
	Args        string `json:"args,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

func (t *SubmitInfraJob) Name() string { return "submit_infra_job" }

func (t *SubmitInfraJob) Description() string {
	return `Submit an infrastructure job to the platform's job queue.

Use this to trigger deployments, scans, healthchecks, ETL runs, or any other
infrastructure operation. The job goes through the policy engine and may
require human approval before execution.`
}

func (t *SubmitInfraJob) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "kind": {
                "type": "string",
                "description": "Job kind (e.g. 'dokploy.redeploy', 'platform_updates_scan', 'ops_warehouse_etl', 'service_healthcheck')."
            },
            "args": {
                "type": "string",
                "description": "JSON string of job arguments (e.g. '{\"project\": \"ghost-blog\", \"host\": \"prod\"}')."
            },
            "requested_by": {
                "type": "string",
                "description": "Actor identifier for the audit trail. Default 'ops-dash'."
            }
        },
        "required": ["kind"]
    }`)
}

func (t *SubmitInfraJob) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input submitJobInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.Kind == "" {
		return errorReport("kind is required")
	}

	args := map[string]any{}
	if input.Args != "" {
		if err := json.Unmarshal([]byte(input.Args), &args); err != nil {
			return errorReport("Invalid JSON in args: %s", input.Args)
		}
	}

	job, err := t.client.SubmitJob(ctx, infra.JobRequest{
		Kind:        input.Kind,
		Args:        args,
		RequestedBy: input.RequestedBy,
	})
	if err != nil {
		return infraError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Job Submitted:** %s\n", orQuestion(job.JobID))
	fmt.Fprintf(&b, "- Status: %s\n", orQuestion(job.Status))
	fmt.Fprintf(&b, "- Approval Required: %v", job.ApprovalRequired)
	if job.ApprovalID != "" {
		fmt.Fprintf(&b, "\n- Approval ID: %s", job.ApprovalID)
	}
	if job.Message != "" {
		fmt.Fprintf(&b, "\n- Message: %s", job.Message)
	}
	return reportResult(b.String())
}

// GetJobStatus reads a job's current state.
type GetJobStatus struct {
	client *infra.Client
}

// NewGetJobStatus creates the job status tool.
func NewGetJobStatus(client *infra.Client) *GetJobStatus {
	return &GetJobStatus{client: client}
}

type jobStatusInput struct {
	JobID string `json:"job_id"`
}

func (t *GetJobStatus) Name() string { return "get_job_status" }

func (t *GetJobStatus) Description() string {
	return `Get the current status of an infrastructure job.

Returns the job status with summary, result details, and artifact paths.`
}

func (t *GetJobStatus) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "job_id": {
                "type": "string",
                "description": "The job ID returned from submit_infra_job."
            }
        },
        "required": ["job_id"]
    }`)
}

func (t *GetJobStatus) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input jobStatusInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.JobID == "" {
		return errorReport("job_id is required")
	}

	job, err := t.client.JobStatus(ctx, input.JobID)
	if err != nil {
		var re *infra.RemoteError
		if errors.As(err, &re) {
			return reportResult(fmt.Sprintf("Error (%d): Job not found or unavailable", re.StatusCode))
		}
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Job %s**\n- Status: %s", orQuestion(job.JobID), orQuestion(job.Status))
	if job.Summary != "" {
		fmt.Fprintf(&b, "\n- Summary: %s", job.Summary)
	}
	if job.Error != "" {
		fmt.Fprintf(&b, "\n- Error: %s", job.Error)
	}
	if len(job.Result) > 0 {
		fmt.Fprintf(&b, "\n- Result:\n```json\n%s\n```", indentJSON(job.Result, 500))
	}
	if len(job.ArtifactPaths) > 0 {
		fmt.Fprintf(&b, "\n- Artifacts: %s", strings.Join(job.ArtifactPaths, ", "))
	}
	return reportResult(b.String())
}

// ListInfraJobs lists recent jobs with optional filters.
type ListInfraJobs struct {
	client *infra.Client
}

// NewListInfraJobs creates the job listing tool.
func NewListInfraJobs(client *infra.Client) *ListInfraJobs {
	return &ListInfraJobs{client: client}
}

type listJobsInput struct {
	Status string `json:"status,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (t *ListInfraJobs) Name() string { return "list_infra_jobs" }

func (t *ListInfraJobs) Description() string {
	return `List recent infrastructure jobs, optionally filtered by status
(queued, running, succeeded, failed, waiting_approval) or kind.`
}

func (t *ListInfraJobs) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "status": {
                "type": "string",
                "description": "Filter by status (queued, running, succeeded, failed, waiting_approval)."
            },
            "kind": {
                "type": "string",
                "description": "Filter by job kind (e.g. 'dokploy.redeploy', 'ops_warehouse_etl')."
            },
            "limit": {
                "type": "integer",
                "description": "Max results. Default 20, max 100."
            }
        }
    }`)
}

func (t *ListInfraJobs) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input listJobsInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.Limit <= 0 {
		input.Limit = 20
	}

	list, err := t.client.ListJobs(ctx, infra.ListJobsFilter{
		Status: input.Status,
		Kind:   input.Kind,
		Limit:  input.Limit,
	})
	if err != nil {
		return infraError(err)
	}

	if len(list.Jobs) == 0 {
		return reportResult("No jobs found matching the criteria.")
	}

	count := list.Count
	if count == 0 {
		count = len(list.Jobs)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Recent Jobs** (%d results)\n\n", count)
	for _, j := range list.Jobs {
		tag, ok := statusTags[j.Status]
		if !ok {
			tag = " "
		}
		fmt.Fprintf(&b, "[%s] %s.. | %s | %s | %s\n",
			tag, truncate(orQuestion(j.JobID), 8), orQuestion(j.Kind), orQuestion(j.Status), truncate(orQuestion(j.CreatedAt), 16))
		if j.Summary != "" {
			fmt.Fprintf(&b, "    %s\n", j.Summary)
		}
	}
	return reportResult(strings.TrimRight(b.String(), "\n"))
}

// GetDriftBalance reads the platform drift balance sheet.
type GetDriftBalance struct {
	client *infra.Client
}

// NewGetDriftBalance creates the drift balance tool.
func NewGetDriftBalance(client *infra.Client) *GetDriftBalance {
	return &GetDriftBalance{client: client}
}

func (t *GetDriftBalance) Name() string { return "get_drift_balance" }

func (t *GetDriftBalance) Description() string {
	return `Get the platform's drift balance sheet and health score.

Returns the current drift debt (risk-weighted configuration drift),
individual drift items ranked by severity, and the composite platform health
score (0-100). No arguments required; pulls from the latest ETL run.`
}

func (t *GetDriftBalance) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GetDriftBalance) Execute(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	db, err := t.client.DriftBalance(ctx)
	if err != nil {
		return infraError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Platform Drift Balance**\n\nHealth Score: **%g/100**\n", db.HealthScore.Score)

	if len(db.HealthScore.Deductions) > 0 {
		b.WriteString("Deductions:\n")
		for _, k := range sortedKeys(db.HealthScore.Deductions) {
			if v := db.HealthScore.Deductions[k]; v > 0 {
				fmt.Fprintf(&b, "  - %s: -%g\n", titleWords(k), v)
			}
		}
	}

	fmt.Fprintf(&b, "\nTotal Drift Debt: **%g**\n", db.DriftDebtTotal)

	if len(db.DriftItems) > 0 {
		b.WriteString("\nTop Drift Items:\n\n")
		items := db.DriftItems
		if len(items) > 10 {
			items = items[:10]
		}
		for _, item := range items {
			fmt.Fprintf(&b, "- [%s] %s on %s — debt: %g (%s)\n",
				orQuestion(item.Severity), orQuestion(item.ServiceName), orQuestion(item.Environment),
				item.DebtScore, orUnknownStr(item.Category))
		}
	} else {
		b.WriteString("\nNo drift items — platform is in full compliance.\n")
	}

	if db.ETLTimestamp != "" {
		fmt.Fprintf(&b, "\n_Data from ETL run: %s_", db.ETLTimestamp)
	}
	return reportResult(strings.TrimRight(b.String(), "\n"))
}

// GetPlatformHealth combines warehouse status with the drift health score.
type GetPlatformHealth struct {
	client *infra.Client
}

// NewGetPlatformHealth creates the platform health tool.
func NewGetPlatformHealth(client *infra.Client) *GetPlatformHealth {
	return &GetPlatformHealth{client: client}
}

func (t *GetPlatformHealth) Name() string { return "get_platform_health" }

func (t *GetPlatformHealth) Description() string {
	return `Get a comprehensive platform health overview.

Combines warehouse status (ETL details, service counts) with the drift
balance health score. Use this for a quick operational pulse.`
}

func (t *GetPlatformHealth) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GetPlatformHealth) Execute(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	ph, err := t.client.PlatformHealth(ctx)
	if err != nil {
		return infraError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Platform Health Overview**\n\nHealth Score: **%g/100**\n\n", ph.Drift.HealthScore.Score)
	fmt.Fprintf(&b, "- Actual Services: %d\n", ph.Warehouse.ActualServices)
	fmt.Fprintf(&b, "- Desired Services: %d\n", ph.Warehouse.DesiredServices)
	fmt.Fprintf(&b, "- Drift Observations: %d\n", ph.Warehouse.DriftObservations)
	fmt.Fprintf(&b, "- Update Status Entries: %d\n", ph.Warehouse.UpdateStatus)
	fmt.Fprintf(&b, "- Drift Debt Total: %g", ph.Drift.DriftDebtTotal)

	if etl := ph.Warehouse.LastETL; etl.JobID != "" {
		fmt.Fprintf(&b, "\n\nLast ETL: %s at %s\n  %s",
			orQuestion(etl.Status), orQuestion(etl.Timestamp), etl.Summary)
	}
	return reportResult(b.String())
}

// ListWorkflows lists active durable workflows.
type ListWorkflows struct {
	client *infra.Client
}

// NewListWorkflows creates the workflow listing tool.
func NewListWorkflows(client *infra.Client) *ListWorkflows {
	return &ListWorkflows{client: client}
}

func (t *ListWorkflows) Name() string { return "list_workflows" }

func (t *ListWorkflows) Description() string {
	return `List active durable infrastructure workflows.

Durable workflows are multi-step operations that persist across pauses, such
as deploy-and-verify pipelines that wait for health checks and TLS
certificate validation.`
}

func (t *ListWorkflows) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListWorkflows) Execute(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	wl, err := t.client.ListWorkflows(ctx)
	if err != nil {
		return infraError(err)
	}

	if len(wl.Workflows) == 0 {
		return reportResult("No active durable workflows.")
	}

	total := wl.Total
	if total == 0 {
		total = len(wl.Workflows)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Active Workflows** (%d)\n\n", total)
	for _, wf := range wl.Workflows {
		fmt.Fprintf(&b, "- %s.. | step: %s | wake: %s | next: %s\n",
			truncate(orQuestion(wf.WorkflowID), 12), orQuestion(wf.Step),
			orQuestion(wf.WakeType), truncate(orQuestion(wf.NextCheckAt), 16))
	}
	return reportResult(strings.TrimRight(b.String(), "\n"))
}

// SearchPlatformKnowledge searches the infra knowledge base.
type SearchPlatformKnowledge struct {
	client *infra.Client
}

// NewSearchPlatformKnowledge creates the knowledge search tool.
func NewSearchPlatformKnowledge(client *infra.Client) *SearchPlatformKnowledge {
	return &SearchPlatformKnowledge{client: client}
}

type knowledgeInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (t *SearchPlatformKnowledge) Name() string { return "search_platform_knowledge" }

func (t *SearchPlatformKnowledge) Description() string {
	return `Search the platform's infrastructure knowledge base.

Finds runbooks, architecture docs, service documentation, and operational
procedures. Use this when you need context about how the platform is
configured or how to resolve issues.`
}

func (t *SearchPlatformKnowledge) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "query": {
                "type": "string",
                "description": "Search terms (e.g. 'traefik TLS', 'wordpress backup', 'ghost deploy')."
            },
            "limit": {
                "type": "integer",
                "description": "Max results. Default 10."
            }
        },
        "required": ["query"]
    }`)
}

func (t *SearchPlatformKnowledge) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input knowledgeInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.Query == "" {
		return errorReport("query is required")
	}
	if input.Limit <= 0 {
		input.Limit = 10
	}

	kr, err := t.client.SearchKnowledge(ctx, input.Query, input.Limit)
	if err != nil {
		return infraError(err)
	}

	if len(kr.Results) == 0 {
		return reportResult("No knowledge documents found for: " + input.Query)
	}

	count := kr.Count
	if count == 0 {
		count = len(kr.Results)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Knowledge Search:** %q (%d results)\n\n", input.Query, count)
	for _, doc := range kr.Results {
		title := doc.Title
		if title == "" {
			title = orQuestion(doc.Path)
		}
		sizeKB := float64(doc.SizeBytes) / 1024
		fmt.Fprintf(&b, "- [%s] **%s** (%.1fKB)\n  path: %s\n",
			orQuestion(doc.Kind), title, sizeKB, orQuestion(doc.Path))
	}
	return reportResult(strings.TrimRight(b.String(), "\n"))
}

// PrometheusQuery runs a PromQL query via a synchronous portal job.
type PrometheusQuery struct {
	client *infra.Client
}

// NewPrometheusQuery creates the metrics query tool.
func NewPrometheusQuery(client *infra.Client) *PrometheusQuery {
	return &PrometheusQuery{client: client}
}

type promInput struct {
	Query     string `json:"query"`
	TimeRange string `json:"time_range,omitempty"`
}

func (t *PrometheusQuery) Name() string { return "prometheus_query" }

func (t *PrometheusQuery) Description() string {
	return `Run a PromQL query against the platform's Prometheus instance.

Use this to check metrics like CPU usage, memory, request rates, error
rates, and container health. Results come from a job submitted to the
infra-agent, not a direct Prometheus connection.`
}

func (t *PrometheusQuery) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "query": {
                "type": "string",
                "description": "PromQL expression (e.g. 'up', 'rate(http_requests_total[5m])')."
            },
            "time_range": {
                "type": "string",
                "description": "Lookback window (e.g. '1h', '30m', '6h'). Default '1h'."
            }
        },
        "required": ["query"]
    }`)
}

func (t *PrometheusQuery) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input promInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.Query == "" {
		return errorReport("query is required")
	}
	if input.TimeRange == "" {
		input.TimeRange = "1h"
	}

	job, err := t.client.PrometheusQuery(ctx, input.Query, input.TimeRange)
	if err != nil {
		return infraError(err)
	}
	return syncJobReport(job, 2000)
}

// LokiQueryTool runs a LogQL query via a synchronous portal job.
type LokiQueryTool struct {
	client *infra.Client
}

// NewLokiQueryTool creates the log query tool.
func NewLokiQueryTool(client *infra.Client) *LokiQueryTool {
	return &LokiQueryTool{client: client}
}

type lokiInput struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
}

func (t *LokiQueryTool) Name() string { return "loki_query" }

func (t *LokiQueryTool) Description() string {
	return `Run a LogQL query against the platform's Loki instance.

Use this to search application logs, error messages, and operational
events. Results come from a job submitted to the infra-agent.

Example: {container="traefik"} |= "error"`
}

func (t *LokiQueryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "query": {
                "type": "string",
                "description": "LogQL expression (e.g. '{container=\"traefik\"} |= \"error\"')."
            },
            "limit": {
                "type": "integer",
                "description": "Max log lines to return. Default 100."
            },
            "time_range": {
                "type": "string",
                "description": "Lookback window (e.g. '1h', '30m', '6h'). Default '1h'."
            }
        },
        "required": ["query"]
    }`)
}

func (t *LokiQueryTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input lokiInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.Query == "" {
		return errorReport("query is required")
	}
	if input.Limit <= 0 {
		input.Limit = 100
	}
	if input.TimeRange == "" {
		input.TimeRange = "1h"
	}

	job, err := t.client.LokiQuery(ctx, input.Query, input.Limit, input.TimeRange)
	if err != nil {
		return infraError(err)
	}
	return syncJobReport(job, 2000)
}

// GrafanaAlerts reads current alert states via a synchronous portal job.
type GrafanaAlerts struct {
	client *infra.Client
}

// NewGrafanaAlerts creates the alert status tool.
func NewGrafanaAlerts(client *infra.Client) *GrafanaAlerts {
	return &GrafanaAlerts{client: client}
}

func (t *GrafanaAlerts) Name() string { return "grafana_alerts" }

func (t *GrafanaAlerts) Description() string {
	return `Get current Grafana alert statuses across the platform.

Returns all active, pending, and recently resolved alerts from Grafana's
unified alerting system. Use this to understand what alerting conditions are
currently firing or recently cleared.`
}

func (t *GrafanaAlerts) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GrafanaAlerts) Execute(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	job, err := t.client.GrafanaAlerts(ctx)
	if err != nil {
		return infraError(err)
	}
	if len(job.Result) == 0 {
		return reportResult(fmt.Sprintf("Job submitted: %s — status: %s", orQuestion(job.JobID), orQuestion(job.Status)))
	}

	var alerts []struct {
		State    string `json:"state"`
		Name     string `json:"name"`
		Severity string `json:"severity"`
	}
	if err := json.Unmarshal(job.Result, &alerts); err != nil {
		return reportResult(indentJSON(job.Result, 2000))
	}
	if len(alerts) == 0 {
		return reportResult("No active Grafana alerts.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Grafana Alerts** (%d)\n\n", len(alerts))
	if len(alerts) > 20 {
		alerts = alerts[:20]
	}
	for _, a := range alerts {
		severity := a.Severity
		if severity == "" {
			severity = "unknown"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", orQuestion(a.State), orQuestion(a.Name), severity)
	}
	return reportResult(strings.TrimRight(b.String(), "\n"))
}

// DockerState reads container and swarm service state via a synchronous
// portal job.
type DockerState struct {
	client *infra.Client
}

// NewDockerState creates the docker state tool.
func NewDockerState(client *infra.Client) *DockerState {
	return &DockerState{client: client}
}

type dockerInput struct {
	Host string `json:"host,omitempty"`
}

func (t *DockerState) Name() string { return "docker_state" }

func (t *DockerState) Description() string {
	return `Get Docker container and service state for a managed host.

Returns running containers, Docker Swarm services, resource usage, and
health status. Use this to check what's running and whether services are
healthy.`
}

func (t *DockerState) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "host": {
                "type": "string",
                "description": "Host name (e.g. 'platform-core', 'prod'). Default 'platform-core'."
            }
        }
    }`)
}

func (t *DockerState) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input dockerInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorReport("invalid params: %v", err)
	}
	if input.Host == "" {
		input.Host = "platform-core"
	}

	job, err := t.client.DockerState(ctx, input.Host)
	if err != nil {
		return infraError(err)
	}
	if len(job.Result) == 0 {
		return reportResult(fmt.Sprintf("Job submitted: %s — status: %s", orQuestion(job.JobID), orQuestion(job.Status)))
	}

	var state struct {
		Services []struct {
			Name     string `json:"name"`
			Replicas string `json:"replicas"`
			Image    string `json:"image"`
		} `json:"services"`
		Containers []json.RawMessage `json:"containers"`
	}
	if err := json.Unmarshal(job.Result, &state); err != nil {
		return reportResult(indentJSON(job.Result, 2000))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Docker State — %s**\n\n", input.Host)
	fmt.Fprintf(&b, "Services: %d | Containers: %d\n\n", len(state.Services), len(state.Containers))
	services := state.Services
	if len(services) > 15 {
		services = services[:15]
	}
	for _, svc := range services {
		fmt.Fprintf(&b, "- %s (%s) [%s]\n", orQuestion(svc.Name), orQuestion(svc.Replicas), orQuestion(svc.Image))
	}
	return reportResult(strings.TrimRight(b.String(), "\n"))
}
