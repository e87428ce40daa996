// Package infra is the client for the platform infra-agent's portal API:
// job submission, warehouse drift and health reads, durable workflow and
// knowledge lookups. Metric and log queries run as synchronous jobs through
// the agent rather than against the upstream systems directly.
package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	// MaxListLimit caps job listings server-side friendly.
	MaxListLimit = 100

	// DefaultRequestedBy identifies this service in job audit trails.
	DefaultRequestedBy = "ops-dash"
)

// RemoteError is a non-2xx answer from the infra-agent. Transport failures
// are returned as wrapped errors instead, so callers can tell "the agent
// said no" from "the agent is unreachable".
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("infra-agent returned %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the infra-agent portal endpoints. Requests authenticate
// with the shared portal secret and carry a bounded timeout.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient creates a portal client. A non-positive timeout selects the
// default.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// JobRequest is a job submission. Sync requests block until the job
// completes and return its result inline.
type JobRequest struct {
	Kind        string         `json:"kind"`
	Args        map[string]any `json:"args"`
	RequestedBy string         `json:"requested_by"`
	Sync        bool           `json:"sync,omitempty"`
}

// Job is a job record as the portal reports it. Submission responses and
// status lookups share the shape; absent fields stay zero.
type Job struct {
	JobID            string          `json:"job_id"`
	Kind             string          `json:"kind,omitempty"`
	Status           string          `json:"status"`
	Summary          string          `json:"summary,omitempty"`
	Error            string          `json:"error,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	ArtifactPaths    []string        `json:"artifact_paths,omitempty"`
	ApprovalRequired bool            `json:"approval_required,omitempty"`
	ApprovalID       string          `json:"approval_id,omitempty"`
	Message          string          `json:"message,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`
}

// JobList is a filtered job listing.
type JobList struct {
	Jobs  []Job `json:"jobs"`
	Count int   `json:"count"`
}

// ListJobsFilter narrows a job listing. Zero values mean no filter.
type ListJobsFilter struct {
	Status string
	Kind   string
	Limit  int
}

// HealthScore is the composite platform score with its per-cause
// deductions.
type HealthScore struct {
	Score      float64            `json:"score"`
	Deductions map[string]float64 `json:"deductions,omitempty"`
}

// DriftItem is one risk-weighted configuration drift observation.
type DriftItem struct {
	Severity    string  `json:"severity"`
	ServiceName string  `json:"service_name"`
	Environment string  `json:"environment"`
	DebtScore   float64 `json:"debt_score"`
	Category    string  `json:"category"`
}

// DriftBalance is the drift balance sheet from the latest ETL run.
type DriftBalance struct {
	HealthScore    HealthScore `json:"health_score"`
	DriftItems     []DriftItem `json:"drift_items"`
	DriftDebtTotal float64     `json:"drift_debt_total"`
	ETLTimestamp   string      `json:"etl_timestamp,omitempty"`
}

// ETLRun describes the warehouse's most recent ETL job.
type ETLRun struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Summary   string `json:"summary"`
}

// WarehouseStatus is the ops warehouse row-count and ETL overview.
type WarehouseStatus struct {
	ActualServices    int    `json:"actual_services"`
	DesiredServices   int    `json:"desired_services"`
	DriftObservations int    `json:"drift_observations"`
	UpdateStatus      int    `json:"update_status"`
	LastETL           ETLRun `json:"last_etl"`
}

// Workflow is one active durable workflow.
type Workflow struct {
	WorkflowID  string `json:"workflow_id"`
	Step        string `json:"step"`
	WakeType    string `json:"wake_type"`
	NextCheckAt string `json:"next_check_at"`
}

// WorkflowList is the active workflow listing.
type WorkflowList struct {
	Workflows []Workflow `json:"workflows"`
	Total     int        `json:"total"`
}

// KnowledgeDoc is one knowledge base search hit.
type KnowledgeDoc struct {
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// KnowledgeResults is a knowledge base search response.
type KnowledgeResults struct {
	Results []KnowledgeDoc `json:"results"`
	Count   int            `json:"count"`
}

// SubmitJob submits a job for execution. The policy engine may hold it for
// approval; the returned record says so.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (*Job, error) {
	if req.RequestedBy == "" {
		req.RequestedBy = DefaultRequestedBy
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}
	var job Job
	if err := c.post(ctx, "/portal/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobStatus fetches the current state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.get(ctx, "/portal/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns recent jobs matching the filter, newest first. The limit
// is capped at MaxListLimit.
func (c *Client) ListJobs(ctx context.Context, f ListJobsFilter) (*JobList, error) {
	q := url.Values{}
	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	q.Set("limit", strconv.Itoa(limit))
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Kind != "" {
		q.Set("kind", f.Kind)
	}

	var list JobList
	if err := c.get(ctx, "/portal/jobs", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DriftBalance fetches the drift balance sheet and health score.
func (c *Client) DriftBalance(ctx context.Context) (*DriftBalance, error) {
	var db DriftBalance
	if err := c.get(ctx, "/portal/warehouse/drift-balance", nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// WarehouseStatus fetches the ops warehouse overview.
func (c *Client) WarehouseStatus(ctx context.Context) (*WarehouseStatus, error) {
	var ws WarehouseStatus
	if err := c.get(ctx, "/portal/warehouse/status", nil, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// PlatformHealth combines the warehouse overview with the drift balance
// sheet. The two reads are sequential, so the snapshot is eventually
// consistent between them.
type PlatformHealth struct {
	Warehouse WarehouseStatus
	Drift     DriftBalance
}

// PlatformHealth fetches a combined operational pulse.
func (c *Client) PlatformHealth(ctx context.Context) (*PlatformHealth, error) {
	ws, err := c.WarehouseStatus(ctx)
	if err != nil {
		return nil, err
	}
	db, err := c.DriftBalance(ctx)
	if err != nil {
		return nil, err
	}
	return &PlatformHealth{Warehouse: *ws, Drift: *db}, nil
}

// ListWorkflows fetches active durable workflows.
func (c *Client) ListWorkflows(ctx context.Context) (*WorkflowList, error) {
	var wl WorkflowList
	if err := c.get(ctx, "/portal/workflows", nil, &wl); err != nil {
		return nil, err
	}
	return &wl, nil
}

// SearchKnowledge searches the platform knowledge base.
func (c *Client) SearchKnowledge(ctx context.Context, query string, limit int) (*KnowledgeResults, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var kr KnowledgeResults
	if err := c.get(ctx, "/portal/knowledge/search", q, &kr); err != nil {
		return nil, err
	}
	return &kr, nil
}

// PrometheusQuery runs a PromQL query as a synchronous job.
func (c *Client) PrometheusQuery(ctx context.Context, query, timeRange string) (*Job, error) {
	return c.SubmitJob(ctx, JobRequest{
		Kind: "prometheus.query",
		Args: map[string]any{"query": query, "time_range": timeRange},
		Sync: true,
	})
}

// LokiQuery runs a LogQL query as a synchronous job.
func (c *Client) LokiQuery(ctx context.Context, query string, limit int, timeRange string) (*Job, error) {
	return c.SubmitJob(ctx, JobRequest{
		Kind: "loki.query",
		Args: map[string]any{"query": query, "limit": limit, "time_range": timeRange},
		Sync: true,
	})
}

// GrafanaAlerts fetches current alert states as a synchronous job.
func (c *Client) GrafanaAlerts(ctx context.Context) (*Job, error) {
	return c.SubmitJob(ctx, JobRequest{
		Kind: "grafana.alerts",
		Sync: true,
	})
}

// DockerState fetches container and service state for a host as a
// synchronous job.
func (c *Client) DockerState(ctx context.Context, host string) (*Job, error) {
	return c.SubmitJob(ctx, JobRequest{
		Kind: "docker.status",
		Args: map[string]any{"host": host},
		Sync: true,
	})
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-Portal-Secret", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("infra-agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readDetail extracts the error detail field when the body is JSON, falling
// back to a truncated raw body.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return strings.TrimSpace(string(raw))
}
