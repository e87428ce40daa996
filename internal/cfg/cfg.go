package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds opsdash-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	DocstoreEndpoint      string
	DocstoreAPIKey        string
	KnowledgeCollection   string
	LearningsCollection   string
	InfraAgentURL         string
	InfraAgentSecret      string
	ClaudeAPIKey          string
	ClaudeModel           string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for the /api/v1 surface (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory stores)")
	fs.StringVar(&c.DocstoreEndpoint, "docstore-endpoint", "", "document store endpoint for knowledge and learnings (empty = in-memory)")
	fs.StringVar(&c.DocstoreAPIKey, "docstore-api-key", "", "API key for the document store")
	fs.StringVar(&c.KnowledgeCollection, "knowledge-collection", "ops_knowledge", "collection holding saved queries and runbooks")
	fs.StringVar(&c.LearningsCollection, "learnings-collection", "ops_learnings", "collection holding incident signatures")
	fs.StringVar(&c.InfraAgentURL, "infra-agent-url", "", "infra agent base URL for job submission (empty = infra tools disabled)")
	fs.StringVar(&c.InfraAgentSecret, "infra-agent-secret", "", "shared secret for infra agent requests")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude LLM provider (empty = assistant disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for incident notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Collection names feed directly into docstore paths
	if c.KnowledgeCollection == "" {
		errs = append(errs, errors.New("KNOWLEDGE_COLLECTION must not be empty"))
	}
	if c.LearningsCollection == "" {
		errs = append(errs, errors.New("LEARNINGS_COLLECTION must not be empty"))
	}

	// The infra agent rejects unsigned requests, so a URL without a
	// secret can never work
	if c.InfraAgentURL != "" && c.InfraAgentSecret == "" {
		errs = append(errs, errors.New("INFRA_AGENT_SECRET is required when INFRA_AGENT_URL is set"))
	}

	// The assistant is optional, but a key without a model is unusable
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
