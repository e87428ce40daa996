package assistant

import (
	"context"
	"time"
)

// Status tracks where an assistant run is in its lifecycle.
type Status string

const (
	// StatusPending means created, not yet started
	StatusPending Status = "pending"

	// StatusInProgress means currently being processed
	StatusInProgress Status = "in_progress"

	// StatusComplete means finished successfully
	StatusComplete Status = "complete"

	// StatusFailed means finished with errors
	StatusFailed Status = "failed"
)

// Turn is a single appended message in the run's conversation, with the
// provider metadata recorded alongside assistant turns.
type Turn struct {
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Usage      *Usage         `json:"usage,omitempty"`
	StopReason string         `json:"stop_reason,omitempty"`
	Duration   float64        `json:"duration_seconds,omitempty"`
	Model      string         `json:"model,omitempty"`
}

// Conversation is the full ordered transcript of a run.
type Conversation struct {
	Turns []Turn `json:"turns"`
}

// TurnCallback is invoked after each turn is appended during Engine.Run.
type TurnCallback func(ctx context.Context, seq int, turn *Turn) error

// RunResult is the outcome of an assistant run.
type RunResult struct {
	ID               string        `json:"id"`
	Question         string        `json:"question"`
	Status           Status        `json:"status"`
	Answer           string        `json:"answer,omitempty"`
	SystemPrompt     string        `json:"system_prompt,omitempty"`
	Model            string        `json:"model,omitempty"`
	Conversation     *Conversation `json:"conversation,omitempty"`
	ToolsUsed        []string      `json:"tools_used,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      time.Time     `json:"completed_at,omitempty"`
	Duration         float64       `json:"duration_seconds,omitempty"`
	LLMTime          float64       `json:"llm_time_seconds,omitempty"`
	ToolTime         float64       `json:"tool_time_seconds,omitempty"`
	InputTokensUsed  int           `json:"input_tokens_used,omitempty"`
	OutputTokensUsed int           `json:"output_tokens_used,omitempty"`
	ToolCalls        int           `json:"tool_calls,omitempty"`
}

// CompleteEvent summarizes a finished run for the OnComplete hook.
type CompleteEvent struct {
	Status    Status
	Model     string
	Duration  float64
	LLMTime   float64
	ToolTime  float64
	TokensIn  int
	TokensOut int
	ToolCalls int
}

// EngineHooks are optional callbacks the engine fires as a run progresses.
// Nil hooks are skipped.
type EngineHooks struct {
	OnLLMCall  func(inputTokens, outputTokens int, duration float64)
	OnToolCall func(name string, duration float64, inputBytes, outputBytes int, isError bool)
	OnComplete func(e *CompleteEvent)
}

// Store is the persistence interface for assistant runs.
type Store interface {
	Get(ctx context.Context, id string) (*RunResult, bool, error)
	Put(ctx context.Context, r *RunResult) error
}
