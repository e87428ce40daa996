// Package pgstore provides a PostgreSQL implementation of assistant.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/opsdash/internal/assistant"
)

var tracer = otel.Tracer("github.com/linnemanlabs/opsdash/internal/assistant/pgstore")

//go:embed schema.sql
var schema string

// Store persists assistant runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const runColumns = `id, question, status, answer, system_prompt, model, conversation, tools_used,
	created_at, completed_at, duration_s, llm_time_s, tool_time_s, input_tokens, output_tokens, tool_calls`

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*assistant.RunResult, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM assistant_runs WHERE id = $1`
	r, err := scanRunRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Put inserts or updates a run.
func (s *Store) Put(ctx context.Context, r *assistant.RunResult) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var conversationJSON []byte
	if r.Conversation != nil {
		var err error
		conversationJSON, err = json.Marshal(r.Conversation)
		if err != nil {
			return fmt.Errorf("marshal conversation: %w", err)
		}
	}
	toolsJSON, err := json.Marshal(r.ToolsUsed)
	if err != nil {
		return fmt.Errorf("marshal tools_used: %w", err)
	}
	if r.ToolsUsed == nil {
		toolsJSON = []byte(`[]`)
	}

	var completedAt *time.Time
	if !r.CompletedAt.IsZero() {
		completedAt = &r.CompletedAt
	}

	query := `INSERT INTO assistant_runs (
		id, question, status, answer, system_prompt, model, conversation, tools_used,
		created_at, completed_at, duration_s, llm_time_s, tool_time_s, input_tokens, output_tokens, tool_calls
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	ON CONFLICT (id) DO UPDATE SET
		question      = EXCLUDED.question,
		status        = EXCLUDED.status,
		answer        = EXCLUDED.answer,
		system_prompt = EXCLUDED.system_prompt,
		model         = EXCLUDED.model,
		conversation  = EXCLUDED.conversation,
		tools_used    = EXCLUDED.tools_used,
		completed_at  = EXCLUDED.completed_at,
		duration_s    = EXCLUDED.duration_s,
		llm_time_s    = EXCLUDED.llm_time_s,
		tool_time_s   = EXCLUDED.tool_time_s,
		input_tokens  = EXCLUDED.input_tokens,
		output_tokens = EXCLUDED.output_tokens,
		tool_calls    = EXCLUDED.tool_calls`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Question, string(r.Status), r.Answer, r.SystemPrompt, r.Model,
		conversationJSON, toolsJSON, r.CreatedAt, completedAt, r.Duration,
		r.LLMTime, r.ToolTime, r.InputTokensUsed, r.OutputTokensUsed, r.ToolCalls,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// scanRunRow scans a single row into an assistant.RunResult.
// Returns (nil, nil) when no row is found.
func scanRunRow(row pgx.Row) (*assistant.RunResult, error) {
	var (
		r                assistant.RunResult
		status           string
		conversationJSON []byte
		toolsJSON        []byte
		completedAt      *time.Time
	)

	err := row.Scan(
		&r.ID, &r.Question, &status, &r.Answer, &r.SystemPrompt, &r.Model,
		&conversationJSON, &toolsJSON, &r.CreatedAt, &completedAt, &r.Duration,
		&r.LLMTime, &r.ToolTime, &r.InputTokensUsed, &r.OutputTokensUsed, &r.ToolCalls,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Status = assistant.Status(status)
	if completedAt != nil {
		r.CompletedAt = *completedAt
	}
	if len(conversationJSON) > 0 {
		var conv assistant.Conversation
		if err := json.Unmarshal(conversationJSON, &conv); err != nil {
			return nil, fmt.Errorf("unmarshal conversation: %w", err)
		}
		r.Conversation = &conv
	}
	if err := json.Unmarshal(toolsJSON, &r.ToolsUsed); err != nil {
		return nil, fmt.Errorf("unmarshal tools_used: %w", err)
	}

	return &r, nil
}
