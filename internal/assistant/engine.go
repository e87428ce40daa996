package assistant

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/opsdash/internal/tools"
)

const (
	MaxToolRounds  = 15
	MaxTokens      = 100000
	ResponseTokens = 4096
)

var tracer = otel.Tracer("github.com/linnemanlabs/opsdash/internal/assistant")

// Engine provides the core agent loop, orchestrating interactions between the
// LLM provider and the tool registry.
type Engine struct {
	provider Provider
	registry *tools.Registry
	logger   log.Logger
	hooks    EngineHooks
}

// NewEngine creates a new assistant engine with the given dependencies.
func NewEngine(provider Provider, registry *tools.Registry, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		provider: provider,
		registry: registry,
		logger:   logger,
		hooks:    hooks,
	}
}

// Run executes the agent loop for a question until the model stops, a budget
// is exhausted, or the provider fails. The optional callback observes each
// appended turn; callback errors are logged and do not abort the run.
func (e *Engine) Run(ctx context.Context, runID, question string, cb TurnCallback) *RunResult {
	start := time.Now()

	rr := &RunResult{
		ID:           runID,
		Question:     question,
		Status:       StatusInProgress,
		SystemPrompt: buildSystemPrompt(),
		CreatedAt:    start,
		Conversation: &Conversation{},
	}

	L := e.logger.With("run_id", runID)

	messages := []Message{
		{Role: "user", Content: []ContentBlock{
			{Type: "text", Text: question},
		}},
	}

	seq := 0
	appendTurn := func(turn Turn) {
		rr.Conversation.Turns = append(rr.Conversation.Turns, turn)
		if cb != nil {
			if err := cb(ctx, seq, &rr.Conversation.Turns[len(rr.Conversation.Turns)-1]); err != nil {
				L.Warn(ctx, "turn callback failed", "seq", seq, "error", err.Error())
			}
		}
		seq++
	}

	toolSeen := make(map[string]bool)
	chatSeq := 0

	for {
		if rr.ToolCalls >= MaxToolRounds {
			L.Warn(ctx, "run hit tool call limit", "limit", MaxToolRounds)
			rr.Answer = "Run terminated: tool call budget exhausted"
			break
		}
		if rr.InputTokensUsed+rr.OutputTokensUsed >= MaxTokens {
			L.Warn(ctx, "run hit token limit", "limit", MaxTokens)
			rr.Answer = "Run terminated: token budget exhausted"
			break
		}

		resp, llmDur, err := e.callLLM(ctx, rr, messages, chatSeq)
		chatSeq++
		if err != nil {
			L.Error(ctx, err, "llm call failed")
			rr.Status = StatusFailed
			rr.Answer = fmt.Sprintf("LLM error: %v", err)
			e.finish(ctx, rr, start, L)
			return rr
		}

		rr.LLMTime += llmDur
		rr.InputTokensUsed += resp.Usage.InputTokens
		rr.OutputTokensUsed += resp.Usage.OutputTokens
		if resp.Model != "" {
			rr.Model = resp.Model
		}
		if e.hooks.OnLLMCall != nil {
			e.hooks.OnLLMCall(resp.Usage.InputTokens, resp.Usage.OutputTokens, llmDur)
		}

		L.Info(ctx, "llm response",
			"stop_reason", resp.StopReason,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"total_tokens", rr.InputTokensUsed+rr.OutputTokensUsed,
		)

		usage := resp.Usage
		appendTurn(Turn{
			Role:       "assistant",
			Content:    resp.Content,
			Usage:      &usage,
			StopReason: string(resp.StopReason),
			Duration:   llmDur,
			Model:      resp.Model,
		})
		messages = append(messages, Message{Role: "assistant", Content: resp.Content})

		// done - extract final answer
		if resp.StopReason == StopEnd {
			for _, block := range resp.Content {
				if block.Type == "text" {
					rr.Answer = block.Text
				}
			}
			break
		}

		if resp.StopReason != StopToolUse {
			L.Warn(ctx, "unexpected stop reason", "stop_reason", resp.StopReason)
			break
		}

		var toolResults []ContentBlock
		for _, block := range resp.Content {
			if block.Type != "tool_use" {
				continue
			}

			rr.ToolCalls++
			if !toolSeen[block.Name] {
				toolSeen[block.Name] = true
				rr.ToolsUsed = append(rr.ToolsUsed, block.Name)
			}

			L.Info(ctx, "executing tool",
				"tool", block.Name,
				"call_number", rr.ToolCalls,
			)

			result, toolDur := e.executeTool(ctx, rr.ID, block)
			rr.ToolTime += toolDur
			if e.hooks.OnToolCall != nil {
				e.hooks.OnToolCall(block.Name, toolDur, len(block.Input), len(result.Content), result.IsError)
			}
			toolResults = append(toolResults, result)
		}

		appendTurn(Turn{Role: "user", Content: toolResults})
		messages = append(messages, Message{Role: "user", Content: toolResults})
	}

	rr.Status = StatusComplete
	e.finish(ctx, rr, start, L)
	return rr
}

// callLLM sends the conversation to the provider inside an llm.call span.
func (e *Engine) callLLM(ctx context.Context, rr *RunResult, messages []Message, chatSeq int) (*LLMResponse, float64, error) {
	ctx, span := tracer.Start(ctx, "llm.call", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.call"),
		attribute.String("opsdash.run.id", rr.ID),
		attribute.Int64("opsdash.chat.seq", int64(chatSeq)),
	))
	defer span.End()

	span.AddEvent("llm.request", trace.WithAttributes(
		attribute.Int("llm.request.messages", len(messages)),
	))

	llmStart := time.Now()
	resp, err := e.provider.Send(ctx, &LLMRequest{
		MaxTokens: ResponseTokens,
		System:    rr.SystemPrompt,
		Messages:  messages,
		Tools:     e.registry.ToToolDefs(),
	})
	dur := time.Since(llmStart).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, dur, err
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	span.AddEvent("llm.response", trace.WithAttributes(
		attribute.String("llm.response.stop_reason", string(resp.StopReason)),
	))

	return resp, dur, nil
}

// executeTool runs a single tool_use block inside a tool.execute span and
// returns the tool_result block. Execution failures are reported back to the
// model as error results, never as aborts.
func (e *Engine) executeTool(ctx context.Context, runID string, block ContentBlock) (ContentBlock, float64) {
	ctx, span := tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String("gen_ai.tool.name", block.Name),
		attribute.String("opsdash.run.id", runID),
		attribute.String("opsdash.tool.input", string(block.Input)),
	))
	defer span.End()

	span.AddEvent("tool.request", trace.WithAttributes(
		attribute.String("tool.request.body", string(block.Input)),
	))

	toolStart := time.Now()
	result := ContentBlock{Type: "tool_result", ToolUseID: block.ID}

	tool, ok := e.registry.Get(block.Name)
	if !ok {
		result.Content = fmt.Sprintf("unknown tool: %s", block.Name)
		result.IsError = true
	} else {
		output, err := tool.Execute(ctx, block.Input)
		if err != nil {
			e.logger.Error(ctx, err, "tool execution failed", "tool", block.Name)
			span.RecordError(err)
			result.Content = fmt.Sprintf("tool error: %v", err)
			result.IsError = true
		} else {
			result.Content = string(output)
		}
	}
	dur := time.Since(toolStart).Seconds()

	span.SetAttributes(attribute.Bool("opsdash.tool.is_error", result.IsError))
	span.AddEvent("tool.result", trace.WithAttributes(
		attribute.String("tool.result.body", result.Content),
	))

	return result, dur
}

func (e *Engine) finish(ctx context.Context, rr *RunResult, start time.Time, L log.Logger) {
	rr.CompletedAt = time.Now()
	rr.Duration = time.Since(start).Seconds()

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Status:    rr.Status,
			Model:     rr.Model,
			Duration:  rr.Duration,
			LLMTime:   rr.LLMTime,
			ToolTime:  rr.ToolTime,
			TokensIn:  rr.InputTokensUsed,
			TokensOut: rr.OutputTokensUsed,
			ToolCalls: rr.ToolCalls,
		})
	}

	L.Info(ctx, "run finished",
		"status", rr.Status,
		"duration", rr.Duration,
		"tokens_in", rr.InputTokensUsed,
		"tokens_out", rr.OutputTokensUsed,
		"tool_calls", rr.ToolCalls,
	)
}

// buildSystemPrompt constructs the analyst instructions: workflow, key
// platform concepts, and how to use the incident and infra tooling.
func buildSystemPrompt() string {
	return `You are Ops Dash, an infrastructure analyst for the platform operations warehouse.
You turn operational exhaust into actionable intelligence: you know every service,
every deploy, every drift item, and every incident.

You don't just fetch data. Interpret it through the lens of operational risk,
correlate events across systems, and explain what it means for reliability.

Workflow:
1. Start with search_platform_knowledge for runbooks, table info, and past patterns.
2. Reconstruct what happened with reconstruct_timeline.
3. For live state use prometheus_query, loki_query, grafana_alerts, docker_state.
4. When the user reports an issue, record it with create_incident_marker. When it
   is fixed, resolve_incident with root cause and resolution, then
   generate_knowledge_pack so the next responder starts from your findings.
5. Check find_similar_incidents before diagnosing from scratch.
6. When asked to DO something (deploy, scan, healthcheck), use submit_infra_job
   and track it with get_job_status.

Key concepts:
- Drift Debt Score: risk-weighted sum of unresolved drift items
  (severity x blast radius x age x exposure). See get_drift_balance.
- Priority tiers: P0 (edge/Traefik) down to P4 (datastores); updates apply in
  reverse order, lowest risk first.
- Hosts: platform-core (control plane), prod (production workloads).

Provide operational insights, not just data. Be concise. Your analysis goes to
an engineer, so lead with what matters and say what you would do next.`
}
