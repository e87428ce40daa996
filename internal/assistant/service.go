package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// ErrEmptyQuestion is returned when Ask is called without a question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Service is the business boundary for assistant operations.
type Service struct {
	store  Store
	engine *Engine
	logger log.Logger
}

// NewService creates a new assistant service.
func NewService(store Store, engine *Engine, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// Ask runs the agent loop for a question and persists the transcript.
// The run is synchronous: the caller gets the finished result.
func (s *Service) Ask(ctx context.Context, question string) (*RunResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	id := ulid.Make().String()
	pending := &RunResult{
		ID:        id,
		Question:  question,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.Put(ctx, pending); err != nil {
		return nil, err
	}

	rr := s.engine.Run(ctx, id, question, nil)

	if err := s.store.Put(ctx, rr); err != nil {
		// the run already happened; return it even if persistence failed
		s.logger.Error(ctx, err, "failed to persist assistant run", "run_id", id)
	}

	s.logger.Info(ctx, "assistant run complete",
		"run_id", id,
		"status", rr.Status,
		"duration", rr.Duration,
		"tool_calls", rr.ToolCalls,
	)

	return rr, nil
}

// Get retrieves a past run by ID.
func (s *Service) Get(ctx context.Context, id string) (*RunResult, bool, error) {
	return s.store.Get(ctx, id)
}
