package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jivagrisma/ISA-AGENT/agent"
	"github.com/jivagrisma/ISA-AGENT/message"
	"github.com/jivagrisma/ISA-AGENT/pkg/logging"
	"github.com/jivagrisma/ISA-AGENT/runtime"
)

// TurnRequest captures the inputs required to execute a session turn.
type TurnRequest struct {
	SessionID string
	Input     string
	History   []*message.Message
	Metadata  map[string]any
}

// TurnResult captures the outcome of a single executor run.
type TurnResult struct {
	SessionID   string
	Output      string
	Messages    []*message.Message
	LastMessage *message.Message
	Duration    time.Duration
}

// Executor defines the contract for turn executors.
type Executor interface {
	Execute(ctx context.Context, req *TurnRequest) (*TurnResult, error)
}

// AgentExecutor clones a prototype agent per turn so concurrent sessions
// never share conversation state.
type AgentExecutor struct {
	prototype *agent.Agent
	logger    *slog.Logger
}

// NewAgentExecutor constructs a turn executor backed by a prototype agent.
func NewAgentExecutor(prototype *agent.Agent) *AgentExecutor {
	if prototype == nil {
		panic("runner: agent prototype cannot be nil")
	}
	return &AgentExecutor{
		prototype: prototype,
		logger:    logging.WithComponent("executor"),
	}
}

// NewAgentExecutorFromSpec validates the spec and builds the prototype agent
// from it.
func NewAgentExecutorFromSpec(spec runtime.AgentSpec, engine agent.Generator) (*AgentExecutor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	prototype := agent.New(
		agent.WithName(spec.Name),
		agent.WithSystemPrompt(spec.SystemPrompt),
		agent.WithMaxIterations(spec.MaxIterations),
		agent.WithMaxTokens(spec.MaxTokens),
		agent.WithTemperature(spec.Temperature),
		agent.WithEngine(engine),
	)
	return NewAgentExecutor(prototype), nil
}

// Execute runs the underlying agent using the provided request and conversation history.
func (e *AgentExecutor) Execute(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if req == nil {
		return nil, fmt.Errorf("runner: request cannot be nil")
	}
	if req.Input == "" {
		return nil, fmt.Errorf("runner: input cannot be empty")
	}

	worker := e.prototype.Clone()
	if len(req.History) > 0 {
		worker.RestoreMessages(req.History)
	}

	e.logger.Info("executor running turn", "session_id", req.SessionID, "history", len(req.History))
	start := time.Now()
	output, err := worker.Run(ctx, req.Input)
	if err != nil {
		e.logger.Error("executor run failed", "session_id", req.SessionID, "error", err)
		return nil, err
	}
	duration := time.Since(start)
	e.logger.Info("executor run completed", "session_id", req.SessionID, "duration_ms", duration.Milliseconds())

	messages := message.CloneMessages(worker.GetMessages())
	var last *message.Message
	if len(messages) > 0 {
		last = message.Clone(messages[len(messages)-1])
	}

	return &TurnResult{
		SessionID:   req.SessionID,
		Output:      output,
		Messages:    messages,
		LastMessage: last,
		Duration:    duration,
	}, nil
}
