// Package agent implements the conversation loop: it feeds history to the
// generation engine, executes recovered tool calls, and iterates until the
// model produces a final answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	agentContext "github.com/jivagrisma/ISA-AGENT/context"
	"github.com/jivagrisma/ISA-AGENT/message"
	"github.com/jivagrisma/ISA-AGENT/middleware"
	"github.com/jivagrisma/ISA-AGENT/pkg/logging"
	"github.com/jivagrisma/ISA-AGENT/runtime"
	"github.com/jivagrisma/ISA-AGENT/runtime/provider"
	"github.com/jivagrisma/ISA-AGENT/tool"
)

// Generator produces one model generation from conversation state.
type Generator interface {
	Generate(ctx context.Context, req *runtime.Request) (*runtime.Result, error)
}

// Agent drives guarded generations and tool execution over a conversation.
type Agent struct {
	name          string
	systemPrompt  string
	maxIterations int
	maxTokens     int
	temperature   float64
	engine        Generator
	tools         *tool.Registry
	history       *agentContext.Context
	middlewares   *middleware.Chain
	supervisor    *provider.ToolSupervisor
	providers     []tool.Provider
	logger        *slog.Logger
}

// Option is a function that configures an Agent
type Option func(*Agent)

// WithName sets the agent name
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithSystemPrompt sets the system prompt
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithMaxIterations sets the maximum number of generate/execute rounds
func WithMaxIterations(max int) Option {
	return func(a *Agent) {
		if max > 0 {
			a.maxIterations = max
		}
	}
}

// WithMaxTokens sets the per-generation token cap
func WithMaxTokens(max int) Option {
	return func(a *Agent) {
		a.maxTokens = max
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(temp float64) Option {
	return func(a *Agent) {
		a.temperature = temp
	}
}

// WithEngine sets the generation engine
func WithEngine(engine Generator) Option {
	return func(a *Agent) {
		a.engine = engine
	}
}

// WithHistorySize caps the retained conversation history
func WithHistorySize(n int) Option {
	return func(a *Agent) {
		a.history = agentContext.NewWithMaxSize(n)
	}
}

// WithToolProvider registers a tool provider that will supply tools on demand.
func WithToolProvider(p tool.Provider) Option {
	return func(a *Agent) {
		if p != nil {
			a.providers = append(a.providers, p)
		}
	}
}

// WithMiddleware adds a middleware to the agent
func WithMiddleware(m middleware.Middleware) Option {
	return func(a *Agent) {
		a.middlewares.Add(m)
	}
}

// WithMiddlewares sets the middleware chain
func WithMiddlewares(middlewares ...middleware.Middleware) Option {
	return func(a *Agent) {
		a.middlewares = middleware.NewChain(middlewares...)
	}
}

// WithLogger overrides the component logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates a new agent with the given options
func New(opts ...Option) *Agent {
	a := &Agent{
		name:          "Agent",
		systemPrompt:  "You are a helpful AI assistant.",
		maxIterations: 10,
		temperature:   0.7,
		tools:         tool.NewRegistry(),
		history:       agentContext.New(),
		middlewares:   middleware.NewChain(),
		logger:        logging.WithComponent("agent"),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	a.supervisor = provider.NewToolSupervisor(a.tools, provider.WithErrorHandler(func(err error) {
		a.logger.Warn("tool provider refresh failed", "error", err)
	}))
	for _, p := range a.providers {
		a.supervisor.Register(p)
	}

	return a
}

// Name returns the agent name.
func (a *Agent) Name() string {
	return a.name
}

// RegisterTool registers a tool with the agent
func (a *Agent) RegisterTool(t *tool.Tool) error {
	return a.tools.Register(t)
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry {
	return a.tools
}

// AddMiddleware adds a middleware to the agent with validation
func (a *Agent) AddMiddleware(m middleware.Middleware) error {
	if m == nil {
		return fmt.Errorf("middleware cannot be nil")
	}
	a.middlewares.Add(m)
	return nil
}

// GetMiddlewareChain returns the middleware chain
func (a *Agent) GetMiddlewareChain() *middleware.Chain {
	return a.middlewares
}

// AddMessage adds a message to the conversation
func (a *Agent) AddMessage(msg *message.Message) {
	a.history.AddMessage(msg)
}

// GetMessages returns all messages
func (a *Agent) GetMessages() []*message.Message {
	return a.history.GetMessages()
}

// RestoreMessages replaces the conversation history with the given turns.
func (a *Agent) RestoreMessages(msgs []*message.Message) {
	a.history.Clear()
	for _, msg := range message.CloneMessages(msgs) {
		a.history.AddMessage(msg)
	}
}

// ClearMessages clears the conversation history
func (a *Agent) ClearMessages() {
	a.history.Clear()
}

// Close releases tool providers and stops their watchers.
func (a *Agent) Close() error {
	return a.supervisor.Close()
}

// Run executes the agent with the given input and returns the final answer.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	if a.engine == nil {
		return "", fmt.Errorf("agent: engine is not configured")
	}
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("agent: input cannot be empty")
	}
	if err := a.supervisor.Refresh(ctx); err != nil {
		return "", err
	}

	mwCtx := middleware.NewContext(ctx)
	mwCtx.Input = input

	err := a.middlewares.Execute(mwCtx, func(mwCtx *middleware.Context) error {
		a.history.AddMessage(message.NewMessage(message.RoleUser, input))
		mwCtx.Messages = a.history.GetMessages()

		for i := 0; i < a.maxIterations; i++ {
			result, err := a.engine.Generate(mwCtx.Context(), &runtime.Request{
				Messages:     a.history.GetMessages(),
				SystemPrompt: a.systemPrompt,
				Tools:        a.tools.Descriptors(),
				MaxTokens:    a.maxTokens,
				Temperature:  a.temperature,
			})
			if err != nil {
				return fmt.Errorf("agent: generation failed: %w", err)
			}

			reply := message.NewMessage(message.RoleAssistant, result.Text)
			reply.ToolCalls = result.ToolCalls
			a.history.AddMessage(reply)
			mwCtx.Response = reply

			a.logger.Debug("generation round complete",
				"agent", a.name,
				"iteration", i,
				"tool_calls", len(result.ToolCalls),
				"usage_estimate", result.Usage.Total(),
				"terminated", result.Terminated)

			if result.Terminated || len(result.ToolCalls) == 0 {
				return nil
			}

			for _, call := range result.ToolCalls {
				output, err := a.tools.Execute(mwCtx.Context(), call.Name, call.Args)
				if err != nil {
					a.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
					output = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
				}
				a.history.AddMessage(message.NewToolResponseMessage(call.ID, output))
			}
		}

		mwCtx.Error = fmt.Errorf("agent: max iterations (%d) reached", a.maxIterations)
		return mwCtx.Error
	})

	if err != nil {
		return "", err
	}
	if mwCtx.Response != nil {
		return mwCtx.Response.Content, nil
	}
	return "", fmt.Errorf("agent: no response generated")
}

// Clone creates a copy of the agent with the same configuration and tools,
// but a fresh conversation history.
func (a *Agent) Clone() *Agent {
	opts := []Option{
		WithName(a.name),
		WithSystemPrompt(a.systemPrompt),
		WithMaxIterations(a.maxIterations),
		WithMaxTokens(a.maxTokens),
		WithTemperature(a.temperature),
		WithEngine(a.engine),
		WithMiddlewares(a.middlewares.List()...),
		WithLogger(a.logger),
	}
	for _, p := range a.providers {
		opts = append(opts, WithToolProvider(p))
	}

	cloned := New(opts...)
	for _, t := range a.tools.List() {
		if t != nil {
			_ = cloned.tools.Register(t)
		}
	}
	return cloned
}
