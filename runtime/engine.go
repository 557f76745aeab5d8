// Package runtime orchestrates model generations: it formats conversation
// state for the target model family, invokes the transport with retry
// semantics, interprets the raw response, and recovers embedded tool calls.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jivagrisma/ISA-AGENT/bedrock"
	"github.com/jivagrisma/ISA-AGENT/catalog"
	"github.com/jivagrisma/ISA-AGENT/config"
	"github.com/jivagrisma/ISA-AGENT/loopguard"
	"github.com/jivagrisma/ISA-AGENT/message"
	"github.com/jivagrisma/ISA-AGENT/pkg/logging"
	"github.com/jivagrisma/ISA-AGENT/pkg/telemetry"
	"github.com/jivagrisma/ISA-AGENT/prompt"
	"github.com/jivagrisma/ISA-AGENT/tool"
	"github.com/jivagrisma/ISA-AGENT/toolcall"
)

// searchToolName is the tool whose repeat invocations the loop guard caps.
const searchToolName = "web_search"

const defaultMaxTokens = 4096

// Invoker abstracts the model transport.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, envelope []byte) ([]byte, error)
}

// TokenCounter estimates token usage for accounting. Engines fall back to a
// whitespace heuristic when no counter is configured.
type TokenCounter interface {
	CountTokens(text string) int
}

// Request captures the inputs for one generation.
type Request struct {
	Messages     []*message.Message
	SystemPrompt string
	Tools        []tool.Descriptor
	MaxTokens    int
	Temperature  float64
}

// Usage is a client-side token estimate. It is an approximation for
// budgeting and logging, not provider-billed truth.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns the combined estimate.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Result is the interpreted outcome of one generation.
type Result struct {
	// Text is the model's prose with accepted tool-call JSON removed.
	Text string

	// ToolCalls recovered from the response, in scan order.
	ToolCalls []message.ToolCall

	// Usage is the client-side token estimate for this generation.
	Usage Usage

	// Terminated is set when the loop guard substituted a synthesized
	// final answer and no model invocation took place.
	Terminated bool
}

// Engine drives generations against one resolved model.
type Engine struct {
	invoker Invoker
	model   string
	modelID string
	family  bedrock.Family
	prompts *prompt.Manager
	counter TokenCounter
	window  int
	logger  *slog.Logger
	tracer  trace.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPromptManager overrides the template manager. The manager must carry
// the default template names.
func WithPromptManager(m *prompt.Manager) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.prompts = m
		}
	}
}

// WithTokenCounter sets the usage estimator.
func WithTokenCounter(c TokenCounter) EngineOption {
	return func(e *Engine) {
		e.counter = c
	}
}

// WithGuardWindow overrides the loop guard's inspection window.
func WithGuardWindow(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.window = n
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an engine for the given model. The model name is resolved
// through the catalog, so aliases and short names are accepted.
func NewEngine(invoker Invoker, model string, opts ...EngineOption) (*Engine, error) {
	if invoker == nil {
		return nil, fmt.Errorf("runtime: invoker cannot be nil")
	}
	modelID := catalog.Resolve(model)
	if modelID == "" {
		return nil, fmt.Errorf("runtime: model cannot be empty")
	}

	prompts := prompt.NewManager()
	if err := prompt.RegisterDefaults(prompts); err != nil {
		return nil, fmt.Errorf("runtime: register default templates: %w", err)
	}

	e := &Engine{
		invoker: invoker,
		model:   model,
		modelID: modelID,
		family:  bedrock.FamilyForModel(modelID),
		prompts: prompts,
		window:  loopguard.DefaultWindow,
		logger:  logging.WithComponent("engine"),
		tracer:  otel.Tracer("github.com/jivagrisma/ISA-AGENT/runtime"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// ModelID returns the resolved model identifier the engine invokes.
func (e *Engine) ModelID() string {
	return e.modelID
}

// Generate runs one guarded generation: loop guard check, request formatting,
// transport invocation, response extraction, and tool call recovery.
func (e *Engine) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("runtime: request must carry at least one message")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = e.defaultMaxTokens()
	}
	if err := config.ValidateGenerationConfig(maxTokens, req.Temperature); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	ctx, span := e.tracer.Start(ctx, "engine.generate", trace.WithAttributes(
		attribute.String("model.id", e.modelID),
		attribute.String("model.family", e.family.String()),
		attribute.Int("history.len", len(req.Messages)),
	))
	var genErr error
	defer func() { telemetry.End(span, genErr) }()

	snap := loopguard.Inspect(req.Messages, e.window)
	if snap.ShouldForceTerminate() && !loopguard.IsContentTask(loopguard.LatestContent(req.Messages)) {
		e.logger.Info("loop guard terminated generation",
			"search_count", snap.SearchCount,
			"planning_count", snap.PlanningCount,
			"history_len", snap.HistoryLen)
		span.SetAttributes(attribute.Bool("guard.terminated", true))
		return e.forcedResult(req)
	}

	wire := e.wireMessages(req)
	envelope, err := e.family.Format(&bedrock.Request{
		Messages:    wire,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		genErr = err
		return nil, err
	}

	raw, err := e.invoker.Invoke(ctx, e.modelID, envelope)
	if err != nil {
		genErr = err
		return nil, err
	}

	text, err := e.family.Extract(raw)
	if err != nil {
		var malformed *bedrock.MalformedResponseError
		if !errors.As(err, &malformed) {
			genErr = err
			return nil, err
		}
		// Known family, unexpected shape: degrade to the raw payload so
		// the caller still sees what the model produced.
		e.logger.Warn("malformed response payload, using raw body",
			"family", e.family.String(), "detail", malformed.Detail)
		text = string(raw)
	}

	outcome := toolcall.Parse(text,
		toolcall.WithLogger(e.logger),
		toolcall.WithSkip(func(name string) bool {
			return name == searchToolName && snap.SuppressSearch()
		}),
	)

	result := &Result{
		Text:      outcome.RemainingText,
		ToolCalls: outcome.ToolCalls,
		Usage: Usage{
			PromptTokens:     e.countMessages(wire),
			CompletionTokens: e.count(text),
		},
	}
	span.SetAttributes(
		attribute.Int("tool_calls", len(result.ToolCalls)),
		attribute.Int("usage.total", result.Usage.Total()),
	)
	return result, nil
}

// wireMessages prepends the composed system block to a copy of the history.
func (e *Engine) wireMessages(req *Request) []*message.Message {
	system := e.systemBlock(req)
	if system == "" {
		return req.Messages
	}
	wire := make([]*message.Message, 0, len(req.Messages)+1)
	wire = append(wire, message.NewMessage(message.RoleSystem, system))
	wire = append(wire, req.Messages...)
	return wire
}

// systemBlock joins the caller's system prompt with the rendered tool
// instruction template.
func (e *Engine) systemBlock(req *Request) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(req.SystemPrompt); s != "" {
		parts = append(parts, s)
	}
	if len(req.Tools) > 0 {
		rendered, err := e.prompts.Render(prompt.ToolInstructions, map[string]any{
			"Tools": req.Tools,
		})
		if err != nil {
			e.logger.Warn("tool instruction template failed", "error", err)
		} else {
			parts = append(parts, strings.TrimSpace(rendered))
		}
	}
	return strings.Join(parts, "\n\n")
}

// forcedResult synthesizes the terminal answer without touching the model.
func (e *Engine) forcedResult(req *Request) (*Result, error) {
	goal := latestUserContent(req.Messages)
	context := gatheredContext(req.Messages, e.window)

	text, err := e.prompts.Render(prompt.ForcedSummary, map[string]any{
		"Goal":    goal,
		"Context": context,
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: render forced summary: %w", err)
	}
	text = strings.TrimSpace(text)

	return &Result{
		Text:       text,
		Terminated: true,
		Usage:      Usage{CompletionTokens: e.count(text)},
	}, nil
}

func latestUserContent(msgs []*message.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] != nil && msgs[i].Role == message.RoleUser {
			return msgs[i].Content
		}
	}
	return loopguard.LatestContent(msgs)
}

// gatheredContext joins the recent non-user turns so the synthesized answer
// carries the information collected before termination.
func gatheredContext(msgs []*message.Message, window int) string {
	var parts []string
	for _, msg := range message.Window(msgs, window) {
		if msg == nil || msg.Role == message.RoleUser || msg.Role == message.RoleSystem {
			continue
		}
		if content := strings.TrimSpace(msg.Content); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (e *Engine) countMessages(msgs []*message.Message) int {
	total := 0
	for _, msg := range msgs {
		if msg != nil {
			total += e.count(msg.Content)
		}
	}
	return total
}

func (e *Engine) count(text string) int {
	if e.counter != nil {
		return e.counter.CountTokens(text)
	}
	return len(strings.Fields(text))
}

func (e *Engine) defaultMaxTokens() int {
	if cfg, err := catalog.Get(e.model); err == nil && cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}
