package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jivagrisma/ISA-AGENT/message"
	"github.com/jivagrisma/ISA-AGENT/middleware"
	"github.com/jivagrisma/ISA-AGENT/runtime"
	"github.com/jivagrisma/ISA-AGENT/tool"
)

// scriptedEngine returns canned results in order and records requests.
type scriptedEngine struct {
	results  []*runtime.Result
	err      error
	requests []*runtime.Request
}

func (e *scriptedEngine) Generate(_ context.Context, req *runtime.Request) (*runtime.Result, error) {
	e.requests = append(e.requests, req)
	if e.err != nil {
		return nil, e.err
	}
	if len(e.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := e.results[0]
	e.results = e.results[1:]
	return r, nil
}

func echoTool(t *testing.T, name string) *tool.Tool {
	t.Helper()
	return &tool.Tool{
		Name:        name,
		Description: "echoes its input",
		Parameters:  []tool.Parameter{{Name: "text", Type: "string", Required: true}},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			return "echo: " + text, nil
		},
	}
}

func TestAgentRun(t *testing.T) {
	t.Run("returns final text without tool calls", func(t *testing.T) {
		engine := &scriptedEngine{results: []*runtime.Result{{Text: "final answer"}}}
		ag := New(WithEngine(engine), WithSystemPrompt("be brief"))

		out, err := ag.Run(context.Background(), "question")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if out != "final answer" {
			t.Fatalf("unexpected output: %q", out)
		}

		if len(engine.requests) != 1 {
			t.Fatalf("expected 1 generation, got %d", len(engine.requests))
		}
		req := engine.requests[0]
		if req.SystemPrompt != "be brief" {
			t.Fatalf("system prompt not forwarded: %q", req.SystemPrompt)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "question" {
			t.Fatalf("unexpected history: %+v", req.Messages)
		}
	})

	t.Run("executes tool calls and feeds results back", func(t *testing.T) {
		engine := &scriptedEngine{results: []*runtime.Result{
			{
				Text: "let me check",
				ToolCalls: []message.ToolCall{
					{ID: "call_0", Name: "echo", Args: map[string]any{"text": "ping"}},
				},
			},
			{Text: "done: pong"},
		}}
		ag := New(WithEngine(engine))
		if err := ag.RegisterTool(echoTool(t, "echo")); err != nil {
			t.Fatalf("RegisterTool: %v", err)
		}

		out, err := ag.Run(context.Background(), "check this")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if out != "done: pong" {
			t.Fatalf("unexpected output: %q", out)
		}

		if len(engine.requests) != 2 {
			t.Fatalf("expected 2 generations, got %d", len(engine.requests))
		}
		// Second request history: user, assistant, tool response.
		history := engine.requests[1].Messages
		if len(history) != 3 {
			t.Fatalf("expected 3 messages in second round, got %d", len(history))
		}
		last := history[2]
		if last.Role != message.RoleTool || last.Content != "echo: ping" {
			t.Fatalf("unexpected tool response: %+v", last)
		}
		if last.ToolID != "call_0" {
			t.Fatalf("tool response not linked to call: %+v", last)
		}
		// Tool descriptors are advertised to the engine.
		if len(engine.requests[0].Tools) != 1 || engine.requests[0].Tools[0].Name != "echo" {
			t.Fatalf("tool descriptors missing: %+v", engine.requests[0].Tools)
		}
	})

	t.Run("tool failures are surfaced as tool output", func(t *testing.T) {
		engine := &scriptedEngine{results: []*runtime.Result{
			{ToolCalls: []message.ToolCall{{ID: "call_0", Name: "broken", Args: map[string]any{}}}},
			{Text: "recovered"},
		}}
		ag := New(WithEngine(engine))
		_ = ag.RegisterTool(&tool.Tool{
			Name:        "broken",
			Description: "always fails",
			Handler: func(context.Context, map[string]any) (string, error) {
				return "", errors.New("kaboom")
			},
		})

		out, err := ag.Run(context.Background(), "try it")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if out != "recovered" {
			t.Fatalf("unexpected output: %q", out)
		}

		history := engine.requests[1].Messages
		last := history[len(history)-1]
		if !strings.Contains(last.Content, "kaboom") {
			t.Fatalf("tool error missing from response: %q", last.Content)
		}
	})

	t.Run("terminated results end the loop immediately", func(t *testing.T) {
		engine := &scriptedEngine{results: []*runtime.Result{
			{
				Text:       "synthesized summary",
				Terminated: true,
				ToolCalls:  []message.ToolCall{{ID: "call_0", Name: "echo"}},
			},
		}}
		ag := New(WithEngine(engine))

		out, err := ag.Run(context.Background(), "loop forever")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if out != "synthesized summary" {
			t.Fatalf("unexpected output: %q", out)
		}
		if len(engine.requests) != 1 {
			t.Fatalf("terminated result must end the loop, got %d generations", len(engine.requests))
		}
	})

	t.Run("stops after max iterations", func(t *testing.T) {
		looping := &runtime.Result{
			ToolCalls: []message.ToolCall{{ID: "call_0", Name: "echo", Args: map[string]any{"text": "x"}}},
		}
		engine := &scriptedEngine{results: []*runtime.Result{looping, looping, looping}}
		ag := New(WithEngine(engine), WithMaxIterations(2))
		_ = ag.RegisterTool(echoTool(t, "echo"))

		_, err := ag.Run(context.Background(), "never ends")
		if err == nil || !strings.Contains(err.Error(), "max iterations") {
			t.Fatalf("expected max iterations error, got %v", err)
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		ag := New(WithEngine(&scriptedEngine{}))
		if _, err := ag.Run(context.Background(), "  "); err == nil {
			t.Fatal("expected error for empty input")
		}
	})

	t.Run("fails without an engine", func(t *testing.T) {
		ag := New()
		if _, err := ag.Run(context.Background(), "hello"); err == nil {
			t.Fatal("expected error when engine is missing")
		}
	})

	t.Run("middleware can reject input", func(t *testing.T) {
		engine := &scriptedEngine{results: []*runtime.Result{{Text: "should not run"}}}
		ag := New(
			WithEngine(engine),
			WithMiddleware(middleware.NewInputValidator(func(input string) error {
				return errors.New("rejected")
			})),
		)

		_, err := ag.Run(context.Background(), "anything")
		if err == nil || !strings.Contains(err.Error(), "rejected") {
			t.Fatalf("expected validator rejection, got %v", err)
		}
		if len(engine.requests) != 0 {
			t.Fatal("engine must not be invoked after rejection")
		}
	})
}

func TestAgentClone(t *testing.T) {
	engine := &scriptedEngine{results: []*runtime.Result{{Text: "one"}, {Text: "two"}}}
	ag := New(WithEngine(engine), WithName("proto"), WithTemperature(0.3))
	_ = ag.RegisterTool(echoTool(t, "echo"))
	ag.AddMessage(message.NewMessage(message.RoleUser, "existing turn"))

	cloned := ag.Clone()
	if cloned.Name() != "proto" {
		t.Fatalf("clone lost name: %q", cloned.Name())
	}
	if len(cloned.GetMessages()) != 0 {
		t.Fatal("clone must start with fresh history")
	}
	if _, err := cloned.Tools().Get("echo"); err != nil {
		t.Fatalf("clone lost tools: %v", err)
	}

	cloned.AddMessage(message.NewMessage(message.RoleUser, "clone turn"))
	if len(ag.GetMessages()) != 1 {
		t.Fatal("clone history must not leak into the prototype")
	}
}

func TestAgentRestoreMessages(t *testing.T) {
	ag := New(WithEngine(&scriptedEngine{}))
	turns := []*message.Message{
		message.NewMessage(message.RoleUser, "one"),
		message.NewMessage(message.RoleAssistant, "two"),
	}
	ag.RestoreMessages(turns)

	restored := ag.GetMessages()
	if len(restored) != 2 {
		t.Fatalf("expected 2 restored messages, got %d", len(restored))
	}
	// Restoration clones, so mutating the source must not affect the agent.
	turns[0].Content = "mutated"
	if ag.GetMessages()[0].Content != "one" {
		t.Fatal("restored history must be a copy")
	}
}
