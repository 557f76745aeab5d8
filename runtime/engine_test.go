package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jivagrisma/ISA-AGENT/message"
	"github.com/jivagrisma/ISA-AGENT/tool"
)

type fakeInvoker struct {
	responses [][]byte
	err       error
	calls     int
	envelopes [][]byte
	modelIDs  []string
}

func (f *fakeInvoker) Invoke(_ context.Context, modelID string, envelope []byte) ([]byte, error) {
	f.calls++
	f.modelIDs = append(f.modelIDs, modelID)
	f.envelopes = append(f.envelopes, envelope)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	raw := f.responses[0]
	f.responses = f.responses[1:]
	return raw, nil
}

func flatResponse(text string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"text": text}},
	})
	return raw
}

func structuredResponse(text string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"output": map[string]any{
			"message": map[string]any{
				"content": []map[string]string{{"text": text}},
			},
		},
	})
	return raw
}

func userTurn(content string) *message.Message {
	return message.NewMessage(message.RoleUser, content)
}

func assistantTurn(content string) *message.Message {
	return message.NewMessage(message.RoleAssistant, content)
}

func TestEngineGenerate(t *testing.T) {
	t.Run("flat family round trip", func(t *testing.T) {
		invoker := &fakeInvoker{responses: [][]byte{flatResponse("The capital of France is Paris.")}}
		engine, err := NewEngine(invoker, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		result, err := engine.Generate(context.Background(), &Request{
			Messages:     []*message.Message{userTurn("What is the capital of France?")},
			SystemPrompt: "You are a helpful assistant.",
			MaxTokens:    512,
			Temperature:  0.5,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if result.Terminated {
			t.Fatal("expected a live generation, got termination")
		}
		if result.Text != "The capital of France is Paris." {
			t.Fatalf("unexpected text: %q", result.Text)
		}
		if len(result.ToolCalls) != 0 {
			t.Fatalf("expected no tool calls, got %d", len(result.ToolCalls))
		}
		if result.Usage.Total() == 0 {
			t.Fatal("expected a nonzero usage estimate")
		}

		if invoker.calls != 1 {
			t.Fatalf("expected 1 invocation, got %d", invoker.calls)
		}
		if invoker.modelIDs[0] != "anthropic.claude-3-5-sonnet-20240620-v1:0" {
			t.Fatalf("unexpected resolved model: %s", invoker.modelIDs[0])
		}

		var envelope map[string]any
		if err := json.Unmarshal(invoker.envelopes[0], &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if envelope["anthropic_version"] != "bedrock-2023-05-31" {
			t.Fatalf("unexpected anthropic_version: %v", envelope["anthropic_version"])
		}
		system, _ := envelope["system"].(string)
		if !strings.Contains(system, "You are a helpful assistant.") {
			t.Fatalf("system prompt missing from envelope: %q", system)
		}
	})

	t.Run("structured family uses inference config", func(t *testing.T) {
		invoker := &fakeInvoker{responses: [][]byte{structuredResponse("hello")}}
		engine, err := NewEngine(invoker, "nova-pro")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		result, err := engine.Generate(context.Background(), &Request{
			Messages:    []*message.Message{userTurn("say hello")},
			MaxTokens:   256,
			Temperature: 0.2,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if result.Text != "hello" {
			t.Fatalf("unexpected text: %q", result.Text)
		}

		var envelope map[string]any
		if err := json.Unmarshal(invoker.envelopes[0], &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		inference, ok := envelope["inferenceConfig"].(map[string]any)
		if !ok {
			t.Fatalf("missing inferenceConfig: %v", envelope)
		}
		if inference["maxTokens"] != float64(256) {
			t.Fatalf("unexpected maxTokens: %v", inference["maxTokens"])
		}
	})

	t.Run("tool instructions rendered when tools declared", func(t *testing.T) {
		invoker := &fakeInvoker{responses: [][]byte{flatResponse("ok")}}
		engine, err := NewEngine(invoker, "claude-3-haiku")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		_, err = engine.Generate(context.Background(), &Request{
			Messages:    []*message.Message{userTurn("hi")},
			Tools:       []tool.Descriptor{{Name: "web_search", Description: "search the web"}},
			MaxTokens:   128,
			Temperature: 0,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(invoker.envelopes[0], &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		system, _ := envelope["system"].(string)
		if !strings.Contains(system, "web_search: search the web") {
			t.Fatalf("tool descriptor missing from system block: %q", system)
		}
		if !strings.Contains(system, "AVAILABLE TOOLS") {
			t.Fatalf("instruction header missing from system block: %q", system)
		}
	})

	t.Run("recovers embedded tool calls", func(t *testing.T) {
		reply := `Let me look that up. {"name": "web_search", "arguments": {"query": "go generics"}}`
		invoker := &fakeInvoker{responses: [][]byte{flatResponse(reply)}}
		engine, err := NewEngine(invoker, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		result, err := engine.Generate(context.Background(), &Request{
			Messages:    []*message.Message{userTurn("tell me about go generics")},
			MaxTokens:   512,
			Temperature: 0.5,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(result.ToolCalls) != 1 {
			t.Fatalf("expected 1 tool call, got %d", len(result.ToolCalls))
		}
		call := result.ToolCalls[0]
		if call.Name != "web_search" || call.ID != "call_0" {
			t.Fatalf("unexpected call: %+v", call)
		}
		if call.Args["query"] != "go generics" {
			t.Fatalf("unexpected args: %v", call.Args)
		}
		if result.Text != "Let me look that up." {
			t.Fatalf("unexpected remaining text: %q", result.Text)
		}
	})

	t.Run("suppresses repeat searches", func(t *testing.T) {
		reply := `Searching more. {"name": "web_search", "arguments": {"query": "again"}}`
		invoker := &fakeInvoker{responses: [][]byte{flatResponse(reply)}}
		engine, err := NewEngine(invoker, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		history := []*message.Message{
			userTurn("research go generics"),
			assistantTurn(`{"name": "web_search", "arguments": {"query": "go generics"}}`),
			message.NewToolResponseMessage("call_0", "result: generics shipped in go 1.18"),
		}
		result, err := engine.Generate(context.Background(), &Request{
			Messages:    history,
			MaxTokens:   512,
			Temperature: 0.5,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if result.Terminated {
			t.Fatal("one prior search must not terminate the generation")
		}
		if len(result.ToolCalls) != 0 {
			t.Fatalf("expected the repeat search to be suppressed, got %d calls", len(result.ToolCalls))
		}
		// Suppressed calls keep their JSON in the visible text.
		if !strings.Contains(result.Text, `"web_search"`) {
			t.Fatalf("suppressed call text missing: %q", result.Text)
		}
	})

	t.Run("guard terminates repetitive search loops", func(t *testing.T) {
		invoker := &fakeInvoker{}
		engine, err := NewEngine(invoker, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		history := []*message.Message{
			userTurn("research the topic"),
			assistantTurn(`{"name": "web_search", "arguments": {"query": "topic"}}`),
			assistantTurn(`still searching, {"name": "web_search", "arguments": {"query": "topic again"}}`),
		}
		result, err := engine.Generate(context.Background(), &Request{
			Messages:    history,
			MaxTokens:   512,
			Temperature: 0.5,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !result.Terminated {
			t.Fatal("expected guard termination")
		}
		if invoker.calls != 0 {
			t.Fatalf("terminated generation must not invoke the model, got %d calls", invoker.calls)
		}
		if !strings.Contains(result.Text, "research the topic") {
			t.Fatalf("synthesized answer should restate the goal: %q", result.Text)
		}
	})

	t.Run("content tasks bypass the guard", func(t *testing.T) {
		invoker := &fakeInvoker{responses: [][]byte{flatResponse("<html></html>")}}
		engine, err := NewEngine(invoker, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		history := []*message.Message{
			assistantTurn("web_search round one"),
			assistantTurn("web_search round two"),
			userTurn("now build the landing page"),
		}
		result, err := engine.Generate(context.Background(), &Request{
			Messages:    history,
			MaxTokens:   512,
			Temperature: 0.5,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if result.Terminated {
			t.Fatal("content task must bypass forced termination")
		}
		if invoker.calls != 1 {
			t.Fatalf("expected the model to be invoked, got %d calls", invoker.calls)
		}
	})

	t.Run("malformed payload falls back to raw body", func(t *testing.T) {
		invoker := &fakeInvoker{responses: [][]byte{[]byte("plain text, not json")}}
		engine, err := NewEngine(invoker, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		result, err := engine.Generate(context.Background(), &Request{
			Messages:    []*message.Message{userTurn("hi")},
			MaxTokens:   128,
			Temperature: 0,
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if result.Text != "plain text, not json" {
			t.Fatalf("expected raw body fallback, got %q", result.Text)
		}
	})

	t.Run("transport errors propagate", func(t *testing.T) {
		invoker := &fakeInvoker{err: errors.New("boom")}
		engine, err := NewEngine(invoker, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		_, err = engine.Generate(context.Background(), &Request{
			Messages:    []*message.Message{userTurn("hi")},
			MaxTokens:   128,
			Temperature: 0,
		})
		if err == nil || !strings.Contains(err.Error(), "boom") {
			t.Fatalf("expected transport error, got %v", err)
		}
	})

	t.Run("rejects empty requests", func(t *testing.T) {
		engine, err := NewEngine(&fakeInvoker{}, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		if _, err := engine.Generate(context.Background(), nil); err == nil {
			t.Fatal("expected error for nil request")
		}
		if _, err := engine.Generate(context.Background(), &Request{}); err == nil {
			t.Fatal("expected error for empty history")
		}
	})

	t.Run("rejects out of range temperature", func(t *testing.T) {
		engine, err := NewEngine(&fakeInvoker{}, "claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		_, err = engine.Generate(context.Background(), &Request{
			Messages:    []*message.Message{userTurn("hi")},
			MaxTokens:   128,
			Temperature: 1.5,
		})
		if err == nil {
			t.Fatal("expected validation error for temperature 1.5")
		}
	})
}

type fixedCounter struct{ n int }

func (c fixedCounter) CountTokens(string) int { return c.n }

func TestEngineTokenCounter(t *testing.T) {
	invoker := &fakeInvoker{responses: [][]byte{flatResponse("four words of text")}}
	engine, err := NewEngine(invoker, "claude-3-5-sonnet", WithTokenCounter(fixedCounter{n: 7}))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := engine.Generate(context.Background(), &Request{
		Messages:    []*message.Message{userTurn("hi")},
		MaxTokens:   128,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// One wire message plus the completion, both counted by the fixed counter.
	if result.Usage.PromptTokens != 7 || result.Usage.CompletionTokens != 7 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
}
