package bedrock

import (
	"encoding/json"
	"strings"

	"github.com/jivagrisma/ISA-AGENT/message"
)

const anthropicVersion = "bedrock-2023-05-31"

// Request is the provider-agnostic input to a single model invocation.
type Request struct {
	Messages    []*message.Message
	MaxTokens   int
	Temperature float64
}

type flatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type flatEnvelope struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	System           string        `json:"system"`
	Messages         []flatMessage `json:"messages"`
}

type contentPart struct {
	Text string `json:"text"`
}

type structuredMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type inferenceConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

type structuredEnvelope struct {
	Messages        []structuredMessage `json:"messages"`
	InferenceConfig inferenceConfig     `json:"inferenceConfig"`
}

// Format turns the request into the wire envelope this family expects.
// All system turns are concatenated (joined by newline) into exactly one
// formatted slot; turn order is preserved and no non-system turn is dropped.
func (f Family) Format(req *Request) ([]byte, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &FormatError{Reason: "message list is empty"}
	}
	if req.MaxTokens <= 0 {
		return nil, &FormatError{Reason: "max_tokens must be positive"}
	}

	system, rest := splitSystem(req.Messages)

	switch f {
	case FamilyFlatText:
		env := flatEnvelope{
			AnthropicVersion: anthropicVersion,
			MaxTokens:        req.MaxTokens,
			Temperature:      req.Temperature,
			System:           system,
			Messages:         make([]flatMessage, 0, len(rest)),
		}
		for _, msg := range rest {
			env.Messages = append(env.Messages, flatMessage{
				Role:    wireRole(msg.Role),
				Content: msg.Content,
			})
		}
		return json.Marshal(env)

	case FamilyStructuredContent:
		env := structuredEnvelope{
			Messages: make([]structuredMessage, 0, len(rest)+1),
			InferenceConfig: inferenceConfig{
				MaxTokens:   req.MaxTokens,
				Temperature: req.Temperature,
			},
		}
		// No system slot in this family: system text becomes one synthesized
		// leading user turn.
		if system != "" {
			env.Messages = append(env.Messages, structuredMessage{
				Role:    "user",
				Content: []contentPart{{Text: system}},
			})
		}
		for _, msg := range rest {
			env.Messages = append(env.Messages, structuredMessage{
				Role:    wireRole(msg.Role),
				Content: []contentPart{{Text: msg.Content}},
			})
		}
		return json.Marshal(env)

	default:
		return nil, &FormatError{Reason: "unsupported model family"}
	}
}

// splitSystem separates system turns from the rest, concatenating their text.
func splitSystem(msgs []*message.Message) (string, []*message.Message) {
	var system []string
	rest := make([]*message.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if msg.Role == message.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(system, "\n"), rest
}

// wireRole collapses internal roles onto the two the wire formats accept.
// Tool results travel as user turns.
func wireRole(role message.Role) string {
	if role == message.RoleAssistant {
		return "assistant"
	}
	return "user"
}
