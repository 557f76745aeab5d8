// Package toolcall recovers structured tool invocations embedded in
// free-form model output.
package toolcall

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jivagrisma/ISA-AGENT/message"
	"github.com/jivagrisma/ISA-AGENT/pkg/logging"
)

// pattern matches {"name": "<tool>", "arguments": {...}} where the arguments
// object may nest braces one level deep. Deeper nesting is a documented limit
// of the scan, not a failure.
var pattern = regexp.MustCompile(`\{\s*"name":\s*"([^"]+)",\s*"arguments":\s*(\{(?:[^{}]|(?:\{[^{}]*\}))*\})\s*\}`)

// Outcome is the result of one parse pass.
type Outcome struct {
	// ToolCalls in left-to-right scan order, with zero-based sequential
	// call_<n> identifiers unique within the outcome.
	ToolCalls []message.ToolCall

	// RemainingText is the input with accepted matches removed and
	// whitespace trimmed. When no call and no prose survive the pass, it
	// carries the original unmodified text.
	RemainingText string
}

type options struct {
	skip   func(name string) bool
	logger *slog.Logger
}

// Option configures a parse pass.
type Option func(*options)

// WithSkip drops matches whose tool name the predicate rejects. Skipped
// matches are not executed and keep their text in place.
func WithSkip(fn func(name string) bool) Option {
	return func(o *options) {
		o.skip = fn
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Parse scans text for embedded tool invocations and separates them from
// prose. A match whose arguments fail strict JSON parsing gets a single
// repair pass (single quotes replaced with double quotes); if that also
// fails, the match is logged and skipped without aborting the scan.
func Parse(text string, opts ...Option) *Outcome {
	o := &options{logger: logging.WithComponent("toolcall")}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	remaining := text
	var calls []message.ToolCall

	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		full, name, rawArgs := match[0], match[1], match[2]

		if o.skip != nil && o.skip(name) {
			o.logger.Info("suppressed tool call", "tool", name)
			continue
		}

		args, err := parseArgs(rawArgs)
		if err != nil {
			o.logger.Warn("skipping unparseable tool call", "tool", name, "error", err)
			continue
		}

		calls = append(calls, message.ToolCall{
			ID:   fmt.Sprintf("call_%d", len(calls)),
			Name: name,
			Args: args,
		})
		// ReplaceAll strips every copy of the matched JSON, so a duplicated
		// identical call still yields one ToolCall per match while its later
		// copies are already gone from the remaining text.
		remaining = strings.TrimSpace(strings.ReplaceAll(remaining, full, ""))
	}

	remaining = strings.TrimSpace(remaining)
	if remaining == "" && len(calls) == 0 {
		// Never return a fully empty outcome.
		remaining = text
	}

	return &Outcome{
		ToolCalls:     calls,
		RemainingText: remaining,
	}
}

// parseArgs decodes the arguments object, attempting one repair pass for the
// common single-quote malformation before giving up.
func parseArgs(raw string) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}
	repaired := strings.ReplaceAll(raw, "'", `"`)
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("toolcall: decode arguments: %w", err)
	}
	return args, nil
}
