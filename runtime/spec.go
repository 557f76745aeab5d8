package runtime

import (
	"github.com/jivagrisma/ISA-AGENT/config"
)

// AgentSpec captures the immutable configuration for building agents from
// declarative definitions.
type AgentSpec struct {
	Name          string
	Model         string
	SystemPrompt  string
	Description   string
	MaxIterations int
	MaxTokens     int
	Temperature   float64
	Tools         []string
}

// Validate ensures the spec is well formed before an agent is built from it.
func (s AgentSpec) Validate() error {
	v := config.NewValidator()
	v.RequireNonEmpty("name", s.Name)
	v.RequireNonEmpty("systemPrompt", s.SystemPrompt)
	v.RequirePositive("maxIterations", s.MaxIterations)
	v.ValidateFloatRange("temperature", s.Temperature, 0.0, 1.0)
	return v.Error()
}

// HasTool reports whether the spec declares the named default tool.
func (s AgentSpec) HasTool(name string) bool {
	for _, t := range s.Tools {
		if t == name {
			return true
		}
	}
	return false
}
