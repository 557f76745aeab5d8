// Package catalog maps logical model names to Bedrock model identifiers and
// their default generation parameters.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// ModelConfig describes a single Bedrock model entry.
type ModelConfig struct {
	ModelID                string
	Name                   string
	Provider               string
	MaxTokens              int
	Temperature            float64
	SupportsSystemMessages bool
	SupportsStreaming      bool
	InputCostPer1K         float64
	OutputCostPer1K        float64
}

// DefaultModel is the logical name used when the caller does not pick one.
const DefaultModel = "nova-pro"

var models = map[string]ModelConfig{
	"claude-3-7-sonnet": {
		ModelID:                "anthropic.claude-3-7-sonnet-20250219-v1:0",
		Name:                   "Claude 3.7 Sonnet",
		Provider:               "anthropic",
		MaxTokens:              4096,
		Temperature:            0.7,
		SupportsSystemMessages: true,
		InputCostPer1K:         0.003,
		OutputCostPer1K:        0.015,
	},
	"claude-3-5-sonnet": {
		ModelID:                "anthropic.claude-3-5-sonnet-20240620-v1:0",
		Name:                   "Claude 3.5 Sonnet",
		Provider:               "anthropic",
		MaxTokens:              4096,
		Temperature:            0.7,
		SupportsSystemMessages: true,
		InputCostPer1K:         0.003,
		OutputCostPer1K:        0.015,
	},
	"claude-3-sonnet": {
		ModelID:                "anthropic.claude-3-sonnet-20240229-v1:0",
		Name:                   "Claude 3 Sonnet",
		Provider:               "anthropic",
		MaxTokens:              4096,
		Temperature:            0.7,
		SupportsSystemMessages: true,
		InputCostPer1K:         0.003,
		OutputCostPer1K:        0.015,
	},
	"claude-3-haiku": {
		ModelID:                "anthropic.claude-3-haiku-20240307-v1:0",
		Name:                   "Claude 3 Haiku",
		Provider:               "anthropic",
		MaxTokens:              4096,
		Temperature:            0.7,
		SupportsSystemMessages: true,
		InputCostPer1K:         0.00025,
		OutputCostPer1K:        0.00125,
	},
	"nova-pro": {
		ModelID:                "amazon.nova-pro-v1:0",
		Name:                   "Amazon Nova Pro",
		Provider:               "amazon",
		MaxTokens:              4096,
		Temperature:            0.7,
		SupportsSystemMessages: true,
		InputCostPer1K:         0.0008,
		OutputCostPer1K:        0.0032,
	},
	"nova-lite": {
		ModelID:                "amazon.nova-lite-v1:0",
		Name:                   "Amazon Nova Lite",
		Provider:               "amazon",
		MaxTokens:              4096,
		Temperature:            0.7,
		SupportsSystemMessages: true,
		InputCostPer1K:         0.0002,
		OutputCostPer1K:        0.0008,
	},
	"nova-micro": {
		ModelID:                "amazon.nova-micro-v1:0",
		Name:                   "Amazon Nova Micro",
		Provider:               "amazon",
		MaxTokens:              4096,
		Temperature:            0.7,
		SupportsSystemMessages: true,
		InputCostPer1K:         0.000035,
		OutputCostPer1K:        0.00014,
	},
	"titan-text-express": {
		ModelID:         "amazon.titan-text-express-v1",
		Name:            "Amazon Titan Text Express",
		Provider:        "amazon",
		MaxTokens:       4096,
		Temperature:     0.7,
		InputCostPer1K:  0.0008,
		OutputCostPer1K: 0.0016,
	},
}

var aliases = map[string]string{
	"claude":        "claude-3-7-sonnet",
	"claude-3.7":    "claude-3-7-sonnet",
	"claude-sonnet": "claude-3-5-sonnet",
	"claude-3.5":    "claude-3-5-sonnet",
	"claude-3":      "claude-3-sonnet",
	"claude-fast":   "claude-3-haiku",
	"nova":          "nova-pro",
	"titan":         "titan-text-express",
}

// knownPrefixes are vendor prefixes of already-resolved Bedrock identifiers.
var knownPrefixes = []string{"anthropic.", "amazon.", "ai21.", "cohere.", "meta."}

// legacyMappings is the last-resort table consulted for names that are neither
// catalogued nor prefixed like a Bedrock identifier.
var legacyMappings = map[string]string{
	"claude-3-5-sonnet": "anthropic.claude-3-5-sonnet-20240620-v1:0",
	"claude-3-sonnet":   "anthropic.claude-3-sonnet-20240229-v1:0",
	"claude-3-haiku":    "anthropic.claude-3-haiku-20240307-v1:0",
	"nova-pro":          "amazon.nova-pro-v1:0",
	"nova-lite":         "amazon.nova-lite-v1:0",
	"nova-micro":        "amazon.nova-micro-v1:0",
}

// Get returns the configuration for a logical model name or alias.
func Get(name string) (ModelConfig, error) {
	resolved := name
	if target, ok := aliases[name]; ok {
		resolved = target
	}
	cfg, ok := models[resolved]
	if !ok {
		return ModelConfig{}, fmt.Errorf("catalog: model %q not found (available: %s)", name, strings.Join(Names(), ", "))
	}
	return cfg, nil
}

// Resolve maps a logical model name to its Bedrock identifier. Unknown names
// pass through the prefix check and the legacy table before being returned
// verbatim.
func Resolve(name string) string {
	if cfg, err := Get(name); err == nil {
		return cfg.ModelID
	}
	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(name, prefix) {
			return name
		}
	}
	if id, ok := legacyMappings[name]; ok {
		return id
	}
	return name
}

// Names lists the logical model names and aliases in sorted order.
func Names() []string {
	names := make([]string, 0, len(models)+len(aliases))
	for name := range models {
		names = append(names, name)
	}
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// List returns a copy of the full model table.
func List() map[string]ModelConfig {
	out := make(map[string]ModelConfig, len(models))
	for name, cfg := range models {
		out[name] = cfg
	}
	return out
}

// ByProvider returns models filtered by provider ("anthropic", "amazon").
func ByProvider(provider string) map[string]ModelConfig {
	out := make(map[string]ModelConfig)
	for name, cfg := range models {
		if cfg.Provider == provider {
			out[name] = cfg
		}
	}
	return out
}

// EstimateCost estimates the USD cost of a request against the given model.
func EstimateCost(name string, inputTokens, outputTokens int) (float64, error) {
	cfg, err := Get(name)
	if err != nil {
		return 0, err
	}
	inputCost := float64(inputTokens) / 1000 * cfg.InputCostPer1K
	outputCost := float64(outputTokens) / 1000 * cfg.OutputCostPer1K
	return inputCost + outputCost, nil
}
