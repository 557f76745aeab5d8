package catalog

import (
	"math"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	t.Run("direct name", func(t *testing.T) {
		cfg, err := Get("claude-3-5-sonnet")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if cfg.ModelID != "anthropic.claude-3-5-sonnet-20240620-v1:0" {
			t.Fatalf("unexpected model id: %s", cfg.ModelID)
		}
		if cfg.MaxTokens != 4096 {
			t.Fatalf("unexpected max tokens: %d", cfg.MaxTokens)
		}
	})

	t.Run("alias resolves", func(t *testing.T) {
		cfg, err := Get("nova")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if cfg.ModelID != "amazon.nova-pro-v1:0" {
			t.Fatalf("unexpected model id: %s", cfg.ModelID)
		}
	})

	t.Run("unknown name lists available models", func(t *testing.T) {
		_, err := Get("gpt-4")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "nova-pro") {
			t.Fatalf("error should list available models: %v", err)
		}
	})
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"claude-3-5-sonnet", "anthropic.claude-3-5-sonnet-20240620-v1:0"},
		{"claude-fast", "anthropic.claude-3-haiku-20240307-v1:0"},
		{"nova-lite", "amazon.nova-lite-v1:0"},
		// Already-resolved identifiers pass through.
		{"anthropic.claude-3-opus-20240229-v1:0", "anthropic.claude-3-opus-20240229-v1:0"},
		{"meta.llama3-70b-instruct-v1:0", "meta.llama3-70b-instruct-v1:0"},
		// Unknown names pass through verbatim.
		{"my-custom-model", "my-custom-model"},
	}
	for _, tc := range cases {
		if got := Resolve(tc.name); got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatal("expected model names")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
}

func TestListIsACopy(t *testing.T) {
	first := List()
	first["nova-pro"] = ModelConfig{Name: "mutated"}

	second := List()
	if second["nova-pro"].Name != "Amazon Nova Pro" {
		t.Fatal("List handed out shared state")
	}
}

func TestByProvider(t *testing.T) {
	for name, cfg := range ByProvider("anthropic") {
		if cfg.Provider != "anthropic" {
			t.Fatalf("model %s has provider %s", name, cfg.Provider)
		}
	}
	if len(ByProvider("amazon")) == 0 {
		t.Fatal("expected amazon models")
	}
	if len(ByProvider("nonexistent")) != 0 {
		t.Fatal("expected no models for unknown provider")
	}
}

func TestEstimateCost(t *testing.T) {
	cost, err := EstimateCost("claude-3-5-sonnet", 1000, 1000)
	if err != nil {
		t.Fatalf("EstimateCost: %v", err)
	}
	if math.Abs(cost-0.018) > 1e-9 {
		t.Fatalf("unexpected cost: %f", cost)
	}

	if _, err := EstimateCost("unknown", 1, 1); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestDefaultModel(t *testing.T) {
	if _, err := Get(DefaultModel); err != nil {
		t.Fatalf("default model must be catalogued: %v", err)
	}
}
