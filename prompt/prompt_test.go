package prompt

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/jivagrisma/ISA-AGENT/errors"
)

func TestTemplate(t *testing.T) {
	t.Run("renders variables", func(t *testing.T) {
		tmpl, err := NewTemplate("greeting", "Hello, {{.Name}}!")
		if err != nil {
			t.Fatalf("NewTemplate: %v", err)
		}
		if tmpl.Name() != "greeting" {
			t.Fatalf("unexpected name: %q", tmpl.Name())
		}
		out, err := tmpl.Render(map[string]any{"Name": "world"})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if out != "Hello, world!" {
			t.Fatalf("unexpected render: %q", out)
		}
	})

	t.Run("rejects malformed templates", func(t *testing.T) {
		if _, err := NewTemplate("bad", "{{.Name"); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("rejects blank names", func(t *testing.T) {
		if _, err := NewTemplate("  ", "content"); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("expected invalid input error, got %v", err)
		}
	})
}

func TestManager(t *testing.T) {
	t.Run("register and render", func(t *testing.T) {
		m := NewManager()
		if err := m.RegisterString("t1", "value: {{.V}}"); err != nil {
			t.Fatalf("RegisterString: %v", err)
		}
		if !m.Has("t1") {
			t.Fatal("Has should report registered template")
		}
		out, err := m.Render("t1", map[string]any{"V": 42})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if out != "value: 42" {
			t.Fatalf("unexpected render: %q", out)
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		m := NewManager()
		_ = m.RegisterString("t1", "a")
		if err := m.RegisterString("t1", "b"); !errors.Is(err, apperrors.ErrAlreadyExists) {
			t.Fatalf("expected already-exists error, got %v", err)
		}
	})

	t.Run("unknown template errors", func(t *testing.T) {
		m := NewManager()
		if _, err := m.Render("missing", nil); !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("expected not-found error, got %v", err)
		}
	})

	t.Run("lists names sorted", func(t *testing.T) {
		m := NewManager()
		_ = m.RegisterString("zeta", "z")
		_ = m.RegisterString("alpha", "a")
		names := m.List()
		if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
			t.Fatalf("unexpected list: %v", names)
		}
	})
}

func TestRegisterDefaults(t *testing.T) {
	m := NewManager()
	if err := RegisterDefaults(m); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}

	t.Run("tool instructions", func(t *testing.T) {
		out, err := m.Render(ToolInstructions, map[string]any{
			"Tools": []map[string]any{
				{"Name": "web_search", "Description": "search the web"},
			},
		})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(out, "- web_search: search the web") {
			t.Fatalf("tool listing missing: %q", out)
		}
		if !strings.Contains(out, "ONLY ONCE per task") {
			t.Fatalf("usage rules missing: %q", out)
		}
	})

	t.Run("forced summary", func(t *testing.T) {
		out, err := m.Render(ForcedSummary, map[string]any{
			"Goal":    "find the answer",
			"Context": "gathered facts",
		})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(out, "find the answer") || !strings.Contains(out, "gathered facts") {
			t.Fatalf("summary fields missing: %q", out)
		}
	})

	t.Run("repeat registration fails loudly", func(t *testing.T) {
		if err := RegisterDefaults(m); !errors.Is(err, apperrors.ErrAlreadyExists) {
			t.Fatalf("expected duplicate registration error, got %v", err)
		}
	})
}
