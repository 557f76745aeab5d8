package loopguard

import (
	"testing"

	"github.com/jivagrisma/ISA-AGENT/message"
)

func turns(contents ...string) []*message.Message {
	msgs := make([]*message.Message, 0, len(contents))
	for _, content := range contents {
		msgs = append(msgs, message.NewMessage(message.RoleAssistant, content))
	}
	return msgs
}

func TestInspect(t *testing.T) {
	t.Run("counts search and planning markers", func(t *testing.T) {
		snap := Inspect(turns(
			"Searching for results...",
			"Let's plan the next step",
			"calling web_search now",
		), DefaultWindow)

		if snap.SearchCount != 2 {
			t.Fatalf("expected 2 search turns, got %d", snap.SearchCount)
		}
		if snap.PlanningCount != 1 {
			t.Fatalf("expected 1 planning turn, got %d", snap.PlanningCount)
		}
	})

	t.Run("only the trailing window counts", func(t *testing.T) {
		msgs := turns(
			"web_search one",
			"web_search two",
			"a", "b", "c", "d", "e",
		)
		snap := Inspect(msgs, 5)
		if snap.SearchCount != 0 {
			t.Fatalf("old turns leaked into the window: %d", snap.SearchCount)
		}
	})

	t.Run("zero window falls back to the default", func(t *testing.T) {
		snap := Inspect(turns("a"), 0)
		if snap.Window != DefaultWindow {
			t.Fatalf("expected default window, got %d", snap.Window)
		}
	})
}

func TestShouldForceTerminate(t *testing.T) {
	t.Run("two searches trigger", func(t *testing.T) {
		msgs := turns("web_search a", "some text", "web_search b")
		if !ShouldForceTerminate(msgs, DefaultWindow) {
			t.Fatal("expected termination")
		}
	})

	t.Run("three planning turns trigger", func(t *testing.T) {
		msgs := turns("let's plan", "planning again", "we need to decide")
		if !ShouldForceTerminate(msgs, DefaultWindow) {
			t.Fatal("expected termination")
		}
	})

	t.Run("a single search does not trigger", func(t *testing.T) {
		msgs := turns("web_search a", "reading the results", "drafting the answer")
		if ShouldForceTerminate(msgs, DefaultWindow) {
			t.Fatal("unexpected termination")
		}
	})

	t.Run("two planning turns do not trigger", func(t *testing.T) {
		msgs := turns("let's plan", "planning again", "done")
		if ShouldForceTerminate(msgs, DefaultWindow) {
			t.Fatal("unexpected termination")
		}
	})

	t.Run("short histories never terminate", func(t *testing.T) {
		msgs := turns("web_search a", "web_search b")
		if ShouldForceTerminate(msgs, DefaultWindow) {
			t.Fatal("two-turn history must not terminate")
		}
	})
}

func TestSuppressSearch(t *testing.T) {
	if Inspect(turns("no markers here"), DefaultWindow).SuppressSearch() {
		t.Fatal("no searches should not suppress")
	}
	if !Inspect(turns("web_search once"), DefaultWindow).SuppressSearch() {
		t.Fatal("one search should suppress further searches")
	}
}

func TestIsContentTask(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Build me a landing page for my shop", true},
		{"Write the HTML and CSS for a hero section", true},
		{"What is the capital of France?", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsContentTask(tc.text); got != tc.want {
			t.Errorf("IsContentTask(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestLatestContent(t *testing.T) {
	msgs := turns("first", "second")
	msgs = append(msgs, nil)
	if got := LatestContent(msgs); got != "second" {
		t.Fatalf("unexpected latest content: %q", got)
	}
	if got := LatestContent(nil); got != "" {
		t.Fatalf("expected empty content, got %q", got)
	}
}
