package context

import (
	"fmt"
	"testing"

	"github.com/jivagrisma/ISA-AGENT/message"
)

func TestAddMessage(t *testing.T) {
	ctx := New()

	ctx.AddMessage(message.NewMessage(message.RoleUser, "hello"))
	ctx.AddMessage(nil)

	if ctx.Size() != 1 {
		t.Fatalf("expected 1 message, got %d", ctx.Size())
	}
	if ctx.GetLastMessage().Content != "hello" {
		t.Fatalf("unexpected last message: %+v", ctx.GetLastMessage())
	}
}

func TestTrimKeepsSystemMessages(t *testing.T) {
	ctx := NewWithMaxSize(5)
	ctx.AddMessage(message.NewMessage(message.RoleSystem, "system prompt"))

	for i := 0; i < 10; i++ {
		ctx.AddMessage(message.NewMessage(message.RoleUser, fmt.Sprintf("turn %d", i)))
	}

	if ctx.Size() != 5 {
		t.Fatalf("expected trimmed size 5, got %d", ctx.Size())
	}

	msgs := ctx.GetMessages()
	if msgs[0].Role != message.RoleSystem {
		t.Fatalf("system message dropped: %+v", msgs[0])
	}
	if msgs[len(msgs)-1].Content != "turn 9" {
		t.Fatalf("latest turn dropped: %+v", msgs[len(msgs)-1])
	}
}

func TestGetMessagesByRole(t *testing.T) {
	ctx := New()
	ctx.AddMessage(message.NewMessage(message.RoleUser, "q"))
	ctx.AddMessage(message.NewMessage(message.RoleAssistant, "a"))
	ctx.AddMessage(message.NewMessage(message.RoleUser, "q2"))

	users := ctx.GetMessagesByRole(message.RoleUser)
	if len(users) != 2 {
		t.Fatalf("expected 2 user messages, got %d", len(users))
	}
}

func TestClear(t *testing.T) {
	ctx := New()
	ctx.AddMessage(message.NewMessage(message.RoleUser, "x"))
	ctx.Clear()
	if ctx.Size() != 0 {
		t.Fatalf("expected empty context, got %d", ctx.Size())
	}
	if ctx.GetLastMessage() != nil {
		t.Fatal("expected nil last message")
	}
}

func TestInvalidMaxSizeFallsBack(t *testing.T) {
	ctx := NewWithMaxSize(-1)
	for i := 0; i < 50; i++ {
		ctx.AddMessage(message.NewMessage(message.RoleUser, "m"))
	}
	if ctx.Size() != 50 {
		t.Fatalf("default max size should hold 50, got %d", ctx.Size())
	}
}
