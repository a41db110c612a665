package store

import (
	"context"
	"testing"
)

func TestMemoryAppendAndLatestThread(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if id, err := s.LatestThreadID(ctx, "u1"); err != nil || id != "" {
		t.Fatalf("expected no thread for new user, got %q err %v", id, err)
	}

	if err := s.AppendTurn(ctx, "u1", RoleSystem, "Initial context set", "thread_a"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := s.AppendTurn(ctx, "u1", RoleUser, "hello", "thread_a"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := s.AppendTurn(ctx, "u2", RoleUser, "hi", "thread_b"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	id, err := s.LatestThreadID(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestThreadID: %v", err)
	}
	if id != "thread_a" {
		t.Errorf("expected thread_a, got %q", id)
	}
}

func TestMemoryLatestThreadSkipsEmptyHandles(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	s.AppendTurn(ctx, "u1", RoleUser, "first", "thread_a")
	s.AppendTurn(ctx, "u1", RoleAssistant, "reply", "")

	id, _ := s.LatestThreadID(ctx, "u1")
	if id != "thread_a" {
		t.Errorf("expected thread_a (latest non-empty handle), got %q", id)
	}
}

func TestMemoryUserMessages(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	s.AppendTurn(ctx, "u1", RoleUser, "show me chairs", "t")
	s.AppendTurn(ctx, "u1", RoleAssistant, "Here are chairs", "t")
	s.AppendTurn(ctx, "u1", RoleUser, "anything cheaper?", "t")

	messages, err := s.UserMessages(ctx, "u1")
	if err != nil {
		t.Fatalf("UserMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 user messages, got %d", len(messages))
	}
	if messages[0] != "show me chairs" || messages[1] != "anything cheaper?" {
		t.Errorf("messages out of order: %v", messages)
	}
}

func TestMemoryRejectsInvalidTurn(t *testing.T) {
	s := NewMemory()
	if err := s.AppendTurn(context.Background(), "", RoleUser, "x", ""); err != ErrInvalidTurn {
		t.Errorf("expected ErrInvalidTurn, got %v", err)
	}
}
