package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestTitleFrom(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello there", "Hello there"},
		{"newlines flattened", "line one\nline two", "line one line two"},
		{"empty", "   ", "New conversation"},
		{"long truncated", strings.Repeat("x", 80), strings.Repeat("x", 57) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TitleFrom(tt.in)
			if got != tt.want {
				t.Fatalf("TitleFrom(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len([]rune(got)) > 60 {
				t.Fatalf("title exceeds 60 runes: %d", len([]rune(got)))
			}
		})
	}
}

func TestEnsureConversationReusesExistingID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	id, err := store.EnsureConversation(ctx, "", "first question", "u1")
	if err != nil {
		t.Fatalf("EnsureConversation returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}
	again, err := store.EnsureConversation(ctx, id, "ignored seed", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Fatalf("existing id must be reused: %q vs %q", again, id)
	}
	// Unknown id creates a fresh conversation instead of failing.
	fresh, err := store.EnsureConversation(ctx, "ffffffffffffffffffffffff", "new topic", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh == "ffffffffffffffffffffffff" {
		t.Fatal("unknown id must not be adopted")
	}
}

func TestMessagesComeBackInOrder(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	id, _ := store.EnsureConversation(ctx, "", "hi", "")

	turns := []struct{ role, content string }{
		{"user", "hi"},
		{"assistant", "hello"},
		{"user", "explain goroutines"},
	}
	for _, turn := range turns {
		if err := store.AppendMessage(ctx, id, turn.role, turn.content); err != nil {
			t.Fatalf("AppendMessage returned error: %v", err)
		}
	}

	conv, msgs, err := store.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("GetConversation returned error: %v", err)
	}
	if conv.Title != "hi" {
		t.Fatalf("title = %q", conv.Title)
	}
	if len(msgs) != len(turns) {
		t.Fatalf("len = %d, want %d", len(msgs), len(turns))
	}
	for i, turn := range turns {
		if msgs[i].Role != turn.role || msgs[i].Content != turn.content {
			t.Fatalf("msg %d = %+v, want %+v", i, msgs[i], turn)
		}
	}

	history := History(msgs)
	if len(history) != 3 || history[2].Content != "explain goroutines" {
		t.Fatalf("History conversion broken: %#v", history)
	}
}

func TestAppendToUnknownConversationFails(t *testing.T) {
	store := NewInMemoryStore()
	err := store.AppendMessage(context.Background(), "missing", "user", "hi")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSoftDeleteHidesConversation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	id, _ := store.EnsureConversation(ctx, "", "to be deleted", "")
	keep, _ := store.EnsureConversation(ctx, "", "kept", "")

	if err := store.DeleteConversation(ctx, id); err != nil {
		t.Fatalf("DeleteConversation returned error: %v", err)
	}

	if _, _, err := store.GetConversation(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted conversation must read as not found, got %v", err)
	}
	list, err := store.ListConversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != keep {
		t.Fatalf("listing must hide deleted conversations: %#v", list)
	}
	// Deleting again or deleting the unknown stays a no-op.
	if err := store.DeleteConversation(ctx, "missing"); err != nil {
		t.Fatalf("unknown delete must be a no-op, got %v", err)
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	first, _ := store.EnsureConversation(ctx, "", "first", "")
	second, _ := store.EnsureConversation(ctx, "", "second", "")

	// Touch the older conversation so it moves to the top.
	if err := store.AppendMessage(ctx, first, "user", "bump"); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListConversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != first || list[1].ID != second {
		t.Fatalf("unexpected order: %#v", list)
	}
}
