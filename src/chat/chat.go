// Package chat persists conversations and their messages.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/taliyo/assistant-go/src/models"
)

// ErrNotFound is returned for unknown or soft-deleted conversations.
var ErrNotFound = errors.New("conversation not found")

// titleMaxLen bounds the auto-derived conversation title.
const titleMaxLen = 60

// Conversation is one chat thread. DeletedAt marks a soft delete: messages
// are preserved, the thread just disappears from listings.
type Conversation struct {
	ID        string     `bson:"-" json:"id"`
	Title     string     `bson:"title" json:"title"`
	UserKey   string     `bson:"user_key,omitempty" json:"user_key,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Message is one stored turn.
type Message struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Store is the conversation persistence surface.
type Store interface {
	// EnsureConversation returns the id unchanged when it names an existing
	// conversation, otherwise creates a new one titled from titleSeed.
	EnsureConversation(ctx context.Context, id, titleSeed, userKey string) (string, error)
	AppendMessage(ctx context.Context, conversationID, role, content string) error
	// GetConversation returns the conversation and its messages oldest first.
	GetConversation(ctx context.Context, id string) (Conversation, []Message, error)
	// ListConversations returns live conversations, most recently updated
	// first.
	ListConversations(ctx context.Context) ([]Conversation, error)
	// DeleteConversation soft-deletes; unknown ids are a no-op.
	DeleteConversation(ctx context.Context, id string) error
}

// TitleFrom derives a listing title from the first message.
func TitleFrom(text string) string {
	t := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(t)
	if len(runes) > titleMaxLen {
		t = string(runes[:titleMaxLen-3]) + "..."
	}
	if t == "" {
		return "New conversation"
	}
	return t
}

// History converts stored messages to the model request format.
func History(msgs []Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
