package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InMemoryStore keeps conversations in process. It backs deployments without
// a database (no persistence across restarts) and the tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	convs    map[string]*Conversation
	messages map[string][]Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		convs:    map[string]*Conversation{},
		messages: map[string][]Message{},
	}
}

func (s *InMemoryStore) EnsureConversation(_ context.Context, id, titleSeed, userKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.convs[id]; ok {
			return id, nil
		}
	}
	now := time.Now().UTC()
	newID := primitive.NewObjectID().Hex()
	s.convs[newID] = &Conversation{
		ID:        newID,
		Title:     TitleFrom(titleSeed),
		UserKey:   userKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return newID, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	s.messages[conversationID] = append(s.messages[conversationID], Message{
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	conv.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) GetConversation(_ context.Context, id string) (Conversation, []Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok || conv.DeletedAt != nil {
		return Conversation{}, nil, ErrNotFound
	}
	msgs := append([]Message(nil), s.messages[id]...)
	return *conv, msgs, nil
}

func (s *InMemoryStore) ListConversations(_ context.Context) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Conversation
	for _, conv := range s.convs {
		if conv.DeletedAt != nil {
			continue
		}
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[id]; ok {
		now := time.Now().UTC()
		conv.DeletedAt = &now
	}
	return nil
}

var _ Store = (*InMemoryStore)(nil)
