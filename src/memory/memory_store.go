package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps memory in process. Used when no database is configured
// and as the store for tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]Profile
	summaries map[string]Summary // by conversation id
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles:  map[string]Profile{},
		summaries: map[string]Summary{},
	}
}

func (s *InMemoryStore) GetProfile(_ context.Context, userKey string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userKey], nil
}

func (s *InMemoryStore) PutProfile(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	s.profiles[p.UserKey] = p
	return nil
}

func (s *InMemoryStore) RecentSummaries(_ context.Context, userKey string, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Summary
	for _, sum := range s.summaries {
		if sum.UserKey == userKey && sum.Summary != "" {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpsertSummary(_ context.Context, sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sum.UpdatedAt.IsZero() {
		sum.UpdatedAt = time.Now().UTC()
	}
	s.summaries[sum.ConversationID] = sum
	return nil
}

var _ Store = (*InMemoryStore)(nil)
