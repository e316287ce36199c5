package rag

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore implements Backend for tests and database-less deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Upsert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.records[rec.ID]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.records[rec.ID] = rec
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, vector []float32, k, _ int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(s.records))
	for _, rec := range s.records {
		hits = append(hits, Hit{
			Text:     rec.Text,
			Metadata: rec.Metadata,
			Score:    cosineSimilarity(vector, rec.Embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *InMemoryStore) DeleteDoc(_ context.Context, docID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, rec := range s.records {
		if rec.Metadata.DocID == docID {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) ListDocuments(_ context.Context, limit, skip int) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDoc := make(map[string]*DocumentInfo)
	for _, rec := range s.records {
		docID := rec.Metadata.DocID
		if docID == "" {
			continue
		}
		info, ok := byDoc[docID]
		if !ok {
			info = &DocumentInfo{
				DocID:         docID,
				Name:          rec.Metadata.Filename,
				Source:        rec.Metadata.Source,
				FirstIngested: rec.Metadata.IngestedAt,
				LastIngested:  rec.Metadata.IngestedAt,
			}
			byDoc[docID] = info
		}
		if rec.Metadata.IngestedAt.Before(info.FirstIngested) {
			info.FirstIngested = rec.Metadata.IngestedAt
		}
		if rec.Metadata.IngestedAt.After(info.LastIngested) {
			info.LastIngested = rec.Metadata.IngestedAt
		}
		info.Chunks++
		info.Chars += len(rec.Text)
	}
	out := make([]DocumentInfo, 0, len(byDoc))
	for _, info := range byDoc {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastIngested.After(out[j].LastIngested) })
	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Stats(ctx context.Context) (Stats, error) {
	docs, err := s.ListDocuments(ctx, 0, 0)
	if err != nil {
		return Stats{}, err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	week := today.AddDate(0, 0, -7)
	st := Stats{TotalDocs: len(docs)}
	for _, d := range docs {
		if !d.FirstIngested.Before(today) {
			st.DocsToday++
		}
		if !d.FirstIngested.Before(week) {
			st.DocsWeek++
		}
	}
	return st, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
