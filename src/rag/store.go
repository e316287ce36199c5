package rag

import (
	"context"
	"log"
	"math"

	"github.com/google/uuid"

	"github.com/taliyo/assistant-go/src/embed"
)

// Backend is a vector-store implementation the Index can run on. Search takes
// the already-computed query vector plus the candidate-pool size approximate
// indexes should scan before truncating to k.
type Backend interface {
	Upsert(ctx context.Context, rec Record) error
	Search(ctx context.Context, vector []float32, k, pool int) ([]Hit, error)
	DeleteDoc(ctx context.Context, docID string) (int64, error)
	ListDocuments(ctx context.Context, limit, skip int) ([]DocumentInfo, error)
	Stats(ctx context.Context) (Stats, error)
	Count(ctx context.Context) (int, error)
}

// SchemaInitializer is implemented by backends with bootstrap routines; dim is
// the embedding dimensionality probed at startup.
type SchemaInitializer interface {
	EnsureSchema(ctx context.Context, dim int) error
}

// Index pairs an embedding provider with a vector-store backend. The backend
// is chosen once at startup and injected; there is no global fallback state.
type Index struct {
	Embedder embed.Embedder
	Backend  Backend
}

func NewIndex(e embed.Embedder, b Backend) *Index {
	return &Index{Embedder: e, Backend: b}
}

// Upsert embeds text and stores it under id, generating an id when none is
// supplied. It returns the effective id.
func (ix *Index) Upsert(ctx context.Context, text string, meta Metadata, id string) (string, error) {
	vec, err := ix.Embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	rec := Record{ID: id, Text: text, Embedding: vec, Metadata: meta}
	if err := ix.Backend.Upsert(ctx, rec); err != nil {
		return "", err
	}
	return id, nil
}

// Query returns up to k hits ranked by descending similarity. The backend
// over-fetches internally with a candidate pool of max(200, k*40). When the
// similarity index is unavailable the error is folded into a single sentinel
// hit instead of being raised; callers treat an all-empty result as "no usable
// context".
func (ix *Index) Query(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	vec, err := ix.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	pool := int(math.Max(200, float64(k*40)))
	hits, err := ix.Backend.Search(ctx, vec, k, pool)
	if err != nil {
		log.Printf("rag: similarity search degraded: %v", err)
		return []Hit{{Text: "", Metadata: Metadata{Error: err.Error()}, Score: 0}}, nil
	}
	return hits, nil
}

// DeleteDoc removes every chunk grouped under docID and reports the count.
func (ix *Index) DeleteDoc(ctx context.Context, docID string) (int64, error) {
	return ix.Backend.DeleteDoc(ctx, docID)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
