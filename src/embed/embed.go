package embed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNoAPIKey signals a missing provider credential. It is a configuration
// problem: surfaced immediately, never retried.
var ErrNoAPIKey = errors.New("embedding provider API key is not configured")

// ---------- Dummy (tests / offline) ----------

type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

// DummyEmbedding produces a deterministic 768-dim vector from the byte content.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, 768)
	for i, ch := range []byte(text) {
		vec[i%768] += float32(ch) / 255.0
	}
	return vec
}

// Auto chooses a provider from env:
// EMBED_PROVIDER=gemini|openai|ollama, EMBED_MODEL=<model string>.
// Real providers are wrapped in an LRU embedding cache; unset or failing
// providers fall back to the dummy embedder.
func Auto(ctx context.Context) Embedder {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("EMBED_PROVIDER")))
	model := strings.TrimSpace(os.Getenv("EMBED_MODEL"))

	switch provider {
	case "gemini", "google", "":
		if e, err := NewGeminiEmbedder(ctx, model); err == nil {
			return NewCachedEmbedder(e)
		} else if provider != "" {
			log.Printf("embed: gemini init failed: %v", err)
		}
	case "openai":
		if e, err := NewOpenAIEmbedder(model); err == nil {
			return NewCachedEmbedder(e)
		} else {
			log.Printf("embed: openai init failed: %v", err)
		}
	case "ollama":
		if e, err := NewOllamaEmbedder(model); err == nil {
			return NewCachedEmbedder(e)
		} else {
			log.Printf("embed: ollama init failed: %v", err)
		}
	}

	log.Printf("embed: falling back to DummyEmbedder")
	return DummyEmbedder{}
}

// ProbeDimension embeds a fixed probe string once to learn the provider's
// vector dimensionality. Stores use it when creating similarity indexes.
func ProbeDimension(ctx context.Context, e Embedder) (int, error) {
	vec, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("dimension probe: %w", err)
	}
	if len(vec) == 0 {
		return 0, errors.New("dimension probe: empty vector")
	}
	return len(vec), nil
}
