package embed

import (
	"context"
	"testing"
)

func TestDummyEmbeddingDeterministic(t *testing.T) {
	a := DummyEmbedding("the same text")
	b := DummyEmbedding("the same text")
	if len(a) != 768 || len(b) != 768 {
		t.Fatalf("expected 768-dim vectors, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
}

func TestDummyEmbeddingDiffersByContent(t *testing.T) {
	a := DummyEmbedding("alpha")
	b := DummyEmbedding("omega")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different texts produced identical vectors")
	}
}

func TestProbeDimension(t *testing.T) {
	dim, err := ProbeDimension(context.Background(), DummyEmbedder{})
	if err != nil {
		t.Fatalf("ProbeDimension returned error: %v", err)
	}
	if dim != 768 {
		t.Fatalf("dim = %d, want 768", dim)
	}
}
