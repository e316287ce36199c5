package chunker

import (
	"strings"
	"testing"
)

func TestChunkEmptyInput(t *testing.T) {
	if got := Chunk("", 1000, 200); got != nil {
		t.Fatalf("expected nil for empty input, got %#v", got)
	}
	if got := Chunk("   \n\t  ", 1000, 200); got != nil {
		t.Fatalf("expected nil for whitespace input, got %#v", got)
	}
}

func TestChunkShortInputSingleWindow(t *testing.T) {
	chunks := Chunk("hello world", 1000, 200)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
}

func TestChunkCoverageAndOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 250) // 2500 chars
	size, overlap := 1000, 200
	chunks := Chunk(text, size, overlap)

	// Reconstructing from chunks with the overlap removed must yield the
	// original text: no gaps, no skipped windows.
	var rebuilt strings.Builder
	for i, c := range chunks {
		if i == 0 {
			rebuilt.WriteString(c)
			continue
		}
		if len(chunks[i-1]) == size {
			runes := []rune(c)
			if len(runes) < overlap {
				t.Fatalf("chunk %d shorter than overlap: %d", i, len(runes))
			}
			rebuilt.WriteString(string(runes[overlap:]))
		}
	}
	if rebuilt.String() != text {
		t.Fatalf("chunks do not cover input: got %d chars, want %d", rebuilt.Len(), len(text))
	}

	// Consecutive full-size chunks share exactly `overlap` characters.
	for i := 1; i < len(chunks); i++ {
		prev, cur := []rune(chunks[i-1]), []rune(chunks[i])
		if len(prev) < size {
			continue
		}
		tail := string(prev[len(prev)-overlap:])
		head := string(cur[:overlap])
		if tail != head {
			t.Fatalf("chunk %d overlap mismatch", i)
		}
	}
}

func TestChunkAllWindowsBounded(t *testing.T) {
	chunks := Chunk(strings.Repeat("x", 3456), 1000, 200)
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Fatalf("chunk %d exceeds size: %d", i, len(c))
		}
		if i < len(chunks)-1 && len(c) != 1000 {
			t.Fatalf("non-final chunk %d is short: %d", i, len(c))
		}
	}
}

func TestChunkOverlapAtLeastSizeStillTerminates(t *testing.T) {
	// overlap >= size must not loop forever; the start pointer advances by
	// at least one rune per iteration.
	text := strings.Repeat("y", 50)
	chunks := Chunk(text, 10, 10)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if len(chunks) > len(text) {
		t.Fatalf("suspiciously many chunks: %d", len(chunks))
	}
	chunks = Chunk(text, 10, 25)
	if len(chunks) == 0 || len(chunks) > len(text) {
		t.Fatalf("overlap>size produced %d chunks", len(chunks))
	}
}

func TestChunkDefaultsApplied(t *testing.T) {
	text := strings.Repeat("z", 1500)
	chunks := Chunk(text, 0, -5)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks with defaults, got %d", len(chunks))
	}
	if len(chunks[0]) != DefaultSize {
		t.Fatalf("first chunk size = %d, want %d", len(chunks[0]), DefaultSize)
	}
}
