package chunker

import "strings"

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunk splits text into fixed-size character windows. Each window after the
// first starts at the previous end minus overlap, clamped to zero, so coverage
// advances monotonically with no gap. Empty or whitespace-only input yields nil.
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	var out []string
	start := 0
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, string(runes[start:end]))
		if end >= n {
			break
		}
		next := end - overlap
		if next < 0 {
			next = 0
		}
		// The start pointer must strictly advance even when overlap >= size.
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}
