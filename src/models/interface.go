package models

import "context"

// Message is one turn of a conversation as stored by the chat layer.
// Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationConfig carries the sampling parameters for one generation call.
type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

// StreamChunk is one streamed fragment. FullText is populated on the final
// chunk only.
type StreamChunk struct {
	Delta    string
	FullText string
	Done     bool
	Err      error
}

// Agent is the minimal single-turn text interface every provider satisfies.
// The richer multimodal surface lives on GeminiLLM only.
type Agent interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
