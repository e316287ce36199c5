package models

import (
	"context"
	"fmt"
)

// NewLLMProvider returns a concrete Agent for the named provider. Background
// tasks (summary refresh, archival condensation) go through this switch so a
// deployment can route them to a cheaper or local model.
func NewLLMProvider(ctx context.Context, provider, model, system string) (Agent, error) {
	switch provider {
	case "openai":
		return NewOpenAILLM(model, system), nil
	case "gemini", "google", "":
		return NewGeminiLLM(ctx, model, system)
	case "ollama":
		return NewOllamaLLM(model, system)
	case "anthropic", "claude":
		return NewAnthropicLLM(model, system), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
