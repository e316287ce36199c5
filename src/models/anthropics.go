package models

import (
	"context"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLM is a single-turn text adapter over the Messages API.
type AnthropicLLM struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int
	System    string
}

func NewAnthropicLLM(model, system string) *AnthropicLLM {
	key := os.Getenv("ANTHROPIC_API_KEY")
	cl := anthropic.NewClient(anthropicopt.WithAPIKey(key))
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicLLM{Client: &cl, Model: model, MaxTokens: 1024, System: system}
}

func (a *AnthropicLLM) Generate(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt
	if a.System != "" {
		fullPrompt = a.System + "\n\n" + prompt
	}
	msg, err := a.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fullPrompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

var _ Agent = (*AnthropicLLM)(nil)
