package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaLLM is a single-turn text adapter against a local Ollama daemon.
type OllamaLLM struct {
	Client *ollama.Client
	Model  string
	System string
}

func NewOllamaLLM(model, system string) (*OllamaLLM, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	if model == "" {
		model = "llama3.2"
	}
	client := ollama.NewClient(u, &http.Client{Timeout: 120 * time.Second})
	return &OllamaLLM{Client: client, Model: model, System: system}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	req := &ollama.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		System: o.System,
	}
	var text strings.Builder
	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return "", err
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

var _ Agent = (*OllamaLLM)(nil)
