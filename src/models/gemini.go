package models

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

// GeminiLLM is the primary provider. Beyond the single-turn Agent surface it
// exposes multi-turn text, streaming, vision and file understanding, plus the
// model catalog the selector ranks.
type GeminiLLM struct {
	Client *genai.Client
	// Model is the default used by the plain Generate call.
	Model  string
	System string
}

func NewGeminiLLM(ctx context.Context, model, system string) (*GeminiLLM, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, &ConfigError{Reason: "missing GOOGLE_API_KEY or GEMINI_API_KEY"}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiLLM{Client: client, Model: model, System: system}, nil
}

func (g *GeminiLLM) Close() error {
	if g == nil || g.Client == nil {
		return nil
	}
	return g.Client.Close()
}

// Generate is the single-turn Agent call against the default model.
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateText(ctx, g.Model, prompt, nil, GenerationConfigFor(QualityMedium))
}

// GenerateText runs one text generation against a concrete model. When
// history is present a chat session carries the prior turns.
func (g *GeminiLLM) GenerateText(ctx context.Context, model, message string, history []Message, cfg GenerationConfig) (string, error) {
	m := g.generativeModel(model, cfg)

	var resp *genai.GenerateContentResponse
	var err error
	if len(history) > 0 {
		cs := m.StartChat()
		cs.History = toGeminiHistory(history)
		resp, err = cs.SendMessage(ctx, genai.Text(message))
	} else {
		resp, err = m.GenerateContent(ctx, genai.Text(message))
	}
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

// GenerateStream streams one generation against a concrete model. Errors are
// surfaced both on the final chunk and in-band as a "[stream error: ...]"
// delta, so plain-text consumers still see that something went wrong.
func (g *GeminiLLM) GenerateStream(ctx context.Context, model, message string, history []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	m := g.generativeModel(model, cfg)

	var iter *genai.GenerateContentResponseIterator
	if len(history) > 0 {
		cs := m.StartChat()
		cs.History = toGeminiHistory(history)
		iter = cs.SendMessageStream(ctx, genai.Text(message))
	} else {
		iter = m.GenerateContentStream(ctx, genai.Text(message))
	}

	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		var sb strings.Builder
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				msg := fmt.Sprintf("[stream error: %v]", err)
				ch <- StreamChunk{Delta: msg, FullText: sb.String(), Done: true, Err: err}
				return
			}
			if piece, perr := responseText(resp); perr == nil && piece != "" {
				sb.WriteString(piece)
				ch <- StreamChunk{Delta: piece}
			}
		}
		ch <- StreamChunk{FullText: sb.String(), Done: true}
	}()
	return ch, nil
}

// GenerateVision answers an instruction about an inline image.
func (g *GeminiLLM) GenerateVision(ctx context.Context, model string, image []byte, mimeType, instruction string, cfg GenerationConfig) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	m := g.generativeModel(model, cfg)
	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text(instruction),
	)
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}
	return responseText(resp)
}

// fileActivePollInterval paces the wait for an uploaded file to become
// servable. The Files API processes uploads asynchronously.
const (
	fileActivePollInterval = time.Second
	fileActiveMaxPolls     = 30
)

// GenerateFile uploads a document to the Files API, waits for processing and
// answers the instruction against it.
func (g *GeminiLLM) GenerateFile(ctx context.Context, model string, data []byte, mimeType, instruction string, cfg GenerationConfig) (string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	file, err := g.Client.UploadFile(ctx, "", bytes.NewReader(data), &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return "", fmt.Errorf("gemini file upload: %w", err)
	}
	defer func() { _ = g.Client.DeleteFile(context.WithoutCancel(ctx), file.Name) }()

	if file, err = g.waitFileActive(ctx, file); err != nil {
		return "", err
	}

	m := g.generativeModel(model, cfg)
	resp, err := m.GenerateContent(ctx,
		genai.FileData{URI: file.URI, MIMEType: file.MIMEType},
		genai.Text(instruction),
	)
	if err != nil {
		return "", fmt.Errorf("gemini file generate: %w", err)
	}
	return responseText(resp)
}

func (g *GeminiLLM) waitFileActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for i := 0; i < fileActiveMaxPolls; i++ {
		switch file.State {
		case genai.FileStateActive:
			return file, nil
		case genai.FileStateFailed:
			return nil, fmt.Errorf("gemini file %s failed processing", file.Name)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(fileActivePollInterval):
		}
		refreshed, err := g.Client.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("gemini file poll: %w", err)
		}
		file = refreshed
	}
	return nil, fmt.Errorf("gemini file %s not active after %d polls", file.Name, fileActiveMaxPolls)
}

// ListModelNames returns the ids (without the "models/" prefix) that support
// text generation, sorted and de-duplicated.
func (g *GeminiLLM) ListModelNames(ctx context.Context) ([]string, error) {
	it := g.Client.ListModels(ctx)
	seen := map[string]bool{}
	var names []string
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini list models: %w", err)
		}
		if !supportsGeneration(m.SupportedGenerationMethods) {
			continue
		}
		name := strings.TrimPrefix(m.Name, "models/")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func supportsGeneration(methods []string) bool {
	for _, m := range methods {
		// Older API revisions reported "createContent".
		if m == "generateContent" || m == "createContent" {
			return true
		}
	}
	return false
}

func (g *GeminiLLM) generativeModel(model string, cfg GenerationConfig) *genai.GenerativeModel {
	m := g.Client.GenerativeModel(model)
	if g.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(g.System)}}
	}
	if cfg.Temperature > 0 {
		m.SetTemperature(cfg.Temperature)
	}
	if cfg.TopP > 0 {
		m.SetTopP(cfg.TopP)
	}
	if cfg.TopK > 0 {
		m.SetTopK(cfg.TopK)
	}
	if cfg.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	return m
}

// toGeminiHistory converts stored messages to the SDK's content format.
// Gemini knows the roles "user" and "model".
func toGeminiHistory(history []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "model"
		if m.Role == "user" {
			role = "user"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

// responseText flattens every text part of the first non-empty candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			return text, nil
		}
	}
	return "", ErrEmptyResponse
}

var _ Agent = (*GeminiLLM)(nil)
var _ Catalog = (*GeminiLLM)(nil)
