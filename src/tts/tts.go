// Package tts synthesizes speech through the ElevenLabs API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const endpoint = "https://api.elevenlabs.io/v1/text-to-speech/"

// ErrNoAPIKey is returned when the client was built without credentials.
var ErrNoAPIKey = errors.New("ELEVENLABS_API_KEY not configured")

// ErrNoVoice is returned when neither the request nor the default names a
// voice.
var ErrNoVoice = errors.New("voice_id is required")

// Client calls the ElevenLabs text-to-speech endpoint.
type Client struct {
	APIKey  string
	VoiceID string
	Model   string
	Output  string
	HTTP    *http.Client
}

func NewClient(apiKey, voiceID, model, output string) *Client {
	return &Client{
		APIKey:  apiKey,
		VoiceID: voiceID,
		Model:   model,
		Output:  output,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Request overrides the client defaults for one synthesis call.
type Request struct {
	Text    string
	VoiceID string
	Model   string
	Output  string
}

// Synthesize returns the audio bytes for the text. Empty request fields fall
// back to the client defaults, then to the service defaults.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if c == nil || c.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	voice := strings.TrimSpace(firstNonEmpty(req.VoiceID, c.VoiceID))
	if voice == "" {
		return nil, ErrNoVoice
	}
	model := strings.TrimSpace(firstNonEmpty(req.Model, c.Model, "eleven_multilingual_v2"))
	output := strings.TrimSpace(firstNonEmpty(req.Output, c.Output, "mp3_44100_128"))

	payload, err := json.Marshal(map[string]any{
		"text":     req.Text,
		"model_id": model,
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, err
	}

	u := endpoint + url.PathEscape(voice) + "?output_format=" + url.QueryEscape(output)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", c.APIKey)
	httpReq.Header.Set("accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(body))
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return nil, fmt.Errorf("tts failed with status %d: %s", resp.StatusCode, detail)
	}
	return body, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
