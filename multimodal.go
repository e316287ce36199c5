package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/taliyo/assistant-go/src/models"
	"github.com/taliyo/assistant-go/src/tts"
)

// VoiceRequest is a chat turn whose reply is also synthesized to speech.
type VoiceRequest struct {
	ChatRequest
	VoiceID   string `json:"voice_id"`
	TTSModel  string `json:"tts_model"`
	TTSOutput string `json:"tts_output"`
}

// VoiceResponse carries the text reply plus the audio as base64.
type VoiceResponse struct {
	ChatResponse
	AudioBase64 string `json:"audio_base64"`
	AudioMime   string `json:"audio_mime"`
}

// ChatVoice generates a reply and synthesizes it.
func (a *Assistant) ChatVoice(ctx context.Context, req VoiceRequest) (VoiceResponse, error) {
	if a.voice == nil {
		return VoiceResponse{}, errors.New("tts is not configured")
	}
	chatResp, err := a.Chat(ctx, req.ChatRequest)
	if err != nil {
		return VoiceResponse{}, err
	}
	audio, err := a.voice.Synthesize(ctx, tts.Request{
		Text:    chatResp.Reply,
		VoiceID: req.VoiceID,
		Model:   req.TTSModel,
		Output:  req.TTSOutput,
	})
	if err != nil {
		return VoiceResponse{}, fmt.Errorf("synthesize reply: %w", err)
	}
	return VoiceResponse{
		ChatResponse: chatResp,
		AudioBase64:  base64.StdEncoding.EncodeToString(audio),
		AudioMime:    "audio/mpeg",
	}, nil
}

// Synthesize exposes raw TTS for the /tts endpoint.
func (a *Assistant) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if a.voice == nil {
		return nil, errors.New("tts is not configured")
	}
	return a.voice.Synthesize(ctx, req)
}

// FileRequest is an uploaded attachment plus an optional instruction.
type FileRequest struct {
	Data           []byte
	MimeType       string
	Filename       string
	Prompt         string
	Quality        string
	ConversationID string
	UserKey        string
}

// FileResponse reports the answer and the conversation it was stored in.
type FileResponse struct {
	Answer         string `json:"answer"`
	Model          string `json:"model"`
	Quality        string `json:"quality"`
	ConversationID string `json:"conversation_id"`
}

const defaultImageInstruction = "Summarize the image in 4-8 concise bullet points. " +
	"If it's a document, extract main headings, key facts, dates, amounts, and totals. " +
	"Avoid guessing unreadable text; mention if parts are unclear."

// VisionSummarize answers an instruction about an uploaded image and records
// the exchange as a conversation turn.
func (a *Assistant) VisionSummarize(ctx context.Context, req FileRequest) (FileResponse, error) {
	if req.MimeType == "" {
		req.MimeType = "image/png"
	}
	mime := req.MimeType
	prompt := strings.TrimSpace(req.Prompt)
	instruction := FileAssistantGuide + "\nTask: " + firstNonEmptyString(prompt, defaultImageInstruction)

	convID, err := a.beginMediaTurn(ctx, req, "Image", "Instruction", "uploaded image", "Summarize this image")
	if err != nil {
		return FileResponse{}, err
	}

	quality := models.InferQuality("image_summary", req.Quality)
	cfg := models.GenerationConfigFor(quality)
	primary := a.selector.SelectModel(ctx, quality, "vision")

	summary, used, err := a.cascade.Run(ctx, quality, primary, func(ctx context.Context, model string) (string, error) {
		return a.runVision(ctx, model, req.Data, mime, instruction, cfg)
	})
	if err != nil {
		return FileResponse{}, err
	}

	a.finishTurn(ctx, convID, req.UserKey, summary)
	return FileResponse{
		Answer:         summary,
		Model:          used,
		Quality:        string(quality),
		ConversationID: convID,
	}, nil
}

// AskFile answers a question about an uploaded document. Images route through
// the vision path; everything else goes through the file upload API.
func (a *Assistant) AskFile(ctx context.Context, req FileRequest) (FileResponse, error) {
	mime := strings.ToLower(req.MimeType)
	if strings.HasPrefix(mime, "image/") {
		return a.VisionSummarize(ctx, req)
	}
	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}

	prompt := strings.TrimSpace(req.Prompt)
	instruction := FileAssistantGuide + "\nTask: " +
		firstNonEmptyString(prompt, "Answer the user's request using only the content of the attached file.")

	convID, err := a.beginMediaTurn(ctx, req, "File", "Question", "uploaded file", "Summarize this document")
	if err != nil {
		return FileResponse{}, err
	}

	quality := models.InferQuality(firstNonEmptyString(prompt, "analyze file"), req.Quality)
	cfg := models.GenerationConfigFor(quality)
	primary := a.selector.SelectModel(ctx, quality, "file")

	answer, used, err := a.cascade.Run(ctx, quality, primary, func(ctx context.Context, model string) (string, error) {
		return a.runFile(ctx, model, req.Data, req.MimeType, instruction, cfg)
	})
	if err != nil {
		return FileResponse{}, err
	}

	a.finishTurn(ctx, convID, req.UserKey, answer)
	return FileResponse{
		Answer:         answer,
		Model:          used,
		Quality:        string(quality),
		ConversationID: convID,
	}, nil
}

// beginMediaTurn stores the user-side placeholder for an attachment turn.
func (a *Assistant) beginMediaTurn(ctx context.Context, req FileRequest, kind, promptLabel, fallbackName, fallbackPrompt string) (string, error) {
	seed := firstNonEmptyString(strings.TrimSpace(req.Prompt), req.Filename, strings.ToLower(kind)+" question")
	convID, err := a.chats.EnsureConversation(ctx, req.ConversationID, seed, req.UserKey)
	if err != nil {
		return "", fmt.Errorf("ensure conversation: %w", err)
	}
	display := firstNonEmptyString(req.Filename, fallbackName)
	userText := firstNonEmptyString(strings.TrimSpace(req.Prompt), fallbackPrompt)
	entry := fmt.Sprintf("[%s] %s (%s)\n%s: %s", kind, display, req.MimeType, promptLabel, userText)
	if err := a.chats.AppendMessage(ctx, convID, "user", entry); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}
	return convID, nil
}

func firstNonEmptyString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
