// Package assistant wires the model cascade, conversation store, user memory,
// retrieval and the side services into one conversational engine.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/taliyo/assistant-go/src/chat"
	"github.com/taliyo/assistant-go/src/config"
	"github.com/taliyo/assistant-go/src/memory"
	"github.com/taliyo/assistant-go/src/models"
	"github.com/taliyo/assistant-go/src/rag"
	"github.com/taliyo/assistant-go/src/telemetry"
	"github.com/taliyo/assistant-go/src/tts"
	"github.com/taliyo/assistant-go/src/websearch"
)

// SystemPrompt frames every generation call.
const SystemPrompt = "You are Taliyo AI, a helpful engineering and business assistant.\n" +
	"Goals:\n" +
	"- Be concise, clear, and actionable.\n" +
	"- Think step-by-step, but only reveal necessary steps.\n" +
	"- Cite file paths, functions, and endpoints when relevant.\n" +
	"- If you use provided context (docs, RAG), separate it from your reasoning.\n" +
	"Safety:\n" +
	"- Refuse harmful, illegal, or disallowed content.\n" +
	"- If unsure, ask a brief clarifying question.\n"

// FileAssistantGuide steers document and image understanding tasks.
const FileAssistantGuide = "You are an AI assistant that can read, understand, and summarize information from any type of file: " +
	"PDF, Word, Excel, PowerPoint, images (OCR), and text.\n" +
	"Responsibilities:\n" +
	"1) Extract and understand the text, tables, charts, or key content from the uploaded file.\n" +
	"2) Summarize the content in clear, concise, and human-friendly language.\n" +
	"3) Answer user questions based on the document accurately.\n" +
	"4) If the document is long, break the summary into sections with headings.\n" +
	"5) For images, perform OCR, extract text, and explain it.\n" +
	"6) Provide context-aware, reliable, and easy-to-read outputs (bullets, short paragraphs).\n" +
	"7) If the answer is not present, respond exactly: 'Not available in the document.'\n"

// ErrBlocked is returned when the input trips the moderation blocklist.
var ErrBlocked = errors.New("your message contains disallowed content")

// Runner signatures let tests replace the provider-backed calls.
type (
	TextRunner   func(ctx context.Context, model, message string, history []models.Message, cfg models.GenerationConfig) (string, error)
	StreamRunner func(ctx context.Context, model, message string, history []models.Message, cfg models.GenerationConfig) (<-chan models.StreamChunk, error)
	MediaRunner  func(ctx context.Context, model string, data []byte, mimeType, instruction string, cfg models.GenerationConfig) (string, error)
)

// Assistant orchestrates one deployment's chat surface.
type Assistant struct {
	settings *config.Settings
	selector *models.Selector
	cascade  *models.Cascade

	chats   chat.Store
	memory  memory.Store
	updater *memory.SummaryUpdater

	index     *rag.Index
	search    websearch.Searcher
	fetchPage func(ctx context.Context, url string) (string, error)
	voice     *tts.Client
	telemetry telemetry.Recorder

	runText   TextRunner
	runStream StreamRunner
	runVision MediaRunner
	runFile   MediaRunner
}

// Options configure a new Assistant. Gemini and Chats are required; every
// other collaborator degrades to a no-op when absent.
type Options struct {
	Settings *config.Settings
	Gemini   *models.GeminiLLM
	Chats    chat.Store
	Memory   memory.Store
	// SummaryGen condenses transcripts; nil falls back to Gemini.
	SummaryGen models.Agent
	Index      *rag.Index
	Search     websearch.Searcher
	// PageFetcher pulls visible page text for web_search enrichment; nil
	// defaults to websearch.FetchPageText.
	PageFetcher func(ctx context.Context, url string) (string, error)
	Voice       *tts.Client
	Telemetry   telemetry.Recorder

	// Test seams. Default to the Gemini-backed calls.
	TextRunner   TextRunner
	StreamRunner StreamRunner
	VisionRunner MediaRunner
	FileRunner   MediaRunner
}

func New(opts Options) (*Assistant, error) {
	if opts.Chats == nil {
		return nil, errors.New("assistant requires a conversation store")
	}
	if opts.Gemini == nil && (opts.TextRunner == nil || opts.StreamRunner == nil ||
		opts.VisionRunner == nil || opts.FileRunner == nil) {
		return nil, errors.New("assistant requires a Gemini client")
	}
	settings := opts.Settings
	if settings == nil {
		settings = config.Load()
	}

	var catalog models.Catalog
	if opts.Gemini != nil {
		catalog = opts.Gemini
	}
	selector := models.NewSelector(catalog, settings.ModelForTask)

	a := &Assistant{
		settings:  settings,
		selector:  selector,
		cascade:   models.NewCascade(selector),
		chats:     opts.Chats,
		memory:    opts.Memory,
		index:     opts.Index,
		search:    opts.Search,
		fetchPage: opts.PageFetcher,
		voice:     opts.Voice,
		telemetry: opts.Telemetry,
		runText:   opts.TextRunner,
		runStream: opts.StreamRunner,
		runVision: opts.VisionRunner,
		runFile:   opts.FileRunner,
	}
	if a.telemetry == nil {
		a.telemetry = telemetry.Noop{}
	}
	if a.fetchPage == nil {
		a.fetchPage = websearch.FetchPageText
	}
	if opts.Gemini != nil {
		if a.runText == nil {
			a.runText = opts.Gemini.GenerateText
		}
		if a.runStream == nil {
			a.runStream = opts.Gemini.GenerateStream
		}
		if a.runVision == nil {
			a.runVision = opts.Gemini.GenerateVision
		}
		if a.runFile == nil {
			a.runFile = opts.Gemini.GenerateFile
		}
	}
	if opts.Memory != nil {
		summaryGen := opts.SummaryGen
		if summaryGen == nil && opts.Gemini != nil {
			summaryGen = opts.Gemini
		}
		a.updater = memory.NewSummaryUpdater(summaryGen, opts.Memory, settings.MemoryMaxMessages)
	}
	return a, nil
}

// ToolArgs parameterize the optional retrieval tools.
type ToolArgs struct {
	Query string `json:"query"`
	K     int    `json:"k"`
	// Fetch pulls the top web result's page text into the context.
	Fetch bool `json:"fetch"`
}

// ChatRequest is one chat turn.
type ChatRequest struct {
	ConversationID string   `json:"conversation_id"`
	Message        string   `json:"message"`
	Quality        string   `json:"quality"`
	UserKey        string   `json:"user_key"`
	Tool           string   `json:"tool"`
	ToolArgs       ToolArgs `json:"tool_args"`
}

// ChatResponse reports the reply and which model served it.
type ChatResponse struct {
	Reply          string `json:"reply"`
	Model          string `json:"model"`
	Quality        string `json:"quality"`
	ConversationID string `json:"conversation_id"`
}

// Chat runs one full turn: persist the user message, compose memory and tool
// context, generate through the cascade, persist the reply and refresh the
// conversation summary.
func (a *Assistant) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := a.moderate(req.Message); err != nil {
		return ChatResponse{}, err
	}

	convID, history, err := a.beginTurn(ctx, req.ConversationID, req.Message, req.UserKey)
	if err != nil {
		return ChatResponse{}, err
	}

	userMessage := a.withMemory(ctx, req.UserKey, req.Message)
	userMessage = a.withTool(ctx, req.Tool, req.ToolArgs, userMessage)

	quality := models.InferQuality(req.Message, req.Quality)
	reply, used, err := a.generate(ctx, "text", quality, userMessage, history)
	if err != nil {
		return ChatResponse{}, err
	}

	a.finishTurn(ctx, convID, req.UserKey, reply)
	a.telemetry.Record(ctx, "chat", map[string]any{
		"conv": convID, "model": used, "quality": string(quality),
		"user_len": len(userMessage), "reply_len": len(reply),
	})
	return ChatResponse{
		Reply:          reply,
		Model:          used,
		Quality:        string(quality),
		ConversationID: convID,
	}, nil
}

// beginTurn ensures the conversation, persists the user message and returns
// the prior history (everything before this turn).
func (a *Assistant) beginTurn(ctx context.Context, conversationID, message, userKey string) (string, []models.Message, error) {
	convID, err := a.chats.EnsureConversation(ctx, conversationID, message, userKey)
	if err != nil {
		return "", nil, fmt.Errorf("ensure conversation: %w", err)
	}
	_, msgs, err := a.chats.GetConversation(ctx, convID)
	if err != nil {
		return "", nil, fmt.Errorf("load conversation: %w", err)
	}
	if err := a.chats.AppendMessage(ctx, convID, "user", message); err != nil {
		return "", nil, fmt.Errorf("store user message: %w", err)
	}
	history := memory.TrimHistory(chat.History(msgs), a.settings.MemoryMaxMessages)
	return convID, history, nil
}

// finishTurn persists the reply and refreshes the rolling summary.
// Everything here is best-effort: the reply is already generated.
func (a *Assistant) finishTurn(ctx context.Context, convID, userKey, reply string) {
	if err := a.chats.AppendMessage(ctx, convID, "assistant", reply); err != nil {
		log.Printf("assistant: store reply in %s: %v", convID, err)
	}
	a.refreshSummary(ctx, convID, userKey)
}

func (a *Assistant) refreshSummary(ctx context.Context, convID, userKey string) {
	if a.updater == nil {
		return
	}
	_, msgs, err := a.chats.GetConversation(ctx, convID)
	if err != nil {
		log.Printf("assistant: summary load %s: %v", convID, err)
		return
	}
	if err := a.updater.Refresh(ctx, convID, userKey, chat.History(msgs)); err != nil {
		log.Printf("assistant: summary refresh %s: %v", convID, err)
	}
}

// withMemory prefixes the message with the composed profile and summaries.
func (a *Assistant) withMemory(ctx context.Context, userKey, message string) string {
	mem := memory.Text(ctx, a.memory, userKey, a.settings.GlobalSummariesLimit)
	if mem == "" {
		return message
	}
	return "Use the user's profile and prior summaries to personalize and remain consistent.\n" +
		mem + "\n\nQuestion: " + message
}

// withTool merges retrieval context into the message. Tool failures are
// swallowed: the turn continues without the extra context.
func (a *Assistant) withTool(ctx context.Context, tool string, args ToolArgs, userMessage string) string {
	query := args.Query
	if query == "" {
		query = userMessage
	}
	k := args.K
	if k <= 0 {
		k = 5
	}

	switch strings.ToLower(tool) {
	case "rag_search":
		if a.index == nil {
			return userMessage
		}
		hits, err := a.index.Query(ctx, query, k)
		if err != nil || len(hits) == 0 {
			return userMessage
		}
		blocks := make([]string, 0, len(hits))
		for i, h := range hits {
			blocks = append(blocks, fmt.Sprintf("[doc %d score=%.3f] %s", i+1, h.Score, h.Text))
		}
		return "Use the following context to answer.\n" + strings.Join(blocks, "\n\n") +
			"\n\nQuestion: " + userMessage
	case "web_search":
		if a.search == nil {
			return userMessage
		}
		results, err := a.search.Search(ctx, query, k)
		if err != nil || len(results) == 0 {
			if err != nil {
				log.Printf("assistant: web search: %v", err)
			}
			return userMessage
		}
		blocks := make([]string, 0, len(results)+1)
		for i, r := range results {
			blocks = append(blocks, fmt.Sprintf("[web %d] %s - %s\n%s", i+1, r.Title, r.URL, r.Snippet))
		}
		if args.Fetch {
			if page, err := a.fetchPage(ctx, results[0].URL); err != nil {
				log.Printf("assistant: page fetch %s: %v", results[0].URL, err)
			} else if page != "" {
				blocks = append(blocks, "[page] "+page)
			}
		}
		return "Use the following web results if relevant.\n" + strings.Join(blocks, "\n\n") +
			"\n\nQuestion: " + userMessage
	default:
		return userMessage
	}
}

// generate resolves the primary model for the task and walks the cascade.
func (a *Assistant) generate(ctx context.Context, task string, q models.Quality, message string, history []models.Message) (string, string, error) {
	primary := a.selector.SelectModel(ctx, q, task)
	cfg := models.GenerationConfigFor(q)
	return a.cascade.Run(ctx, q, primary, func(ctx context.Context, model string) (string, error) {
		return a.runText(ctx, model, message, history, cfg)
	})
}

// moderate applies the configured word blocklist.
func (a *Assistant) moderate(text string) error {
	if len(a.settings.SafetyBlockWords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	for _, word := range a.settings.SafetyBlockWords {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return ErrBlocked
		}
	}
	return nil
}

// ListModels exposes the catalog for the /models endpoint.
func (a *Assistant) ListModels(ctx context.Context) []string {
	return a.selector.ModelNames(ctx)
}

// Conversations proxies the conversation store for the HTTP layer.
func (a *Assistant) Conversations() chat.Store { return a.chats }

// Settings exposes the loaded configuration.
func (a *Assistant) Settings() *config.Settings { return a.settings }
