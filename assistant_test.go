package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/taliyo/assistant-go/src/chat"
	"github.com/taliyo/assistant-go/src/config"
	"github.com/taliyo/assistant-go/src/embed"
	"github.com/taliyo/assistant-go/src/memory"
	"github.com/taliyo/assistant-go/src/models"
	"github.com/taliyo/assistant-go/src/rag"
	"github.com/taliyo/assistant-go/src/websearch"
)

type capture struct {
	model   string
	message string
	history []models.Message
}

type stubSummarizer struct{ reply string }

func (s stubSummarizer) Generate(context.Context, string) (string, error) { return s.reply, nil }

func testSettings() *config.Settings {
	return &config.Settings{
		MemoryMaxMessages:    30,
		GlobalSummariesLimit: 5,
	}
}

// newTestAssistant builds an assistant with fake runners; the text runner
// records what reached the provider.
func newTestAssistant(t *testing.T, opts Options) (*Assistant, *capture) {
	t.Helper()
	rec := &capture{}
	if opts.Settings == nil {
		opts.Settings = testSettings()
	}
	if opts.Chats == nil {
		opts.Chats = chat.NewInMemoryStore()
	}
	if opts.TextRunner == nil {
		opts.TextRunner = func(_ context.Context, model, message string, history []models.Message, _ models.GenerationConfig) (string, error) {
			rec.model, rec.message, rec.history = model, message, history
			return "stub reply", nil
		}
	}
	if opts.StreamRunner == nil {
		opts.StreamRunner = func(_ context.Context, model, message string, _ []models.Message, _ models.GenerationConfig) (<-chan models.StreamChunk, error) {
			rec.model, rec.message = model, message
			ch := make(chan models.StreamChunk, 3)
			ch <- models.StreamChunk{Delta: "streamed "}
			ch <- models.StreamChunk{Delta: "reply"}
			ch <- models.StreamChunk{FullText: "streamed reply", Done: true}
			close(ch)
			return ch, nil
		}
	}
	if opts.VisionRunner == nil {
		opts.VisionRunner = func(_ context.Context, model string, _ []byte, _, instruction string, _ models.GenerationConfig) (string, error) {
			rec.model, rec.message = model, instruction
			return "vision reply", nil
		}
	}
	if opts.FileRunner == nil {
		opts.FileRunner = func(_ context.Context, model string, _ []byte, _, instruction string, _ models.GenerationConfig) (string, error) {
			rec.model, rec.message = model, instruction
			return "file reply", nil
		}
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return a, rec
}

func TestChatPersistsBothSides(t *testing.T) {
	store := chat.NewInMemoryStore()
	a, _ := newTestAssistant(t, Options{Chats: store})

	resp, err := a.Chat(context.Background(), ChatRequest{Message: "hello there"})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Reply != "stub reply" || resp.ConversationID == "" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Model != models.DefaultModel {
		t.Fatalf("model = %q, want default (empty catalog)", resp.Model)
	}

	_, msgs, err := store.GetConversation(context.Background(), resp.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected transcript: %#v", msgs)
	}
	if msgs[1].Content != "stub reply" {
		t.Fatalf("assistant message = %q", msgs[1].Content)
	}
}

func TestChatCarriesPriorHistory(t *testing.T) {
	a, rec := newTestAssistant(t, Options{})
	ctx := context.Background()

	first, err := a.Chat(ctx, ChatRequest{Message: "first question"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.history) != 0 {
		t.Fatalf("first turn must see empty history, got %d", len(rec.history))
	}
	if _, err := a.Chat(ctx, ChatRequest{ConversationID: first.ConversationID, Message: "follow-up"}); err != nil {
		t.Fatal(err)
	}
	if len(rec.history) != 2 {
		t.Fatalf("second turn history = %d messages, want 2", len(rec.history))
	}
	if rec.history[0].Content != "first question" || rec.history[1].Content != "stub reply" {
		t.Fatalf("unexpected history: %#v", rec.history)
	}
}

func TestChatInjectsUserMemory(t *testing.T) {
	mem := memory.NewInMemoryStore()
	ctx := context.Background()
	if err := mem.PutProfile(ctx, memory.Profile{UserKey: "u1", Notes: "Prefers Go."}); err != nil {
		t.Fatal(err)
	}
	if err := mem.UpsertSummary(ctx, memory.Summary{ConversationID: "old", UserKey: "u1", Summary: "debugged TLS"}); err != nil {
		t.Fatal(err)
	}

	a, rec := newTestAssistant(t, Options{Memory: mem, SummaryGen: stubSummarizer{reply: "sum"}})
	if _, err := a.Chat(ctx, ChatRequest{Message: "hi", UserKey: "u1"}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Profile:\nPrefers Go.", "debugged TLS", "Question: hi"} {
		if !strings.Contains(rec.message, want) {
			t.Fatalf("composed message missing %q:\n%s", want, rec.message)
		}
	}
	// Anonymous users get the raw message.
	if _, err := a.Chat(ctx, ChatRequest{Message: "plain"}); err != nil {
		t.Fatal(err)
	}
	if rec.message != "plain" {
		t.Fatalf("anonymous message must be unmodified, got %q", rec.message)
	}
}

func TestChatRefreshesSummary(t *testing.T) {
	mem := memory.NewInMemoryStore()
	a, _ := newTestAssistant(t, Options{Memory: mem, SummaryGen: stubSummarizer{reply: "condensed"}})

	ctx := context.Background()
	resp, err := a.Chat(ctx, ChatRequest{Message: "hello", UserKey: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	sums, err := mem.RecentSummaries(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 || sums[0].ConversationID != resp.ConversationID || sums[0].Summary != "condensed" {
		t.Fatalf("summary not refreshed: %#v", sums)
	}
}

func TestChatMergesRAGContext(t *testing.T) {
	ctx := context.Background()
	ix := rag.NewIndex(embed.DummyEmbedder{}, rag.NewInMemoryStore())
	if _, err := ix.Upsert(ctx, "gophers love channels", rag.Metadata{Source: "test"}, ""); err != nil {
		t.Fatal(err)
	}

	a, rec := newTestAssistant(t, Options{Index: ix})
	if _, err := a.Chat(ctx, ChatRequest{
		Message:  "what do gophers love?",
		Tool:     "rag_search",
		ToolArgs: ToolArgs{Query: "gophers", K: 1},
	}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.message, "[doc 1 score=") || !strings.Contains(rec.message, "gophers love channels") {
		t.Fatalf("rag context not merged:\n%s", rec.message)
	}
	if !strings.Contains(rec.message, "Question: what do gophers love?") {
		t.Fatalf("question missing from merged prompt:\n%s", rec.message)
	}
}

type stubSearcher struct{ results []websearch.Result }

func (s stubSearcher) Search(context.Context, string, int) ([]websearch.Result, error) {
	return s.results, nil
}

func TestChatMergesWebResults(t *testing.T) {
	a, rec := newTestAssistant(t, Options{Search: stubSearcher{results: []websearch.Result{
		{Title: "Go blog", URL: "https://go.dev/blog", Snippet: "news about Go"},
	}}})
	if _, err := a.Chat(context.Background(), ChatRequest{
		Message: "latest Go news",
		Tool:    "web_search",
	}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.message, "[web 1] Go blog - https://go.dev/blog") {
		t.Fatalf("web context not merged:\n%s", rec.message)
	}
}

func TestChatWebSearchFetchesTopPage(t *testing.T) {
	var fetched []string
	a, rec := newTestAssistant(t, Options{
		Search: stubSearcher{results: []websearch.Result{
			{Title: "Go blog", URL: "https://go.dev/blog", Snippet: "news about Go"},
			{Title: "Go docs", URL: "https://go.dev/doc", Snippet: "documentation"},
		}},
		PageFetcher: func(_ context.Context, url string) (string, error) {
			fetched = append(fetched, url)
			return "full article body", nil
		},
	})
	ctx := context.Background()

	if _, err := a.Chat(ctx, ChatRequest{
		Message:  "latest Go news",
		Tool:     "web_search",
		ToolArgs: ToolArgs{Fetch: true},
	}); err != nil {
		t.Fatal(err)
	}
	if len(fetched) != 1 || fetched[0] != "https://go.dev/blog" {
		t.Fatalf("expected one fetch of the top result, got %v", fetched)
	}
	if !strings.Contains(rec.message, "[page] full article body") {
		t.Fatalf("page text not merged:\n%s", rec.message)
	}

	// Without the flag the page is never fetched.
	fetched = nil
	if _, err := a.Chat(ctx, ChatRequest{Message: "more Go news", Tool: "web_search"}); err != nil {
		t.Fatal(err)
	}
	if len(fetched) != 0 {
		t.Fatalf("fetch must be opt-in, got %v", fetched)
	}
}

func TestChatModerationBlocks(t *testing.T) {
	settings := testSettings()
	settings.SafetyBlockWords = []string{"forbidden"}
	store := chat.NewInMemoryStore()
	a, _ := newTestAssistant(t, Options{Settings: settings, Chats: store})

	_, err := a.Chat(context.Background(), ChatRequest{Message: "this is FORBIDDEN content"})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	// Nothing may be persisted for a blocked turn.
	list, _ := store.ListConversations(context.Background())
	if len(list) != 0 {
		t.Fatalf("blocked message must not create a conversation: %#v", list)
	}
}

func TestChatStreamPersistsFinalText(t *testing.T) {
	store := chat.NewInMemoryStore()
	a, _ := newTestAssistant(t, Options{Chats: store})

	convID, ch, err := a.ChatStream(context.Background(), ChatRequest{Message: "stream it"})
	if err != nil {
		t.Fatalf("ChatStream returned error: %v", err)
	}
	var deltas []string
	for chunk := range ch {
		if chunk.Delta != "" {
			deltas = append(deltas, chunk.Delta)
		}
	}
	if got := strings.Join(deltas, ""); got != "streamed reply" {
		t.Fatalf("streamed text = %q", got)
	}

	// The channel closes only after persistence ran.
	_, msgs, err := store.GetConversation(context.Background(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].Content != "streamed reply" {
		t.Fatalf("final text not persisted: %#v", msgs)
	}
}

func TestChatStreamPersistsAfterClientDisconnect(t *testing.T) {
	store := chat.NewInMemoryStore()
	a, _ := newTestAssistant(t, Options{
		Chats: store,
		StreamRunner: func(_ context.Context, _, _ string, _ []models.Message, _ models.GenerationConfig) (<-chan models.StreamChunk, error) {
			ch := make(chan models.StreamChunk)
			go func() {
				defer close(ch)
				for i := 0; i < 40; i++ {
					ch <- models.StreamChunk{Delta: "x"}
				}
				ch <- models.StreamChunk{FullText: "partial reply", Done: true}
			}()
			return ch, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	convID, _, err := a.ChatStream(ctx, ChatRequest{Message: "stream it"})
	if err != nil {
		t.Fatalf("ChatStream returned error: %v", err)
	}
	// Walk away without reading a single chunk.
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, msgs, err := store.GetConversation(context.Background(), convID)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) == 2 {
			if msgs[1].Content != "partial reply" {
				t.Fatalf("persisted reply = %q", msgs[1].Content)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("reply never persisted after disconnect: %d messages stored", len(msgs))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestVisionSummarizeRecordsConversation(t *testing.T) {
	store := chat.NewInMemoryStore()
	a, rec := newTestAssistant(t, Options{Chats: store})

	resp, err := a.VisionSummarize(context.Background(), FileRequest{
		Data:     []byte{0x89, 0x50},
		MimeType: "image/png",
		Filename: "diagram.png",
		Prompt:   "what does this show?",
	})
	if err != nil {
		t.Fatalf("VisionSummarize returned error: %v", err)
	}
	if resp.Answer != "vision reply" {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if !strings.Contains(rec.message, "what does this show?") {
		t.Fatalf("instruction missing prompt:\n%s", rec.message)
	}
	_, msgs, err := store.GetConversation(context.Background(), resp.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || !strings.Contains(msgs[0].Content, "[Image] diagram.png (image/png)") {
		t.Fatalf("unexpected transcript: %#v", msgs)
	}
}

func TestAskFileRoutesImagesToVision(t *testing.T) {
	a, rec := newTestAssistant(t, Options{})

	resp, err := a.AskFile(context.Background(), FileRequest{
		Data:     []byte("fake"),
		MimeType: "image/jpeg",
		Filename: "photo.jpg",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "vision reply" {
		t.Fatalf("image must route to the vision path, got %q", resp.Answer)
	}

	resp, err = a.AskFile(context.Background(), FileRequest{
		Data:     []byte("%PDF-"),
		MimeType: "application/pdf",
		Filename: "report.pdf",
		Prompt:   "total revenue?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "file reply" {
		t.Fatalf("pdf must use the file path, got %q", resp.Answer)
	}
	if !strings.Contains(rec.message, "total revenue?") {
		t.Fatalf("file instruction missing prompt:\n%s", rec.message)
	}
}
