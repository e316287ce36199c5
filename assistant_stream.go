package assistant

import (
	"context"
	"strings"

	"github.com/taliyo/assistant-go/src/models"
)

// ChatStream runs one turn token-by-token. Streaming uses the primary model
// only; a mid-stream failure is reported in-band instead of cascading, since
// part of the answer may already be on the wire. The assistant message is
// persisted once the stream finishes, detached from the request context so a
// client disconnect does not lose the turn.
func (a *Assistant) ChatStream(ctx context.Context, req ChatRequest) (string, <-chan models.StreamChunk, error) {
	if err := a.moderate(req.Message); err != nil {
		return "", singleChunk(err.Error()), nil
	}

	convID, history, err := a.beginTurn(ctx, req.ConversationID, req.Message, req.UserKey)
	if err != nil {
		return "", nil, err
	}

	userMessage := a.withMemory(ctx, req.UserKey, req.Message)
	quality := models.InferQuality(req.Message, req.Quality)
	model := a.selector.SelectModel(ctx, quality, "stream")
	cfg := models.GenerationConfigFor(quality)

	inner, err := a.runStream(ctx, model, userMessage, history, cfg)
	if err != nil {
		return "", nil, err
	}

	persistCtx := context.WithoutCancel(ctx)
	out := make(chan models.StreamChunk, 16)
	go func() {
		defer close(out)
		for chunk := range inner {
			// Persist before forwarding: a consumer that stops draining must
			// not be able to block the write-back.
			if chunk.Done {
				if final := strings.TrimSpace(chunk.FullText); final != "" {
					a.finishTurn(persistCtx, convID, req.UserKey, final)
					a.telemetry.Record(persistCtx, "chat_stream", map[string]any{
						"conv": convID, "model": model, "reply_len": len(final),
					})
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Client gone. Keep draining inner so the producer finishes
				// and the Done chunk above still lands.
			}
		}
	}()
	return convID, out, nil
}

func singleChunk(text string) <-chan models.StreamChunk {
	ch := make(chan models.StreamChunk, 1)
	ch <- models.StreamChunk{Delta: text, FullText: text, Done: true}
	close(ch)
	return ch
}
