package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/taliyo/assistant-go/src/models"
)

const (
	summaryMaxWords = 120
	// truncationLimit bounds the crude fallback summary when the model is
	// unavailable.
	truncationLimit = 800
)

// SummaryUpdater condenses a conversation into its rolling summary after each
// exchange. It is designed to run best-effort in the background: any model
// failure falls back to raw truncation so the summary is never lost outright.
type SummaryUpdater struct {
	Gen         models.Agent
	Store       Store
	MaxMessages int
}

func NewSummaryUpdater(gen models.Agent, store Store, maxMessages int) *SummaryUpdater {
	return &SummaryUpdater{Gen: gen, Store: store, MaxMessages: maxMessages}
}

// Refresh rebuilds the summary for one conversation from its recent messages
// and upserts it.
func (u *SummaryUpdater) Refresh(ctx context.Context, conversationID, userKey string, msgs []models.Message) error {
	if u == nil || u.Store == nil {
		return nil
	}
	transcript := Transcript(TrimHistory(msgs, u.MaxMessages))
	return u.Store.UpsertSummary(ctx, Summary{
		ConversationID: conversationID,
		UserKey:        userKey,
		Summary:        u.condense(ctx, transcript),
	})
}

func (u *SummaryUpdater) condense(ctx context.Context, transcript string) string {
	if u.Gen != nil {
		prompt := fmt.Sprintf(
			"Summarize the following conversation snippet into %d words max, "+
				"focusing on user goals, constraints, decisions, and key facts.\n\n%s",
			summaryMaxWords, transcript)
		if summary, err := u.Gen.Generate(ctx, prompt); err == nil {
			return strings.TrimSpace(summary)
		}
	}
	return Truncate(transcript, truncationLimit)
}

// Transcript renders messages as "role: content" lines.
func Transcript(msgs []models.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// Truncate cuts a string to at most limit runes.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
