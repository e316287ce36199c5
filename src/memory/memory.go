// Package memory persists long-lived user context: a free-form profile plus
// rolling per-conversation summaries. The composed text is injected into the
// system context of every chat turn.
package memory

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/taliyo/assistant-go/src/models"
)

// Profile holds durable notes about one user.
type Profile struct {
	UserKey   string    `bson:"user_key" json:"user_key"`
	Notes     string    `bson:"notes" json:"notes"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Summary is the rolling condensation of one conversation, keyed uniquely by
// conversation id.
type Summary struct {
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	UserKey        string    `bson:"user_key" json:"user_key"`
	Summary        string    `bson:"summary" json:"summary"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// Store is the persistence surface for profiles and summaries.
type Store interface {
	GetProfile(ctx context.Context, userKey string) (Profile, error)
	PutProfile(ctx context.Context, p Profile) error
	// RecentSummaries returns non-empty summaries for the user, newest first,
	// at most limit entries.
	RecentSummaries(ctx context.Context, userKey string, limit int) ([]Summary, error)
	// UpsertSummary replaces the summary for its conversation id.
	UpsertSummary(ctx context.Context, s Summary) error
}

// ComposeText renders the memory block. Empty sections are omitted; an
// entirely empty memory renders as "".
func ComposeText(profile string, summaries []string) string {
	var sections []string
	if profile != "" {
		sections = append(sections, "Profile:\n"+profile)
	}
	var kept []string
	for _, s := range summaries {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) > 0 {
		sections = append(sections, "Prior conversation summaries:\n- "+strings.Join(kept, "\n- "))
	}
	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// Text loads and composes the memory for a user. Store failures degrade to an
// empty block so a chat turn never fails on memory.
func Text(ctx context.Context, store Store, userKey string, summariesLimit int) string {
	if store == nil || userKey == "" {
		return ""
	}
	profile, err := store.GetProfile(ctx, userKey)
	if err != nil {
		log.Printf("memory: load profile for %s: %v", userKey, err)
	}
	summaries, err := store.RecentSummaries(ctx, userKey, summariesLimit)
	if err != nil {
		log.Printf("memory: load summaries for %s: %v", userKey, err)
	}
	texts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		texts = append(texts, s.Summary)
	}
	return ComposeText(strings.TrimSpace(profile.Notes), texts)
}

// TrimHistory keeps the last max messages. max <= 0 means no trimming.
func TrimHistory(history []models.Message, max int) []models.Message {
	if max <= 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
