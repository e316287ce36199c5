package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings holds every runtime knob, loaded once from the environment.
// `.env.local` overrides `.env`; both are optional.
type Settings struct {
	// Google Gemini
	GeminiAPIKey string
	// Default model when no per-task override applies.
	GeminiModel string
	// Optional per-task overrides.
	GeminiTextModel   string
	GeminiStreamModel string
	GeminiVisionModel string
	GeminiFileModel   string

	// Alternate provider for the generation contract (gemini|openai|anthropic|ollama).
	Provider string

	// MongoDB
	MongoURI string
	MongoDB  string

	// Postgres (optional pgvector backend for the RAG store).
	PostgresURL string

	// Number of recent messages kept when building provider context.
	MemoryMaxMessages int
	// Prior-conversation summaries injected per user.
	GlobalSummariesLimit int

	// Embeddings / RAG
	EmbeddingModel string
	RAGCollection  string
	RAGVectorIndex string

	// Very simple word blocklist applied before generation.
	SafetyBlockWords []string

	// Local archiving
	ArchiveAfterDays int
	LocalArchiveDir  string

	// ElevenLabs TTS
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModel   string
	ElevenLabsOutput  string

	// HTTP server
	ListenAddr string
}

// Load reads .env files (best-effort) and the process environment.
func Load() *Settings {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	s := &Settings{
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          getenv("GEMINI_MODEL", "gemini-1.5-pro-latest"),
		Provider:             getenv("LLM_PROVIDER", "gemini"),
		MongoURI:             getenv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:              getenv("MONGODB_DB", "taliyo_ai"),
		PostgresURL:          os.Getenv("POSTGRES_URL"),
		MemoryMaxMessages:    getint("MEMORY_MAX_MESSAGES", 30),
		GlobalSummariesLimit: getint("GLOBAL_SUMMARIES_LIMIT", 5),
		EmbeddingModel:       getenv("EMBEDDING_MODEL", "text-embedding-004"),
		RAGCollection:        getenv("RAG_COLLECTION", "documents"),
		RAGVectorIndex:       getenv("RAG_VECTOR_INDEX", "vector_index"),
		ArchiveAfterDays:     getint("ARCHIVE_AFTER_DAYS", 30),
		LocalArchiveDir:      getenv("LOCAL_ARCHIVE_DIR", "data/archive"),
		ElevenLabsAPIKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:    os.Getenv("ELEVENLABS_VOICE_ID"),
		ElevenLabsModel:      getenv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		ElevenLabsOutput:     getenv("ELEVENLABS_OUTPUT", "mp3_44100_128"),
		ListenAddr:           getenv("LISTEN_ADDR", ":8080"),
	}

	// Per-task models default down the chain: text -> stream, model -> vision -> file.
	s.GeminiTextModel = getenv("GEMINI_TEXT_MODEL", s.GeminiModel)
	s.GeminiStreamModel = getenv("GEMINI_STREAM_MODEL", s.GeminiTextModel)
	s.GeminiVisionModel = getenv("GEMINI_VISION_MODEL", s.GeminiModel)
	s.GeminiFileModel = getenv("GEMINI_FILE_MODEL", s.GeminiVisionModel)

	for _, w := range strings.Split(os.Getenv("SAFETY_BLOCK_WORDS"), ",") {
		if w = strings.TrimSpace(w); w != "" {
			s.SafetyBlockWords = append(s.SafetyBlockWords, w)
		}
	}
	return s
}

// ModelForTask returns the configured override for a task
// ("text", "stream", "vision", "file"), falling back to the default model.
func (s *Settings) ModelForTask(task string) string {
	switch strings.ToLower(strings.TrimSpace(task)) {
	case "text":
		return s.GeminiTextModel
	case "stream":
		return s.GeminiStreamModel
	case "vision":
		return s.GeminiVisionModel
	case "file":
		return s.GeminiFileModel
	default:
		return s.GeminiModel
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
