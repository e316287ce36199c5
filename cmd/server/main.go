package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	assistant "github.com/taliyo/assistant-go"
	"github.com/taliyo/assistant-go/src/archive"
	"github.com/taliyo/assistant-go/src/chat"
	"github.com/taliyo/assistant-go/src/config"
	"github.com/taliyo/assistant-go/src/embed"
	"github.com/taliyo/assistant-go/src/httpapi"
	"github.com/taliyo/assistant-go/src/memory"
	"github.com/taliyo/assistant-go/src/models"
	"github.com/taliyo/assistant-go/src/rag"
	"github.com/taliyo/assistant-go/src/telemetry"
	"github.com/taliyo/assistant-go/src/tts"
	"github.com/taliyo/assistant-go/src/websearch"
)

func main() {
	ctx := context.Background()
	settings := config.Load()

	gemini, err := models.NewGeminiLLM(ctx, settings.GeminiModel, assistant.SystemPrompt)
	if err != nil {
		log.Fatalf("gemini: %v", err)
	}
	defer gemini.Close()

	db := connectMongo(ctx, settings)

	// Conversation, memory and telemetry stores: Mongo when reachable,
	// in-process otherwise (the app keeps working without persistence).
	var (
		chatStore chat.Store
		memStore  memory.Store
		recorder  telemetry.Recorder = telemetry.Noop{}
		archiver  *archive.Archiver
	)
	if db != nil {
		cs, err := chat.NewMongoStore(db)
		if err != nil {
			log.Fatalf("chat store: %v", err)
		}
		if err := cs.EnsureIndexes(ctx); err != nil {
			log.Printf("chat indexes: %v", err)
		}
		chatStore = cs

		ms, err := memory.NewMongoStore(db)
		if err != nil {
			log.Fatalf("memory store: %v", err)
		}
		if err := ms.EnsureIndexes(ctx); err != nil {
			log.Printf("memory indexes: %v", err)
		}
		memStore = ms

		recorder = telemetry.NewMongoRecorder(db)
		if archiver, err = archive.NewArchiver(db, settings.LocalArchiveDir); err != nil {
			log.Fatalf("archiver: %v", err)
		}
	} else {
		log.Printf("mongo unavailable, using in-memory stores (no persistence)")
		chatStore = chat.NewInMemoryStore()
		memStore = memory.NewInMemoryStore()
	}

	embedder := embed.Auto(ctx)
	backend := ragBackend(ctx, settings, db, embedder)
	index := rag.NewIndex(embedder, backend)
	ingestor := rag.NewIngestor(index)

	var voice *tts.Client
	if settings.ElevenLabsAPIKey != "" {
		voice = tts.NewClient(settings.ElevenLabsAPIKey, settings.ElevenLabsVoiceID,
			settings.ElevenLabsModel, settings.ElevenLabsOutput)
	}

	// Background work can run on a cheaper provider.
	var summaryGen models.Agent = gemini
	if settings.Provider != "" && settings.Provider != "gemini" {
		if alt, err := models.NewLLMProvider(ctx, settings.Provider, "", assistant.SystemPrompt); err == nil {
			summaryGen = alt
		} else {
			log.Printf("summary provider %q: %v", settings.Provider, err)
		}
	}

	a, err := assistant.New(assistant.Options{
		Settings:   settings,
		Gemini:     gemini,
		Chats:      chatStore,
		Memory:     memStore,
		SummaryGen: summaryGen,
		Index:      index,
		Search:     websearch.NewDuckDuckGo(),
		Voice:      voice,
		Telemetry:  recorder,
	})
	if err != nil {
		log.Fatalf("assistant: %v", err)
	}

	srv := &httpapi.Server{
		Assistant: a,
		Ingestor:  ingestor,
		Backend:   backend,
		Archiver:  archiver,
	}
	log.Printf("listening on %s", settings.ListenAddr)
	if err := srv.Router().Run(settings.ListenAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func connectMongo(ctx context.Context, settings *config.Settings) *mongo.Database {
	if settings.MongoURI == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(settings.MongoURI))
	if err != nil {
		log.Printf("mongo connect: %v", err)
		return nil
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		log.Printf("mongo ping: %v", err)
		return nil
	}
	return client.Database(settings.MongoDB)
}

// ragBackend picks the vector store: pgvector when POSTGRES_URL is set, then
// Atlas $vectorSearch, then the in-process scan.
func ragBackend(ctx context.Context, settings *config.Settings, db *mongo.Database, embedder embed.Embedder) rag.Backend {
	dim, err := embed.ProbeDimension(ctx, embedder)
	if err != nil {
		log.Printf("embedding dimension probe: %v", err)
	}

	if settings.PostgresURL != "" {
		if pg, err := rag.NewPostgresStore(ctx, settings.PostgresURL); err == nil {
			if err := pg.EnsureSchema(ctx, dim); err != nil {
				log.Printf("pgvector schema: %v", err)
			}
			return pg
		} else {
			log.Printf("postgres: %v", err)
		}
	}
	if db != nil {
		ms, err := rag.NewMongoStore(db, settings.RAGCollection, settings.RAGVectorIndex)
		if err == nil {
			if err := ms.EnsureSchema(ctx, dim); err != nil {
				log.Printf("vector index: %v", err)
			}
			return ms
		}
		log.Printf("rag mongo store: %v", err)
	}
	log.Printf("rag: using in-memory vector store")
	return rag.NewInMemoryStore()
}
