// Package httpapi exposes the assistant over HTTP. Handlers stay thin:
// decode, delegate, encode.
package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	assistant "github.com/taliyo/assistant-go"
	"github.com/taliyo/assistant-go/src/archive"
	"github.com/taliyo/assistant-go/src/chat"
	"github.com/taliyo/assistant-go/src/models"
	"github.com/taliyo/assistant-go/src/rag"
	"github.com/taliyo/assistant-go/src/tts"
)

// maxUploadBytes bounds PDF and image uploads.
const maxUploadBytes = 32 << 20

// Server bundles the handlers' collaborators.
type Server struct {
	Assistant *assistant.Assistant
	Ingestor  *rag.Ingestor
	Backend   rag.Backend
	Archiver  *archive.Archiver
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/models", s.listModels)

	r.POST("/chat", s.chatHandler)
	r.POST("/chat/stream", s.chatStream)
	r.POST("/chat/voice", s.chatVoice)

	r.GET("/conversations", s.listConversations)
	r.GET("/conversations/:id", s.getConversation)
	r.DELETE("/conversations/:id", s.deleteConversation)

	r.POST("/rag/upsert", s.ragUpsert)
	r.POST("/rag/query", s.ragQuery)
	r.POST("/rag/ingest_pdf", s.ragIngestPDF)
	r.POST("/crawl", s.crawl)
	r.GET("/docs", s.listDocs)
	r.DELETE("/docs/:doc_id", s.deleteDoc)
	r.GET("/kb/stats", s.kbStats)

	r.POST("/tts", s.ttsHandler)
	r.POST("/vision/summarize", s.visionSummarize)
	r.POST("/files/ask", s.filesAsk)

	r.POST("/admin/archive", s.adminArchive)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"backend": "online"})
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.Assistant.ListModels(c.Request.Context())})
}

func (s *Server) chatHandler(c *gin.Context) {
	var req assistant.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.Assistant.Chat(c.Request.Context(), req)
	if err != nil {
		c.JSON(chatStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// chatStream replies as Server-Sent Events, one data frame per token batch.
func (s *Server) chatStream(c *gin.Context) {
	var req assistant.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	convID, ch, err := s.Assistant.ChatStream(c.Request.Context(), req)
	if err != nil {
		c.JSON(chatStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Conversation-Id", convID)
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-ch
		if !ok {
			return false
		}
		if chunk.Delta != "" {
			fmt.Fprintf(w, "data: %s\n\n", chunk.Delta)
		}
		return !chunk.Done
	})
}

func (s *Server) chatVoice(c *gin.Context) {
	var req assistant.VoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.Assistant.ChatVoice(c.Request.Context(), req)
	if err != nil {
		c.JSON(chatStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listConversations(c *gin.Context) {
	list, err := s.Assistant.Conversations().ListConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getConversation(c *gin.Context) {
	conv, msgs, err := s.Assistant.Conversations().GetConversation(c.Request.Context(), c.Param("id"))
	if errors.Is(err, chat.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id": conv.ID, "title": conv.Title,
		"created_at": conv.CreatedAt, "updated_at": conv.UpdatedAt,
		"messages": msgs,
	})
}

func (s *Server) deleteConversation(c *gin.Context) {
	if err := s.Assistant.Conversations().DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ragUpsert(c *gin.Context) {
	var body struct {
		ID       string       `json:"id"`
		Text     string       `json:"text"`
		Metadata rag.Metadata `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.Ingestor.Index.Upsert(c.Request.Context(), body.Text, body.Metadata, body.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) ragQuery(c *gin.Context) {
	var body struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.K <= 0 {
		body.K = 5
	}
	hits, err := s.Ingestor.Index.Query(c.Request.Context(), body.Query, body.K)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

func (s *Server) ragIngestPDF(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !strings.Contains(strings.ToLower(header.Header.Get("Content-Type")), "pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF is supported for ingestion."})
		return
	}
	data, err := readUpload(header)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := header.Filename
	if name == "" {
		name = "document.pdf"
	}
	chunks, docID, err := s.Ingestor.IngestPDF(c.Request.Context(), data, name, c.PostForm("user_key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "chunks": chunks, "doc_id": docID})
}

func (s *Server) crawl(c *gin.Context) {
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := s.Ingestor.Crawl(c.Request.Context(), body.URLs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) listDocs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	docs, err := s.Backend.ListDocuments(c.Request.Context(), limit, skip)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs})
}

func (s *Server) deleteDoc(c *gin.Context) {
	deleted, err := s.Ingestor.Index.DeleteDoc(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted_chunks": deleted})
}

func (s *Server) kbStats(c *gin.Context) {
	stats, err := s.Backend.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) ttsHandler(c *gin.Context) {
	var body struct {
		Text    string `json:"text"`
		VoiceID string `json:"voice_id"`
		Model   string `json:"model"`
		Output  string `json:"output"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	audio, err := s.Assistant.Synthesize(c.Request.Context(), tts.Request{
		Text:    body.Text,
		VoiceID: body.VoiceID,
		Model:   body.Model,
		Output:  body.Output,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tts.ErrNoVoice) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (s *Server) visionSummarize(c *gin.Context) {
	req, err := fileRequestFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.Assistant.VisionSummarize(c.Request.Context(), req)
	if err != nil {
		c.JSON(chatStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": resp.Answer, "model": resp.Model,
		"quality": resp.Quality, "conversation_id": resp.ConversationID,
	})
}

func (s *Server) filesAsk(c *gin.Context) {
	req, err := fileRequestFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.Assistant.AskFile(c.Request.Context(), req)
	if err != nil {
		c.JSON(chatStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) adminArchive(c *gin.Context) {
	if s.Archiver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archiving requires MongoDB"})
		return
	}
	var body struct {
		Days   int  `json:"days"`
		DryRun bool `json:"dry_run"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Days <= 0 {
		body.Days = s.Assistant.Settings().ArchiveAfterDays
	}
	result, err := s.Archiver.ArchiveMessages(c.Request.Context(), body.Days, body.DryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func fileRequestFromForm(c *gin.Context) (assistant.FileRequest, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return assistant.FileRequest{}, errors.New("file is required")
	}
	data, err := readUpload(header)
	if err != nil {
		return assistant.FileRequest{}, err
	}
	return assistant.FileRequest{
		Data:           data,
		MimeType:       header.Header.Get("Content-Type"),
		Filename:       header.Filename,
		Prompt:         c.PostForm("prompt"),
		Quality:        c.PostForm("quality"),
		ConversationID: c.PostForm("conversation_id"),
		UserKey:        c.PostForm("user_key"),
	}, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}

// chatStatus maps orchestration errors onto HTTP statuses: blocked input is a
// client error, cascade exhaustion a bad gateway.
func chatStatus(err error) int {
	var ex *models.ExhaustedError
	switch {
	case errors.Is(err, assistant.ErrBlocked):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ex):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
