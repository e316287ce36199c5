package rag

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/taliyo/assistant-go/src/chunker"
	"github.com/taliyo/assistant-go/src/concurrent"
	"github.com/taliyo/assistant-go/src/websearch"
)

const (
	// MaxCrawlURLs caps one crawl request; checked before any work is done.
	MaxCrawlURLs = 20

	crawlTimeout     = 20 * time.Second
	crawlConcurrency = 4
)

// Ingestor decodes sources into chunks, attaches provenance metadata and
// upserts them through the Index. Chunk IDs are deterministic so re-ingestion
// of an unchanged source replaces records instead of duplicating them.
type Ingestor struct {
	Index     *Index
	ChunkSize int
	Overlap   int
	Client    *http.Client
	// GuardURL vets crawl targets before any network call.
	GuardURL func(string) error
	// Concurrency bounds parallel fetches during a crawl.
	Concurrency int
}

func NewIngestor(ix *Index) *Ingestor {
	return &Ingestor{
		Index:       ix,
		ChunkSize:   chunker.DefaultSize,
		Overlap:     chunker.DefaultOverlap,
		Client:      &http.Client{Timeout: crawlTimeout},
		GuardURL:    websearch.GuardURL,
		Concurrency: crawlConcurrency,
	}
}

// IngestPDF parses a PDF, chunks its text per page and upserts every chunk.
// doc_id is the sha256 of the file bytes, so re-uploading identical content is
// a pure no-op replace; chunk ids are `doc_id:page:index`. A page whose text
// extraction fails contributes zero chunks instead of aborting the document.
// Returns (chunk count, doc_id).
func (ig *Ingestor) IngestPDF(ctx context.Context, pdfBytes []byte, filename, userKey string) (int, string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return 0, "", fmt.Errorf("failed to read PDF: %w", err)
	}

	docID := sha256Hex(pdfBytes)
	now := time.Now().UTC()
	count := 0

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only or corrupt page: skip it, keep the document.
			log.Printf("rag: pdf %s page %d extraction failed: %v", filename, pageNum, err)
			pageText = ""
		}
		for chunkIdx, text := range chunker.Chunk(pageText, ig.ChunkSize, ig.Overlap) {
			meta := Metadata{
				Source:     "pdf",
				Filename:   filename,
				Page:       pageNum,
				DocID:      docID,
				UserKey:    userKey,
				IngestedAt: now,
			}
			chunkID := fmt.Sprintf("%s:%d:%d", docID, pageNum, chunkIdx)
			if _, err := ig.Index.Upsert(ctx, text, meta, chunkID); err != nil {
				return count, docID, fmt.Errorf("upsert chunk %s: %w", chunkID, err)
			}
			count++
		}
	}
	return count, docID, nil
}

// CrawlResult reports the outcome of one crawled URL.
type CrawlResult struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Chunks int    `json:"chunks"`
	DocID  string `json:"doc_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Crawl fetches the URLs in parallel, extracts the visible text and ingests
// it. doc_id is the sha256 of the URL, stable across re-crawls regardless of
// content, and chunk ids are `doc_id:0:index` so a re-crawl replaces prior
// chunks. One failing URL or chunk never aborts the rest; results keep the
// input order.
func (ig *Ingestor) Crawl(ctx context.Context, urls []string) ([]CrawlResult, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("provide at least one URL")
	}
	if len(urls) > MaxCrawlURLs {
		return nil, fmt.Errorf("too many URLs (max %d)", MaxCrawlURLs)
	}
	return concurrent.ParallelMap(ctx, urls, func(u string) (CrawlResult, error) {
		return ig.crawlOne(ctx, u), nil
	}, ig.Concurrency)
}

func (ig *Ingestor) crawlOne(ctx context.Context, rawURL string) CrawlResult {
	res := CrawlResult{URL: rawURL}
	if ig.GuardURL != nil {
		if err := ig.GuardURL(rawURL); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	title, text, err := ig.fetchPage(ctx, rawURL)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if title == "" {
		title = rawURL
	}
	res.Title = title

	docID := sha256Hex([]byte(rawURL))
	res.DocID = docID
	now := time.Now().UTC()
	for chunkIdx, chunk := range chunker.Chunk(text, ig.ChunkSize, ig.Overlap) {
		meta := Metadata{
			Source:     "web",
			URL:        rawURL,
			Filename:   title,
			DocID:      docID,
			IngestedAt: now,
		}
		chunkID := fmt.Sprintf("%s:0:%d", docID, chunkIdx)
		if _, err := ig.Index.Upsert(ctx, chunk, meta, chunkID); err != nil {
			log.Printf("rag: crawl %s chunk %d upsert failed: %v", rawURL, chunkIdx, err)
			continue
		}
		res.Chunks++
	}
	return res
}

func (ig *Ingestor) fetchPage(ctx context.Context, rawURL string) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	client := ig.Client
	if client == nil {
		client = &http.Client{Timeout: crawlTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", "", fmt.Errorf("status %d", resp.StatusCode)
	}
	title, text, err = websearch.ParsePage(resp.Body)
	if err != nil {
		return "", "", err
	}
	return title, strings.TrimSpace(text), nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
