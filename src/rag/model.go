package rag

import "time"

// Metadata carries the provenance of one stored chunk. All chunks sharing a
// DocID belong to one logical document; document-level views are derived by
// grouping on DocID, never stored separately.
type Metadata struct {
	Source     string    `bson:"source,omitempty" json:"source,omitempty"`
	Filename   string    `bson:"filename,omitempty" json:"filename,omitempty"`
	URL        string    `bson:"url,omitempty" json:"url,omitempty"`
	DocID      string    `bson:"doc_id,omitempty" json:"doc_id,omitempty"`
	Page       int       `bson:"page,omitempty" json:"page,omitempty"`
	UserKey    string    `bson:"user_key,omitempty" json:"user_key,omitempty"`
	IngestedAt time.Time `bson:"ingested_at,omitempty" json:"ingested_at,omitempty"`
	// Error is set only on the sentinel record returned when the similarity
	// index is unavailable.
	Error string `bson:"error,omitempty" json:"error,omitempty"`
}

// Record is one stored chunk with its embedding.
type Record struct {
	ID        string    `bson:"_id" json:"id"`
	Text      string    `bson:"text" json:"text"`
	Embedding []float32 `bson:"embedding" json:"-"`
	Metadata  Metadata  `bson:"metadata" json:"metadata"`
	CreatedAt time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Hit is one retrieval result, ranked by descending cosine similarity.
type Hit struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// DocumentInfo is the derived document-level view of a chunk group.
type DocumentInfo struct {
	DocID         string    `json:"doc_id"`
	Name          string    `json:"name"`
	Source        string    `json:"type"`
	FirstIngested time.Time `json:"date_added"`
	LastIngested  time.Time `json:"updated_at"`
	Chunks        int       `json:"chunks"`
	Chars         int       `json:"chars"`
}

// Stats summarizes the knowledge base for dashboards.
type Stats struct {
	TotalDocs int `json:"total_docs"`
	DocsToday int `json:"docs_today"`
	DocsWeek  int `json:"docs_week"`
}
