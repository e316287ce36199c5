package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Backend using Postgres + pgvector.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// EnsureSchema creates the pgvector extension and the chunk table sized to the
// probed embedding dimensionality.
func (ps *PostgresStore) EnsureSchema(ctx context.Context, dim int) error {
	if ps == nil || ps.DB == nil || dim <= 0 {
		return nil
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_chunks (
			id          TEXT PRIMARY KEY,
			text        TEXT NOT NULL,
			embedding   vector(%d) NOT NULL,
			metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, dim),
		`CREATE INDEX IF NOT EXISTS rag_chunks_doc_id ON rag_chunks ((metadata->>'doc_id'));`,
	}
	for _, stmt := range stmts {
		if _, err := ps.DB.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("rag schema: %w", err)
		}
	}
	return nil
}

func (ps *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = ps.DB.Exec(ctx, `
		INSERT INTO rag_chunks (id, text, embedding, metadata, updated_at)
		VALUES ($1, $2, $3::vector, $4::jsonb, now())
		ON CONFLICT (id) DO UPDATE
		SET text = EXCLUDED.text,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata,
		    updated_at = now();
	`, rec.ID, rec.Text, vectorLiteral(rec.Embedding), string(metaJSON))
	return err
}

func (ps *PostgresStore) Search(ctx context.Context, vector []float32, k, pool int) ([]Hit, error) {
	if ps == nil || ps.DB == nil || k <= 0 {
		return nil, nil
	}
	// pgvector scans `pool` nearest candidates before the final truncation so
	// approximate indexes (ivfflat/hnsw) have room to find the true top-k.
	rows, err := ps.DB.Query(ctx, `
		SELECT text, metadata, 1 - (embedding <=> $1::vector) AS score
		FROM rag_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2;
	`, vectorLiteral(vector), pool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			text     string
			metaJSON []byte
			score    float64
		)
		if err := rows.Scan(&text, &metaJSON, &score); err != nil {
			return nil, err
		}
		var meta Metadata
		_ = json.Unmarshal(metaJSON, &meta)
		hits = append(hits, Hit{Text: text, Metadata: meta, Score: score})
		if len(hits) == k {
			break
		}
	}
	return hits, rows.Err()
}

func (ps *PostgresStore) DeleteDoc(ctx context.Context, docID string) (int64, error) {
	if ps == nil || ps.DB == nil {
		return 0, nil
	}
	tag, err := ps.DB.Exec(ctx, `DELETE FROM rag_chunks WHERE metadata->>'doc_id' = $1;`, docID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (ps *PostgresStore) ListDocuments(ctx context.Context, limit, skip int) ([]DocumentInfo, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := ps.DB.Query(ctx, `
		SELECT metadata->>'doc_id',
		       COALESCE(MIN(metadata->>'filename'), ''),
		       COALESCE(MIN(metadata->>'source'), ''),
		       MIN((metadata->>'ingested_at')::timestamptz),
		       MAX((metadata->>'ingested_at')::timestamptz),
		       COUNT(*),
		       COALESCE(SUM(length(text)), 0)
		FROM rag_chunks
		WHERE metadata ? 'doc_id'
		GROUP BY metadata->>'doc_id'
		ORDER BY MAX((metadata->>'ingested_at')::timestamptz) DESC NULLS LAST
		OFFSET $1 LIMIT $2;
	`, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var (
			info         DocumentInfo
			first, last  *time.Time
			chunks, chars int64
		)
		if err := rows.Scan(&info.DocID, &info.Name, &info.Source, &first, &last, &chunks, &chars); err != nil {
			return nil, err
		}
		if first != nil {
			info.FirstIngested = *first
		}
		if last != nil {
			info.LastIngested = *last
		}
		info.Chunks = int(chunks)
		info.Chars = int(chars)
		if info.Name == "" {
			info.Name = info.DocID
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	docs, err := ps.ListDocuments(ctx, 100000, 0)
	if err != nil {
		return Stats{}, err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	week := today.AddDate(0, 0, -7)
	st := Stats{TotalDocs: len(docs)}
	for _, d := range docs {
		if d.FirstIngested.IsZero() {
			continue
		}
		if !d.FirstIngested.Before(today) {
			st.DocsToday++
		}
		if !d.FirstIngested.Before(week) {
			st.DocsWeek++
		}
	}
	return st, nil
}

func (ps *PostgresStore) Count(ctx context.Context) (int, error) {
	if ps == nil || ps.DB == nil {
		return 0, nil
	}
	var n int
	if err := ps.DB.QueryRow(ctx, `SELECT COUNT(*) FROM rag_chunks;`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (ps *PostgresStore) Close() {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
}

func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
