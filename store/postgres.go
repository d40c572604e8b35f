package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists chunks in PostgreSQL. When the pgvector extension
// is available it maintains a native vector column with an hnsw cosine
// index alongside the JSON form; otherwise it degrades to JSON-only storage
// and reports ErrVectorUnsupported from the search methods.
type PostgresStore struct {
	db        *sql.DB
	dimension int
	native    bool
}

// NewPostgresStore opens a connection and runs migrations. The dimension
// parameter fixes the size of the native vector columns.
func NewPostgresStore(dsn string, dimension int) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db, dimension: dimension}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	s.native = true
	if _, err := s.db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		log.Printf("[store] pgvector extension unavailable, using JSON-only embeddings: %v", err)
		s.native = false
	}

	vectorCol := ""
	if s.native {
		vectorCol = fmt.Sprintf("embedding vector(%d),", s.dimension)
	}

	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			token_count INT NOT NULL,
			%s
			embedding_json JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (document_id, chunk_index)
		)`, vectorCol),
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			%s
			embedding_json JSONB,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, vectorCol),
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			cache_key TEXT PRIMARY KEY,
			embedding JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
	}
	if s.native {
		migrations = append(migrations,
			`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops)`)
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// ReplaceChunks deletes all chunks for docID and inserts the new set in one
// transaction.
func (s *PostgresStore) ReplaceChunks(ctx context.Context, docID string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for _, c := range chunks {
		embJSON, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}

		if s.native {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO chunks (document_id, chunk_index, text, token_count, embedding, embedding_json)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				c.DocumentID, c.Index, c.Text, c.TokenCount, formatEmbedding(c.Embedding), embJSON)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO chunks (document_id, chunk_index, text, token_count, embedding_json)
				VALUES ($1, $2, $3, $4, $5)`,
				c.DocumentID, c.Index, c.Text, c.TokenCount, embJSON)
		}
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// ChunksByDocument returns all chunks for docID ordered by chunk index.
func (s *PostgresStore) ChunksByDocument(ctx context.Context, docID string) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, token_count, embedding_json
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows, false)
}

// AllChunks returns every stored chunk ordered by document and index.
func (s *PostgresStore) AllChunks(ctx context.Context) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, token_count, embedding_json
		FROM chunks ORDER BY document_id, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows, false)
}

// ChunkCount returns the number of stored chunks for docID.
func (s *PostgresStore) ChunkCount(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, docID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// SearchChunks runs a pgvector cosine query scoped to one document.
func (s *PostgresStore) SearchChunks(ctx context.Context, docID string, embedding []float64, k int) ([]ChunkRecord, error) {
	if !s.native {
		return nil, ErrVectorUnsupported
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, token_count, embedding_json,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE document_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3`, formatEmbedding(embedding), docID, k)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows, true)
}

// SearchChunksGlobal runs a pgvector cosine query across all documents.
func (s *PostgresStore) SearchChunksGlobal(ctx context.Context, embedding []float64, limit int) ([]ChunkRecord, error) {
	if !s.native {
		return nil, ErrVectorUnsupported
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, token_count, embedding_json,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`, formatEmbedding(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows, true)
}

// KeywordSearch matches chunk text against any of the terms with ILIKE.
func (s *PostgresStore) KeywordSearch(ctx context.Context, terms []string, limit int) ([]ChunkRecord, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	conds := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, term := range terms {
		conds[i] = fmt.Sprintf("text ILIKE $%d", i+1)
		args = append(args, "%"+term+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_index, text, token_count, embedding_json
		FROM chunks WHERE %s
		ORDER BY document_id, chunk_index
		LIMIT $%d`, strings.Join(conds, " OR "), len(terms)+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows, false)
}

// DeleteDocument removes the document's chunks and its single vector.
func (s *PostgresStore) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// StoreDocumentVector writes the JSON form and, when available, the native
// form. A native failure downgrades silently to JSON-only.
func (s *PostgresStore) StoreDocumentVector(ctx context.Context, docID string, vec []float64) (bool, error) {
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return false, fmt.Errorf("marshal vector: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, embedding_json, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			embedding_json = EXCLUDED.embedding_json,
			updated_at = NOW()`, docID, embJSON)
	if err != nil {
		return false, fmt.Errorf("store document vector: %w", err)
	}

	if !s.native {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET embedding = $1 WHERE id = $2`, formatEmbedding(vec), docID)
	if err != nil {
		log.Printf("[store] native vector write failed for %s, JSON form kept: %v", docID, err)
		return false, nil
	}
	return true, nil
}

// DocumentVector returns the stored whole-document vector.
func (s *PostgresStore) DocumentVector(ctx context.Context, docID string) ([]float64, error) {
	var embJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding_json FROM documents WHERE id = $1`, docID).Scan(&embJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document vector: %w", err)
	}

	var vec []float64
	if err := json.Unmarshal(embJSON, &vec); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrNotFound
	}
	return vec, nil
}

// CachedEmbedding returns a non-expired cache entry.
func (s *PostgresStore) CachedEmbedding(ctx context.Context, key string) ([]float64, error) {
	var embJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT embedding FROM embedding_cache
		WHERE cache_key = $1 AND expires_at > NOW()`, key).Scan(&embJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding cache: %w", err)
	}

	var vec []float64
	if err := json.Unmarshal(embJSON, &vec); err != nil {
		return nil, fmt.Errorf("unmarshal cached embedding: %w", err)
	}
	return vec, nil
}

// PutCachedEmbedding upserts a cache entry with the given TTL.
func (s *PostgresStore) PutCachedEmbedding(ctx context.Context, key string, vec []float64, ttl time.Duration) error {
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (cache_key, embedding, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		ON CONFLICT (cache_key) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			expires_at = EXCLUDED.expires_at`,
		key, embJSON, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return fmt.Errorf("store cached embedding: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanChunkRows(rows *sql.Rows, withSimilarity bool) ([]ChunkRecord, error) {
	var records []ChunkRecord
	for rows.Next() {
		var r ChunkRecord
		var embJSON []byte
		var err error
		if withSimilarity {
			err = rows.Scan(&r.ID, &r.DocumentID, &r.Index, &r.Text, &r.TokenCount, &embJSON, &r.Similarity)
		} else {
			err = rows.Scan(&r.ID, &r.DocumentID, &r.Index, &r.Text, &r.TokenCount, &embJSON)
		}
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(embJSON) > 0 {
			if err := json.Unmarshal(embJSON, &r.Embedding); err != nil {
				return nil, fmt.Errorf("unmarshal embedding: %w", err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// formatEmbedding converts a float64 slice to pgvector format: "[0.1,0.2,0.3]"
func formatEmbedding(embedding []float64) string {
	if len(embedding) == 0 {
		return ""
	}

	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
