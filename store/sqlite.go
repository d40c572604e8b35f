package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists chunks in SQLite with JSON-serialized embeddings.
// It has no native vector index, so the search methods return
// ErrVectorUnsupported and callers rank by manual cosine.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating directories as needed) and migrates a
// SQLite database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/lessonsearch.db"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			embedding_json TEXT,
			created_at INTEGER DEFAULT (unixepoch()),
			UNIQUE (document_id, chunk_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			embedding_json TEXT,
			updated_at INTEGER DEFAULT (unixepoch())
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			cache_key TEXT PRIMARY KEY,
			embedding TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
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
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, docID string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for _, c := range chunks {
		embJSON, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (document_id, chunk_index, text, token_count, embedding_json)
			VALUES (?, ?, ?, ?, ?)`,
			c.DocumentID, c.Index, c.Text, c.TokenCount, string(embJSON))
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// ChunksByDocument returns all chunks for docID ordered by chunk index.
func (s *SQLiteStore) ChunksByDocument(ctx context.Context, docID string) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, token_count, embedding_json
		FROM chunks WHERE document_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows, false)
}

// AllChunks returns every stored chunk ordered by document and index.
func (s *SQLiteStore) AllChunks(ctx context.Context) ([]ChunkRecord, error) {
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
func (s *SQLiteStore) ChunkCount(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, docID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// SearchChunks has no native path in SQLite.
func (s *SQLiteStore) SearchChunks(ctx context.Context, docID string, embedding []float64, k int) ([]ChunkRecord, error) {
	return nil, ErrVectorUnsupported
}

// SearchChunksGlobal has no native path in SQLite.
func (s *SQLiteStore) SearchChunksGlobal(ctx context.Context, embedding []float64, limit int) ([]ChunkRecord, error) {
	return nil, ErrVectorUnsupported
}

// KeywordSearch matches chunk text against any of the terms with LIKE over
// lowered text.
func (s *SQLiteStore) KeywordSearch(ctx context.Context, terms []string, limit int) ([]ChunkRecord, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	conds := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, term := range terms {
		conds[i] = "lower(text) LIKE ?"
		args = append(args, "%"+strings.ToLower(term)+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_index, text, token_count, embedding_json
		FROM chunks WHERE %s
		ORDER BY document_id, chunk_index
		LIMIT ?`, strings.Join(conds, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows, false)
}

// DeleteDocument removes the document's chunks and its single vector.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// StoreDocumentVector writes the JSON form; there is no native form here.
func (s *SQLiteStore) StoreDocumentVector(ctx context.Context, docID string, vec []float64) (bool, error) {
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return false, fmt.Errorf("marshal vector: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (id, embedding_json, updated_at)
		VALUES (?, ?, unixepoch())`, docID, string(embJSON))
	if err != nil {
		return false, fmt.Errorf("store document vector: %w", err)
	}
	return false, nil
}

// DocumentVector returns the stored whole-document vector.
func (s *SQLiteStore) DocumentVector(ctx context.Context, docID string) ([]float64, error) {
	var embJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding_json FROM documents WHERE id = ?`, docID).Scan(&embJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document vector: %w", err)
	}

	var vec []float64
	if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrNotFound
	}
	return vec, nil
}

// CachedEmbedding returns a non-expired cache entry.
func (s *SQLiteStore) CachedEmbedding(ctx context.Context, key string) ([]float64, error) {
	var embJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT embedding FROM embedding_cache
		WHERE cache_key = ? AND expires_at > unixepoch()`, key).Scan(&embJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding cache: %w", err)
	}

	var vec []float64
	if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
		return nil, fmt.Errorf("unmarshal cached embedding: %w", err)
	}
	return vec, nil
}

// PutCachedEmbedding upserts a cache entry with the given TTL.
func (s *SQLiteStore) PutCachedEmbedding(ctx context.Context, key string, vec []float64, ttl time.Duration) error {
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	expires := time.Now().Add(ttl).Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO embedding_cache (cache_key, embedding, expires_at)
		VALUES (?, ?, ?)`, key, string(embJSON), expires)
	if err != nil {
		return fmt.Errorf("store cached embedding: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
