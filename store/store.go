// Package store persists chunks, document vectors and cached embeddings.
// A PostgreSQL implementation uses pgvector for native similarity search;
// the SQLite implementation stores embeddings as JSON only, which forces
// callers onto the manual cosine path.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVectorUnsupported is returned by stores (or schemas) without a
	// native vector index. Callers fall back to manual cosine ranking.
	ErrVectorUnsupported = errors.New("native vector search unsupported")
)

// Chunk is one token-bounded span of a document, immutable once written.
// Corrections require re-indexing the whole document.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	TokenCount int
	Embedding  []float64
}

// ChunkRecord is a stored chunk as returned by queries. Similarity is only
// populated by the search methods.
type ChunkRecord struct {
	ID         int64
	DocumentID string
	Index      int
	Text       string
	TokenCount int
	Embedding  []float64
	Similarity float64
}

// Store is the persistence contract for the retrieval subsystem.
type Store interface {
	// ReplaceChunks atomically deletes all chunks for docID and inserts the
	// given set. No chunk from a prior indexing survives.
	ReplaceChunks(ctx context.Context, docID string, chunks []Chunk) error

	// ChunksByDocument returns all chunks for docID ordered by chunk index,
	// embeddings included.
	ChunksByDocument(ctx context.Context, docID string) ([]ChunkRecord, error)

	// ChunkCount returns the number of stored chunks for docID.
	ChunkCount(ctx context.Context, docID string) (int, error)

	// SearchChunks runs a native vector similarity query scoped to docID,
	// ordered by descending cosine similarity, limited to k. Returns
	// ErrVectorUnsupported when no native path exists.
	SearchChunks(ctx context.Context, docID string, embedding []float64, k int) ([]ChunkRecord, error)

	// SearchChunksGlobal is SearchChunks across the whole corpus.
	SearchChunksGlobal(ctx context.Context, embedding []float64, limit int) ([]ChunkRecord, error)

	// KeywordSearch returns chunks whose text matches any of the terms,
	// case-insensitively.
	KeywordSearch(ctx context.Context, terms []string, limit int) ([]ChunkRecord, error)

	// AllChunks returns every stored chunk with embeddings, ordered by
	// document and chunk index. Used for manual cosine ranking when no
	// native vector path exists.
	AllChunks(ctx context.Context) ([]ChunkRecord, error)

	// DeleteDocument removes the document's chunks and single vector.
	DeleteDocument(ctx context.Context, docID string) error

	// StoreDocumentVector persists a whole-document vector. The JSON form is
	// always written; the native form is best-effort and its failure is not
	// an error. Reports whether the native write succeeded.
	StoreDocumentVector(ctx context.Context, docID string, vec []float64) (bool, error)

	// DocumentVector returns the stored whole-document vector, preferring
	// the JSON form. ErrNotFound when none was stored.
	DocumentVector(ctx context.Context, docID string) ([]float64, error)

	// CachedEmbedding returns a non-expired cached vector for key, or
	// ErrNotFound.
	CachedEmbedding(ctx context.Context, key string) ([]float64, error)

	// PutCachedEmbedding stores a vector under key with the given TTL,
	// replacing any previous entry.
	PutCachedEmbedding(ctx context.Context, key string, vec []float64, ttl time.Duration) error

	// Close releases resources.
	Close() error
}
