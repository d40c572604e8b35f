// Package indexer persists lesson transcripts as embedded chunks and
// retrieves them by vector similarity.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/chansereyvath/lessonsearch/gateway"
	"github.com/chansereyvath/lessonsearch/monitor"
	"github.com/chansereyvath/lessonsearch/store"
	"github.com/chansereyvath/lessonsearch/textproc"
)

var (
	// ErrEmptyInput is returned when a document's cleaned text is empty.
	ErrEmptyInput = errors.New("empty input text")

	// ErrNoChunks is returned when no chunks could be produced.
	ErrNoChunks = errors.New("no chunks produced")
)

const (
	// embedParallelism bounds in-flight provider calls during indexing.
	// This cap respects provider rate limits; it is a correctness
	// requirement, not a tuning knob.
	embedParallelism = 5

	// DefaultTopK is the default retrieval depth.
	DefaultTopK = 8
)

// Config carries the indexer's chunking knobs.
type Config struct {
	MaxTokens     int
	OverlapTokens int
}

// DefaultConfig returns the production chunking defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     textproc.DefaultMaxTokens,
		OverlapTokens: textproc.DefaultOverlapTokens,
	}
}

// Indexer drives chunk persistence, similarity retrieval and question
// answering for lesson documents.
type Indexer struct {
	cfg     Config
	store   store.Store
	gw      *gateway.Gateway
	proc    *textproc.Processor
	metrics *monitor.Collector
}

// New creates an indexer. metrics may be nil.
func New(cfg Config, st store.Store, gw *gateway.Gateway, proc *textproc.Processor, metrics *monitor.Collector) *Indexer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = textproc.DefaultMaxTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = textproc.DefaultOverlapTokens
	}
	return &Indexer{cfg: cfg, store: st, gw: gw, proc: proc, metrics: metrics}
}

// IndexDocument chunks fullText, embeds the chunks and replaces the
// document's stored chunk set. Chunks whose embedding failed are skipped
// silently; the returned count is the number actually inserted.
func (ix *Indexer) IndexDocument(ctx context.Context, docID, fullText string) (int, error) {
	cleaned := ix.proc.Clean(fullText)
	if cleaned == "" {
		return 0, ErrEmptyInput
	}

	texts := ix.proc.ChunkByTokens(cleaned, ix.cfg.MaxTokens, ix.cfg.OverlapTokens)
	if len(texts) == 0 {
		return 0, ErrNoChunks
	}

	// Indices are assigned before dispatch so stored order reflects the
	// document order regardless of embedding completion order.
	chunks := make([]store.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = store.Chunk{
			DocumentID: docID,
			Index:      i,
			Text:       text,
			TokenCount: ix.proc.CountTokens(text),
		}
	}

	sem := make(chan struct{}, embedParallelism)
	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			chunks[i].Embedding = ix.gw.Embed(ctx, chunks[i].Text)
		}(i)
	}
	wg.Wait()

	embedded := make([]store.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) > 0 {
			embedded = append(embedded, c)
		} else {
			ix.metrics.Inc(monitor.ChunksSkipped)
			log.Printf("[indexer] skipping chunk %d of %s: embedding unavailable", c.Index, docID)
		}
	}

	if err := ix.store.ReplaceChunks(ctx, docID, embedded); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}

	ix.metrics.Add(monitor.ChunksIndexed, int64(len(embedded)))
	return len(embedded), nil
}

// RetrieveTopK returns up to k chunks of docID ranked by descending cosine
// similarity to the query. An unembeddable query yields an empty result.
// When the store has no native vector path the ranking is computed in
// application code.
func (ix *Indexer) RetrieveTopK(ctx context.Context, docID, query string, k int) ([]store.ChunkRecord, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	vec := ix.gw.Embed(ctx, query)
	if vec == nil {
		return nil, nil
	}

	recs, err := ix.store.SearchChunks(ctx, docID, vec, k)
	if err == nil {
		return recs, nil
	}
	if !errors.Is(err, store.ErrVectorUnsupported) {
		log.Printf("[indexer] native vector search failed, using manual cosine: %v", err)
	}

	return ix.manualTopK(ctx, docID, vec, k)
}

func (ix *Indexer) manualTopK(ctx context.Context, docID string, vec []float64, k int) ([]store.ChunkRecord, error) {
	all, err := ix.store.ChunksByDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	for i := range all {
		all[i].Similarity = store.CosineSimilarity(vec, all[i].Embedding)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Similarity > all[j].Similarity
	})

	if len(all) > k {
		all = all[:k]
	}
	ix.metrics.Inc(monitor.ManualCosineRanked)
	return all, nil
}

// StoreSingleVector persists a whole-document vector, writing both the
// JSON-serializable and native forms where the schema allows. Success is
// reported as long as the JSON form was written.
func (ix *Indexer) StoreSingleVector(ctx context.Context, docID string, vec []float64) error {
	native, err := ix.store.StoreDocumentVector(ctx, docID, vec)
	if err != nil {
		return fmt.Errorf("store document vector: %w", err)
	}
	if !native {
		log.Printf("[indexer] document vector for %s stored as JSON only", docID)
	}
	return nil
}

// GetIndexStatus returns the stored chunk count for docID.
func (ix *Indexer) GetIndexStatus(ctx context.Context, docID string) (int, error) {
	return ix.store.ChunkCount(ctx, docID)
}

// DeleteDocument removes a document's chunks and vectors, typically on a
// lifecycle notification from the document-management service.
func (ix *Indexer) DeleteDocument(ctx context.Context, docID string) error {
	return ix.store.DeleteDocument(ctx, docID)
}
