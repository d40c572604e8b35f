// Package search implements hybrid retrieval over indexed lesson chunks:
// semantic similarity, expanded keyword matching and subject-context
// expansion, fused into a single ranked result list.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chansereyvath/lessonsearch/gateway"
	"github.com/chansereyvath/lessonsearch/monitor"
	"github.com/chansereyvath/lessonsearch/store"
)

const (
	// Strategy tags attached to results.
	StrategySemanticNative = "semantic_pgvector"
	StrategySemanticManual = "semantic_manual"
	StrategyKeyword        = "keyword_expanded"
	StrategySubject        = "subject_context"
	StrategyLessonScoped   = "lesson_scoped"

	DefaultLimit     = 10
	DefaultThreshold = 0.7

	resultCacheTTL  = 5 * time.Minute
	keywordTermsCap = 5
)

// FusionWeights holds the tunable scoring constants of the fusion step.
type FusionWeights struct {
	KeywordBase   float64 `yaml:"keyword_base"`
	KeywordBoost  float64 `yaml:"keyword_boost"`
	SubjectBase   float64 `yaml:"subject_base"`
	SubjectBoost  float64 `yaml:"subject_boost"`
	CrossStrategy float64 `yaml:"cross_strategy"`
	SubjectBonus  float64 `yaml:"subject_bonus"`
	SemanticRelax float64 `yaml:"semantic_relax"`
}

// DefaultFusionWeights returns the stock weights.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{
		KeywordBase:   0.4,
		KeywordBoost:  0.1,
		SubjectBase:   0.3,
		SubjectBoost:  0.15,
		CrossStrategy: 0.2,
		SubjectBonus:  0.1,
		SemanticRelax: 0.8,
	}
}

// Query describes one search request. DocumentID restricts the search to a
// single lesson; Subject restricts dictionary expansion.
type Query struct {
	Text       string
	Subject    string
	DocumentID string
	Limit      int
	Threshold  float64
}

// Result is one fused search hit. ID is "docID:chunkID" for chunk-level
// hits and the bare document id for the lesson-scoped comparison.
type Result struct {
	ID                 string   `json:"id"`
	DocumentID         string   `json:"document_id"`
	ChunkIndex         int      `json:"chunk_index"`
	Excerpt            string   `json:"excerpt"`
	Score              float64  `json:"score"`
	OriginalSimilarity float64  `json:"original_similarity,omitempty"`
	Strategies         []string `json:"strategies"`
	DetectedSubjects   []string `json:"detected_subjects,omitempty"`

	seq int
}

type cacheEntry struct {
	results []Result
	expires time.Time
}

// Engine runs hybrid searches against a chunk store, using the embedding
// gateway for the semantic strategy.
type Engine struct {
	store   store.Store
	gw      *gateway.Gateway
	weights FusionWeights
	metrics *monitor.Collector

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewEngine creates a search engine. metrics may be nil.
func NewEngine(st store.Store, gw *gateway.Gateway, weights FusionWeights, metrics *monitor.Collector) *Engine {
	if weights == (FusionWeights{}) {
		weights = DefaultFusionWeights()
	}
	return &Engine{
		store:   st,
		gw:      gw,
		weights: weights,
		metrics: metrics,
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Search runs the hybrid pipeline and returns results ranked by fused
// score. Internal failures degrade to a plain keyword search; Search never
// returns an error to the caller.
func (e *Engine) Search(ctx context.Context, q Query) []Result {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Threshold <= 0 {
		q.Threshold = DefaultThreshold
	}
	e.metrics.Inc(monitor.SearchesServed)

	// Document-scoped queries reflect per-lesson state that may have just
	// changed, so they bypass the result cache.
	cacheKey := ""
	if q.DocumentID == "" {
		cacheKey = fmt.Sprintf("%s|%s|%s|%d|%.4f", q.Text, q.Subject, q.DocumentID, q.Limit, q.Threshold)
		if cached, ok := e.cachedResults(cacheKey); ok {
			e.metrics.Inc(monitor.SearchCacheHits)
			return cached
		}
	}

	results, err := e.hybrid(ctx, q)
	if err != nil {
		log.Printf("[search] hybrid search failed, falling back to keyword: %v", err)
		e.metrics.Inc(monitor.SearchFallbacks)
		return e.keywordFallback(ctx, q)
	}

	if cacheKey != "" {
		e.storeResults(cacheKey, results)
	}
	return results
}

func (e *Engine) hybrid(ctx context.Context, q Query) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panic: %v", r)
		}
	}()

	enhanced := EnhanceQuery(q.Text, q.Subject)

	// A document-scoped query compares only against the stored lesson
	// vector. There is nothing to fuse.
	if q.DocumentID != "" {
		r := e.lessonScoped(ctx, q)
		if r == nil {
			return nil, nil
		}
		r.DetectedSubjects = enhanced.Subjects
		return []Result{*r}, nil
	}

	byID := make(map[string]*Result)
	if err := e.semanticPass(ctx, q, byID); err != nil {
		return nil, err
	}
	e.keywordPass(ctx, q, enhanced, byID)
	if strategy := enhanced.SubjectStrategy(); strategy != "" {
		e.subjectPass(ctx, q, strategy, byID)
	}

	results = fuse(byID, e.weights, q.Subject != "" && len(enhanced.Subjects) > 0)
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	for i := range results {
		results[i].Excerpt = ExtractRelevantExcerpt(results[i].Excerpt, q.Text, excerptMaxLength)
		results[i].DetectedSubjects = enhanced.Subjects
	}
	return results, nil
}

// lessonScoped compares the query embedding against the stored
// whole-document vector, yielding at most one result.
func (e *Engine) lessonScoped(ctx context.Context, q Query) *Result {
	vec := e.gw.Embed(ctx, q.Text)
	if vec == nil {
		return nil
	}
	docVec, err := e.store.DocumentVector(ctx, q.DocumentID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[search] document vector for %s unavailable: %v", q.DocumentID, err)
		}
		return nil
	}
	sim := store.CosineSimilarity(vec, docVec)
	if sim < q.Threshold*e.weights.SemanticRelax {
		return nil
	}
	return &Result{
		ID:                 q.DocumentID,
		DocumentID:         q.DocumentID,
		Score:              sim,
		OriginalSimilarity: sim,
		Strategies:         []string{StrategyLessonScoped},
	}
}

// semanticPass ranks chunks by embedding similarity, using the store's
// native vector path when available and in-process cosine otherwise. The
// threshold is relaxed so fusion sees near-misses the other strategies can
// confirm.
func (e *Engine) semanticPass(ctx context.Context, q Query, byID map[string]*Result) error {
	vec := e.gw.Embed(ctx, q.Text)
	if vec == nil {
		return nil
	}
	relaxed := q.Threshold * e.weights.SemanticRelax

	tag := StrategySemanticNative
	recs, err := e.store.SearchChunksGlobal(ctx, vec, q.Limit*2)
	if err != nil {
		if !errors.Is(err, store.ErrVectorUnsupported) {
			return fmt.Errorf("semantic search: %w", err)
		}
		recs, err = e.manualSemantic(ctx, q, vec)
		if err != nil {
			return err
		}
		tag = StrategySemanticManual
	}

	for _, rec := range recs {
		if rec.Similarity < relaxed {
			continue
		}
		addStrategy(byID, rec, tag, rec.Similarity, rec.Similarity)
	}
	return nil
}

func (e *Engine) manualSemantic(ctx context.Context, q Query, vec []float64) ([]store.ChunkRecord, error) {
	recs, err := e.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks for manual ranking: %w", err)
	}
	for i := range recs {
		recs[i].Similarity = store.CosineSimilarity(vec, recs[i].Embedding)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Similarity > recs[j].Similarity
	})
	if len(recs) > q.Limit*2 {
		recs = recs[:q.Limit*2]
	}
	e.metrics.Inc(monitor.ManualCosineRanked)
	return recs, nil
}

// keywordPass scores chunks by how many expanded terms they contain.
func (e *Engine) keywordPass(ctx context.Context, q Query, enhanced Enhanced, byID map[string]*Result) {
	terms := enhanced.Terms
	if len(terms) > keywordTermsCap {
		terms = terms[:keywordTermsCap]
	}
	recs, err := e.store.KeywordSearch(ctx, terms, q.Limit*2)
	if err != nil {
		log.Printf("[search] keyword strategy failed: %v", err)
		return
	}
	for _, rec := range recs {
		score := termScore(rec.Text, terms, e.weights.KeywordBase, e.weights.KeywordBoost)
		addStrategy(byID, rec, StrategyKeyword, score, 0)
	}
}

// subjectPass scores chunks against the subject-context vocabulary.
func (e *Engine) subjectPass(ctx context.Context, q Query, strategy string, byID map[string]*Result) {
	terms := strings.Split(strategy, " OR ")
	recs, err := e.store.KeywordSearch(ctx, terms, q.Limit*2)
	if err != nil {
		log.Printf("[search] subject strategy failed: %v", err)
		return
	}
	for _, rec := range recs {
		score := termScore(rec.Text, terms, e.weights.SubjectBase, e.weights.SubjectBoost)
		addStrategy(byID, rec, StrategySubject, score, 0)
	}
}

// keywordFallback is the degraded path used when the hybrid pipeline
// fails: a plain keyword search over the raw query words.
func (e *Engine) keywordFallback(ctx context.Context, q Query) []Result {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) > keywordTermsCap {
		terms = terms[:keywordTermsCap]
	}
	recs, err := e.store.KeywordSearch(ctx, terms, q.Limit)
	if err != nil {
		log.Printf("[search] keyword fallback failed: %v", err)
		return nil
	}
	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		if q.DocumentID != "" && rec.DocumentID != q.DocumentID {
			continue
		}
		results = append(results, Result{
			ID:         chunkResultID(rec),
			DocumentID: rec.DocumentID,
			ChunkIndex: rec.Index,
			Excerpt:    ExtractRelevantExcerpt(rec.Text, q.Text, excerptMaxLength),
			Score:      e.weights.KeywordBase,
			Strategies: []string{StrategyKeyword},
		})
	}
	return results
}

// fuse merges per-strategy scores into a single ranking. Each result's
// fused score is its best strategy score, plus a bonus when multiple
// strategies agree, plus a subject bonus when an explicit subject filter
// matched a dictionary.
func fuse(byID map[string]*Result, w FusionWeights, subjectFiltered bool) []Result {
	results := make([]Result, 0, len(byID))
	for _, r := range byID {
		if len(r.Strategies) > 1 {
			r.Score += w.CrossStrategy
		}
		if subjectFiltered {
			r.Score += w.SubjectBonus
		}
		results = append(results, *r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].seq < results[j].seq
	})
	return results
}

// addStrategy records a strategy hit for a chunk, keeping the maximum
// score across strategies.
func addStrategy(byID map[string]*Result, rec store.ChunkRecord, tag string, score, similarity float64) {
	id := chunkResultID(rec)
	r, ok := byID[id]
	if !ok {
		r = &Result{
			ID:         id,
			DocumentID: rec.DocumentID,
			ChunkIndex: rec.Index,
			Excerpt:    rec.Text,
			seq:        len(byID),
		}
		byID[id] = r
	}
	if score > r.Score {
		r.Score = score
	}
	if similarity > r.OriginalSimilarity {
		r.OriginalSimilarity = similarity
	}
	for _, s := range r.Strategies {
		if s == tag {
			return
		}
	}
	r.Strategies = append(r.Strategies, tag)
}

// termScore computes base + boost per matched term, capped below 1.0 so
// semantic similarity can still outrank keyword-only hits. Expanded-term
// matches therefore always score above the plain-keyword fallback's bare
// base.
func termScore(text string, terms []string, base, boost float64) float64 {
	lower := strings.ToLower(text)
	matched := 0
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			matched++
		}
	}
	if matched == 0 {
		return base
	}
	score := base + boost*float64(matched)
	if score > 0.95 {
		score = 0.95
	}
	return score
}

func chunkResultID(rec store.ChunkRecord) string {
	return fmt.Sprintf("%s:%d", rec.DocumentID, rec.ID)
}

func (e *Engine) cachedResults(key string) ([]Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.cache[key]
	if !ok || e.now().After(entry.expires) {
		delete(e.cache, key)
		return nil, false
	}
	return entry.results, true
}

func (e *Engine) storeResults(key string, results []Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[key] = cacheEntry{results: results, expires: e.now().Add(resultCacheTTL)}
}
