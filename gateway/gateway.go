// Package gateway turns text into vectors and completions by trying
// configured providers in priority order, with per-provider retry, circuit
// breaking and two-tier embedding caching.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chansereyvath/lessonsearch/llm"
	"github.com/chansereyvath/lessonsearch/monitor"
	"github.com/chansereyvath/lessonsearch/textproc"
)

// ErrCircuitOpen is the fast-fail condition for an open circuit. It is
// distinguishable from a provider failure and never counts toward the
// failure threshold.
var ErrCircuitOpen = errors.New("circuit open")

// SharedCache is the optional shared embedding cache tier, typically backed
// by the chunk store. Any error on read is treated as a miss.
type SharedCache interface {
	CachedEmbedding(ctx context.Context, key string) ([]float64, error)
	PutCachedEmbedding(ctx context.Context, key string, vec []float64, ttl time.Duration) error
}

// Config carries the gateway's failure-handling and caching knobs.
type Config struct {
	MaxTokens        int           // long-text split threshold
	OverlapTokens    int           // overlap between long-text sub-chunks
	RetryAttempts    int           // attempts per provider call
	RetryDelay       time.Duration // initial backoff delay, doubles per retry
	CircuitThreshold int           // consecutive failures before opening
	CircuitCooldown  time.Duration // how long an open circuit rejects calls
	LRUCapacity      int           // in-process cache entries
	SharedTTL        time.Duration // shared cache entry lifetime
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:        textproc.DefaultMaxTokens,
		OverlapTokens:    textproc.DefaultOverlapTokens,
		RetryAttempts:    3,
		RetryDelay:       500 * time.Millisecond,
		CircuitThreshold: 3,
		CircuitCooldown:  60 * time.Second,
		LRUCapacity:      2048,
		SharedTTL:        24 * time.Hour,
	}
}

// Gateway holds the ordered provider chains and the shared mutable caches.
// Construct once at process start; all methods are safe for concurrent use.
type Gateway struct {
	cfg       Config
	proc      *textproc.Processor
	embedders []llm.EmbeddingProvider
	chatters  []llm.ChatProvider
	shared    SharedCache // may be nil
	local     *lruCache
	circuit   *circuitBreaker
	metrics   *monitor.Collector
	sleep     func(ctx context.Context, d time.Duration) error // swappable for tests
}

// New creates a gateway over the given provider chains. shared and metrics
// may be nil.
func New(cfg Config, proc *textproc.Processor, embedders []llm.EmbeddingProvider, chatters []llm.ChatProvider, shared SharedCache, metrics *monitor.Collector) *Gateway {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.CircuitThreshold <= 0 {
		cfg.CircuitThreshold = 3
	}
	if cfg.CircuitCooldown <= 0 {
		cfg.CircuitCooldown = 60 * time.Second
	}
	if cfg.SharedTTL <= 0 {
		cfg.SharedTTL = 24 * time.Hour
	}

	return &Gateway{
		cfg:       cfg,
		proc:      proc,
		embedders: embedders,
		chatters:  chatters,
		shared:    shared,
		local:     newLRUCache(cfg.LRUCapacity),
		circuit:   newCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitCooldown),
		metrics:   metrics,
		sleep:     sleepCtx,
	}
}

// Embed returns the embedding for text, or nil when the text is not
// embeddable or every provider failed. Callers must treat nil as
// "embedding unavailable", not as an error.
func (g *Gateway) Embed(ctx context.Context, text string) []float64 {
	cleaned := g.proc.Clean(text)
	if cleaned == "" {
		return nil
	}

	if vec, key, hit := g.cachedVector(ctx, cleaned); hit {
		return vec
	} else if key != "" {
		g.metrics.Inc(monitor.CacheMisses)
	}

	for _, p := range g.embedders {
		opKey := p.Name() + "_embedding"
		if !g.circuit.allow(opKey) {
			g.metrics.Inc(monitor.CircuitFastFails)
			continue
		}

		var vec []float64
		err := g.retryWithBackoff(ctx, opKey, func() error {
			v, err := p.Embed(ctx, cleaned)
			if err != nil {
				return err
			}
			if len(v) == 0 {
				return llm.ErrEmptyResponse
			}
			vec = v
			return nil
		})
		if err != nil {
			log.Printf("[gateway] embedding via %s failed: %v", p.Name(), err)
			continue
		}

		g.storeVector(ctx, cacheKey(p.Model(), cleaned), vec)
		return vec
	}

	log.Printf("[gateway] embedding unavailable, all providers failed")
	return nil
}

// EmbedLongText embeds text of any length. Text over the token limit is
// split into overlapping sub-chunks which are embedded independently and
// combined by element-wise mean. Returns nil when no sub-chunk could be
// embedded.
func (g *Gateway) EmbedLongText(ctx context.Context, text string) []float64 {
	if g.proc.CountTokens(text) <= g.cfg.MaxTokens {
		return g.Embed(ctx, text)
	}

	var vecs [][]float64
	for _, chunk := range g.proc.ChunkByTokens(text, g.cfg.MaxTokens, g.cfg.OverlapTokens) {
		if g.proc.CountTokens(chunk) > g.cfg.MaxTokens {
			continue
		}
		if vec := g.Embed(ctx, chunk); vec != nil {
			vecs = append(vecs, vec)
		}
	}

	return meanVector(vecs)
}

// Chat returns a completion from the first chat provider to succeed. The
// second return is false when no provider is configured or all failed.
func (g *Gateway) Chat(ctx context.Context, system, user string) (string, bool) {
	for _, p := range g.chatters {
		opKey := p.Name() + "_chat"
		if !g.circuit.allow(opKey) {
			g.metrics.Inc(monitor.CircuitFastFails)
			continue
		}

		var content string
		err := g.retryWithBackoff(ctx, opKey, func() error {
			c, err := p.Complete(ctx, system, user)
			if err != nil {
				return err
			}
			if c == "" {
				return llm.ErrEmptyResponse
			}
			content = c
			return nil
		})
		if err != nil {
			log.Printf("[gateway] chat via %s failed: %v", p.Name(), err)
			continue
		}
		return content, true
	}
	return "", false
}

// retryWithBackoff runs fn up to the configured attempt budget with
// exponentially growing delays. Every failure escalates the circuit for
// opKey; a circuit opened mid-budget fails the remaining attempts fast.
func (g *Gateway) retryWithBackoff(ctx context.Context, opKey string, fn func() error) error {
	delay := g.cfg.RetryDelay
	var lastErr error

	for attempt := 0; attempt < g.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}

		if !g.circuit.allow(opKey) {
			return fmt.Errorf("%s: %w", opKey, ErrCircuitOpen)
		}

		g.metrics.Inc(monitor.ProviderCalls)
		err := fn()
		if err == nil {
			g.circuit.recordSuccess(opKey)
			return nil
		}

		lastErr = err
		g.metrics.Inc(monitor.ProviderFailures)
		if g.circuit.recordFailure(opKey) {
			g.metrics.Inc(monitor.CircuitOpens)
			log.Printf("[gateway] circuit opened for %s", opKey)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s: all %d attempts failed: %w", opKey, g.cfg.RetryAttempts, lastErr)
}

// cachedVector checks the shared tier then the local LRU, one key per
// configured provider model in priority order. The returned key is the
// primary provider's key ("" when no provider is configured).
func (g *Gateway) cachedVector(ctx context.Context, cleaned string) ([]float64, string, bool) {
	var primaryKey string
	for i, p := range g.embedders {
		key := cacheKey(p.Model(), cleaned)
		if i == 0 {
			primaryKey = key
		}

		if g.shared != nil {
			if vec, err := g.shared.CachedEmbedding(ctx, key); err == nil && len(vec) > 0 {
				g.metrics.Inc(monitor.CacheHitsShared)
				g.local.put(key, vec)
				return vec, key, true
			}
		}
		if vec, ok := g.local.get(key); ok {
			g.metrics.Inc(monitor.CacheHitsLocal)
			return vec, key, true
		}
	}
	return nil, primaryKey, false
}

func (g *Gateway) storeVector(ctx context.Context, key string, vec []float64) {
	g.local.put(key, vec)
	if g.shared != nil {
		if err := g.shared.PutCachedEmbedding(ctx, key, vec, g.cfg.SharedTTL); err != nil {
			log.Printf("[gateway] shared cache write failed: %v", err)
		}
	}
}

// cacheKey hashes the model identifier together with the normalized text so
// vectors from different models are never conflated.
func cacheKey(model, cleaned string) string {
	sum := sha256.Sum256([]byte(model + "::" + cleaned))
	return hex.EncodeToString(sum[:])
}

// meanVector combines vectors by element-wise mean. Vectors with mismatched
// lengths are skipped against the first vector's dimension.
func meanVector(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}

	dim := len(vecs[0])
	sum := make([]float64, dim)
	count := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += v[i]
		}
		count++
	}
	if count == 0 {
		return nil
	}

	for i := range sum {
		sum[i] /= float64(count)
	}
	return sum
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
