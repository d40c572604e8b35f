package cli

import (
	"fmt"
	"log"

	"github.com/chansereyvath/lessonsearch/config"
	"github.com/chansereyvath/lessonsearch/gateway"
	"github.com/chansereyvath/lessonsearch/indexer"
	"github.com/chansereyvath/lessonsearch/llm"
	"github.com/chansereyvath/lessonsearch/monitor"
	"github.com/chansereyvath/lessonsearch/search"
	"github.com/chansereyvath/lessonsearch/store"
	"github.com/chansereyvath/lessonsearch/textproc"
)

// app is the fully wired retrieval subsystem shared by all subcommands.
type app struct {
	cfg     *config.Config
	store   store.Store
	gateway *gateway.Gateway
	indexer *indexer.Indexer
	engine  *search.Engine
	metrics *monitor.Collector
}

func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.New(cfg.StoreDSN, cfg.Dimension)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedders, chatters := buildProviders(cfg.Providers)
	if len(embedders) == 0 {
		st.Close()
		return nil, fmt.Errorf("no embedding provider configured")
	}

	proc := textproc.New()
	metrics := monitor.NewCollector()

	gcfg := gateway.Config{
		MaxTokens:        cfg.Chunking.MaxTokens,
		OverlapTokens:    cfg.Chunking.OverlapTokens,
		RetryAttempts:    cfg.Resilience.RetryAttempts,
		RetryDelay:       cfg.Resilience.RetryDelay(),
		CircuitThreshold: cfg.Resilience.CircuitThreshold,
		CircuitCooldown:  cfg.Resilience.CircuitCooldown(),
		LRUCapacity:      cfg.Cache.LRUCapacity,
		SharedTTL:        cfg.Cache.SharedTTL(),
	}
	gw := gateway.New(gcfg, proc, embedders, chatters, st, metrics)

	icfg := indexer.Config{
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	}
	ix := indexer.New(icfg, st, gw, proc, metrics)
	eng := search.NewEngine(st, gw, cfg.Fusion, metrics)

	return &app{
		cfg:     cfg,
		store:   st,
		gateway: gw,
		indexer: ix,
		engine:  eng,
		metrics: metrics,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("[cli] close store: %v", err)
	}
}

// buildProviders constructs the gateway chains in config order. Anthropic
// has no embedding API, so it only joins the chat chain.
func buildProviders(configs []config.ProviderConfig) ([]llm.EmbeddingProvider, []llm.ChatProvider) {
	var embedders []llm.EmbeddingProvider
	var chatters []llm.ChatProvider

	for _, pc := range configs {
		ccfg := llm.ClientConfig{
			APIKey:  pc.APIKey(),
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		}
		switch pc.Type {
		case "openai":
			p := llm.NewOpenAIProvider(ccfg, pc.ChatModel)
			embedders = append(embedders, p)
			chatters = append(chatters, p)
		case "ollama":
			p := llm.NewOllamaProvider(ccfg, pc.ChatModel)
			embedders = append(embedders, p)
			chatters = append(chatters, p)
		case "anthropic":
			chatters = append(chatters, llm.NewAnthropicProvider(ccfg, pc.ChatModel))
		default:
			log.Printf("[cli] unknown provider type %q, skipping", pc.Type)
		}
	}
	return embedders, chatters
}
