// Package llm defines the embedding and chat provider contracts and the
// concrete clients for OpenAI, Ollama and Anthropic.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyResponse is returned when a provider answers successfully at the
// transport level but carries no usable payload.
var ErrEmptyResponse = errors.New("provider returned empty response")

// EmbeddingProvider turns text into a fixed-length vector. Vectors are only
// comparable to vectors produced by the same provider and model.
type EmbeddingProvider interface {
	// Embed returns the embedding for text. A nil or empty vector is an error.
	Embed(ctx context.Context, text string) ([]float64, error)
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
	// Model returns the embedding model identifier, used in cache keys.
	Model() string
}

// ChatProvider generates a completion from a system and user prompt.
type ChatProvider interface {
	// Complete returns the completion text. An empty string is an error.
	Complete(ctx context.Context, system, user string) (string, error)
	// Name returns the provider identifier.
	Name() string
}

// ClientConfig carries the per-provider connection settings.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (c ClientConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.Timeout
}
