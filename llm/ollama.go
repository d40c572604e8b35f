package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider implements EmbeddingProvider and ChatProvider against a
// local Ollama instance, using its native embedding API and the
// OpenAI-compatible chat endpoint.
type OllamaProvider struct {
	baseURL    string
	embedModel string
	chatModel  string
	client     *http.Client
}

// NewOllamaProvider creates a provider for the Ollama host in cfg.BaseURL.
// Both "/v1"-suffixed and bare hosts are accepted.
func NewOllamaProvider(cfg ClientConfig, chatModel string) *OllamaProvider {
	host := strings.TrimSuffix(cfg.BaseURL, "/")
	host = strings.TrimSuffix(host, "/v1")
	if host == "" {
		host = "http://localhost:11434"
	}

	embedModel := cfg.Model
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	if chatModel == "" {
		chatModel = "llama3.2"
	}

	return &OllamaProvider{
		baseURL:    host,
		embedModel: embedModel,
		chatModel:  chatModel,
		client:     &http.Client{Timeout: cfg.timeout()},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Model() string { return p.embedModel }

// Embed generates an embedding using Ollama's native /api/embed endpoint.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	reqBody := map[string]any{
		"model": p.embedModel,
		"input": text,
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := p.post(ctx, "/api/embed", reqBody, &result); err != nil {
		return nil, err
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, ErrEmptyResponse
	}
	return result.Embeddings[0], nil
}

// Complete generates a completion using the OpenAI-compatible endpoint.
func (p *OllamaProvider) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := map[string]any{
		"model": p.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := p.post(ctx, "/v1/chat/completions", reqBody, &result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return result.Choices[0].Message.Content, nil
}

func (p *OllamaProvider) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
