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

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements ChatProvider against the Anthropic messages
// API. Anthropic offers no embedding endpoint, so it only serves the chat
// chain.
type AnthropicProvider struct {
	apiKey    string
	baseURL   string
	chatModel string
	client    *http.Client
}

// NewAnthropicProvider creates a provider for the given config.
func NewAnthropicProvider(cfg ClientConfig, chatModel string) *AnthropicProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if chatModel == "" {
		chatModel = "claude-3-5-haiku-latest"
	}

	return &AnthropicProvider{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		chatModel: chatModel,
		client:    &http.Client{Timeout: cfg.timeout()},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete generates a completion via the messages API.
func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := map[string]any{
		"model":      p.chatModel,
		"max_tokens": 4096,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}
	if system != "" {
		reqBody["system"] = system
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
