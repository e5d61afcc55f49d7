// internal/providers/perplexity.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type perplexityClient struct {
	apiKey     string
	model      string
	baseURL    string
	costs      CostCalculator
	httpClient *http.Client
}

// NewPerplexityClient creates the Perplexity chat-completions adapter.
// Perplexity exposes an OpenAI-compatible wire format but its SDK coverage
// is thin, so this adapter speaks HTTP directly.
func NewPerplexityClient(apiKey, model string, costs CostCalculator) Client {
	return &perplexityClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.perplexity.ai",
		costs:   costs,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *perplexityClient) Name() string  { return ProviderPerplexity }
func (c *perplexityClient) Model() string { return c.model }

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *perplexityClient) RunQuery(ctx context.Context, query string) (*Response, error) {
	payload := perplexityRequest{
		Model: c.model,
		Messages: []perplexityMessage{
			{Role: "user", Content: query},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("perplexity API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed perplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned from Perplexity")
	}

	return &Response{
		Text:         parsed.Choices[0].Message.Content,
		Model:        c.model,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		CostUSD:      c.costs.CalculateCost(ProviderPerplexity, c.model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, true),
	}, nil
}
