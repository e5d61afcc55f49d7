// internal/providers/gemini.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type geminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	costs      CostCalculator
	httpClient *http.Client
}

// NewGeminiClient creates the Gemini generateContent adapter.
func NewGeminiClient(apiKey, model string, costs CostCalculator) Client {
	return &geminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		costs:   costs,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *geminiClient) Name() string  { return ProviderGemini }
func (c *geminiClient) Model() string { return c.model }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *geminiClient) RunQuery(ctx context.Context, query string) (*Response, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: query}}},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned from Gemini")
	}

	var textParts []string
	for _, part := range parsed.Candidates[0].Content.Parts {
		textParts = append(textParts, part.Text)
	}

	inputTokens := parsed.UsageMetadata.PromptTokenCount
	outputTokens := parsed.UsageMetadata.CandidatesTokenCount

	return &Response{
		Text:         strings.Join(textParts, ""),
		Model:        c.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      c.costs.CalculateCost(ProviderGemini, c.model, inputTokens, outputTokens, false),
	}, nil
}
