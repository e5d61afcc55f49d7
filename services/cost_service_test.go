// services/cost_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	service := NewCostService()

	tests := []struct {
		name         string
		provider     string
		model        string
		inputTokens  int
		outputTokens int
		webSearch    bool
		want         float64
	}{
		{
			name:         "gpt-4.1 token pricing",
			provider:     "openai",
			model:        "gpt-4.1",
			inputTokens:  1_000_000,
			outputTokens: 1_000_000,
			want:         15.00,
		},
		{
			name:         "claude sonnet token pricing",
			provider:     "anthropic",
			model:        "claude-sonnet-4-20250514",
			inputTokens:  500_000,
			outputTokens: 100_000,
			want:         3.00,
		},
		{
			name:         "gemini flash is cheap",
			provider:     "gemini",
			model:        "gemini-2.0-flash",
			inputTokens:  1_000_000,
			outputTokens: 1_000_000,
			want:         0.50,
		},
		{
			name:         "unknown model defaults to gpt-4.1 pricing",
			provider:     "openai",
			model:        "some-future-model",
			inputTokens:  1_000_000,
			outputTokens: 0,
			want:         3.00,
		},
		{
			name:         "perplexity web search surcharge",
			provider:     "perplexity",
			model:        "sonar",
			inputTokens:  0,
			outputTokens: 0,
			webSearch:    true,
			want:         0.008,
		},
		{
			name:         "zero tokens zero cost",
			provider:     "openai",
			model:        "gpt-4.1",
			inputTokens:  0,
			outputTokens: 0,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.CalculateCost(tt.provider, tt.model, tt.inputTokens, tt.outputTokens, tt.webSearch)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculateCostProviderKeyInference(t *testing.T) {
	service := NewCostService().(*costService)

	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "openai"},
		{"gpt-4.1", "openai"},
		{"claude-sonnet-4-20250514", "anthropic"},
		{"sonar", "perplexity"},
		{"google-gemini", "gemini"},
		{"something-else", "openai"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.want, service.getProviderKey(tt.provider))
		})
	}
}
