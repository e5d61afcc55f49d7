package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandview-ai/brandview-workflows/internal/config"
)

type fixedCost struct{}

func (fixedCost) CalculateCost(provider, model string, inputTokens, outputTokens int, webSearch bool) float64 {
	return 0.001
}

func TestNewClient(t *testing.T) {
	cfg := &config.Config{
		OpenAIAPIKey:     "sk-test",
		AnthropicAPIKey:  "ak-test",
		PerplexityAPIKey: "pk-test",
		GeminiAPIKey:     "gk-test",
	}

	tests := []struct {
		name         string
		provider     string
		expectName   string
		expectModel  string
		expectErrMsg string
	}{
		{name: "openai", provider: "openai", expectName: ProviderOpenAI, expectModel: "gpt-4.1"},
		{name: "openai mixed case", provider: "OpenAI", expectName: ProviderOpenAI, expectModel: "gpt-4.1"},
		{name: "anthropic", provider: "anthropic", expectName: ProviderAnthropic, expectModel: "claude-sonnet-4-20250514"},
		{name: "perplexity", provider: "perplexity", expectName: ProviderPerplexity, expectModel: "sonar"},
		{name: "gemini", provider: "gemini", expectName: ProviderGemini, expectModel: "gemini-2.0-flash"},
		{name: "unknown", provider: "mistral", expectErrMsg: "unsupported provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.provider, cfg, fixedCost{})
			if tt.expectErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectName, client.Name())
			assert.Equal(t, tt.expectModel, client.Model())
		})
	}
}

func TestNewClientMissingKey(t *testing.T) {
	cfg := &config.Config{} // no keys at all

	for _, provider := range []string{"openai", "anthropic", "perplexity", "gemini"} {
		t.Run(provider, func(t *testing.T) {
			_, err := NewClient(provider, cfg, fixedCost{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "API key is empty")
		})
	}
}

func TestNewClientsRecordsSkips(t *testing.T) {
	cfg := &config.Config{OpenAIAPIKey: "sk-test"}

	clients, skipped := NewClients([]string{"openai", "gemini"}, cfg, fixedCost{})

	require.Len(t, clients, 1)
	assert.Contains(t, clients, ProviderOpenAI)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped["gemini"], "API key is empty")
}
