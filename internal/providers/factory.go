// internal/providers/factory.go
package providers

import (
	"fmt"
	"strings"

	"github.com/brandview-ai/brandview-workflows/internal/config"
)

// Default model per provider. Overridable per audit later if the product
// grows model selection; today audits run each provider's default.
var defaultModels = map[string]string{
	ProviderOpenAI:     "gpt-4.1",
	ProviderAnthropic:  "claude-sonnet-4-20250514",
	ProviderPerplexity: "sonar",
	ProviderGemini:     "gemini-2.0-flash",
}

// NewClient creates the adapter for the named provider.
func NewClient(name string, cfg *config.Config, costs CostCalculator) (Client, error) {
	switch strings.ToLower(name) {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is empty in config")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, defaultModels[ProviderOpenAI], costs), nil

	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key is empty in config")
		}
		return NewAnthropicClient(cfg.AnthropicAPIKey, defaultModels[ProviderAnthropic], costs), nil

	case ProviderPerplexity:
		if cfg.PerplexityAPIKey == "" {
			return nil, fmt.Errorf("Perplexity API key is empty in config")
		}
		return NewPerplexityClient(cfg.PerplexityAPIKey, defaultModels[ProviderPerplexity], costs), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("Gemini API key is empty in config")
		}
		return NewGeminiClient(cfg.GeminiAPIKey, defaultModels[ProviderGemini], costs), nil
	}

	return nil, fmt.Errorf("unsupported provider: %s", name)
}

// NewClients builds adapters for every requested provider, skipping the
// ones that cannot be configured. The skipped map records why each absent
// provider was left out so the caller can persist the omission.
func NewClients(names []string, cfg *config.Config, costs CostCalculator) (clients map[string]Client, skipped map[string]string) {
	clients = make(map[string]Client, len(names))
	skipped = make(map[string]string)

	for _, name := range names {
		client, err := NewClient(name, cfg, costs)
		if err != nil {
			skipped[strings.ToLower(name)] = err.Error()
			continue
		}
		clients[client.Name()] = client
	}
	return clients, skipped
}
