// internal/providers/provider.go
package providers

import "context"

// Response is the uniform result of one provider call.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Client is the uniform call interface to one external AI-model provider.
// Each adapter isolates the provider's wire format behind this shape.
type Client interface {
	Name() string
	Model() string
	RunQuery(ctx context.Context, query string) (*Response, error)
}

// CostCalculator prices one call from its token usage. Implemented by the
// cost service; declared here so adapters stay decoupled from it.
type CostCalculator interface {
	CalculateCost(provider, model string, inputTokens, outputTokens int, webSearch bool) float64
}

// Known provider names accepted by the factory.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
	ProviderGemini     = "gemini"
)
