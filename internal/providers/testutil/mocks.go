// internal/providers/testutil/mocks.go
package testutil

import (
	"context"
	"sync"

	"github.com/brandview-ai/brandview-workflows/internal/providers"
)

// MockClient is a scriptable providers.Client for tests.
type MockClient struct {
	mu           sync.Mutex
	ProviderName string
	ModelName    string
	RunQueryFunc func(ctx context.Context, query string) (*providers.Response, error)
	calls        int
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

func (m *MockClient) RunQuery(ctx context.Context, query string) (*providers.Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RunQueryFunc != nil {
		return m.RunQueryFunc(ctx, query)
	}
	return &providers.Response{
		Text:         "mock response for: " + query,
		Model:        m.Model(),
		InputTokens:  10,
		OutputTokens: 50,
		CostUSD:      0.001,
	}, nil
}

// Calls reports how many times RunQuery was invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockCostCalculator is a providers.CostCalculator returning a fixed cost.
type MockCostCalculator struct {
	CalculateCostFunc func(provider, model string, inputTokens, outputTokens int, webSearch bool) float64
}

func (m *MockCostCalculator) CalculateCost(provider, model string, inputTokens, outputTokens int, webSearch bool) float64 {
	if m.CalculateCostFunc != nil {
		return m.CalculateCostFunc(provider, model, inputTokens, outputTokens, webSearch)
	}
	return 0.0015
}
