// internal/providers/anthropic.go
package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicClient struct {
	client *anthropic.Client
	model  string
	costs  CostCalculator
}

// NewAnthropicClient creates the Anthropic messages adapter.
func NewAnthropicClient(apiKey, model string, costs CostCalculator) Client {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicClient{
		client: &client,
		model:  model,
		costs:  costs,
	}
}

func (c *anthropicClient) Name() string  { return ProviderAnthropic }
func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) RunQuery(ctx context.Context, query string) (*Response, error) {
	messages := []anthropic.MessageParam{{
		Content: []anthropic.ContentBlockParamUnion{{
			OfText: &anthropic.TextBlockParam{Text: query},
		}},
		Role: anthropic.MessageParamRoleUser,
	}}

	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   2000,
		Messages:    messages,
		Temperature: anthropic.Float(0.7),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic call failed: %w", err)
	}

	inputTokens := int(response.Usage.InputTokens)
	outputTokens := int(response.Usage.OutputTokens)

	return &Response{
		Text:         extractAnthropicText(*response),
		Model:        c.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      c.costs.CalculateCost(ProviderAnthropic, c.model, inputTokens, outputTokens, false),
	}, nil
}

func extractAnthropicText(response anthropic.Message) string {
	var textParts []string
	for _, block := range response.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts = append(textParts, variant.Text)
		}
	}
	return strings.Join(textParts, "")
}
