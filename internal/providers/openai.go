// internal/providers/openai.go
package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAISystemPrompt = "You are a helpful assistant answering a user's product research question. " +
	"Answer the way you would in a normal chat: name the specific products, companies, and services that best fit the question."

type openAIClient struct {
	client *openai.Client
	model  string
	costs  CostCalculator
}

// NewOpenAIClient creates the OpenAI chat-completion adapter.
func NewOpenAIClient(apiKey, model string, costs CostCalculator) Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openAIClient{
		client: &client,
		model:  model,
		costs:  costs,
	}
}

func (c *openAIClient) Name() string  { return ProviderOpenAI }
func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) RunQuery(ctx context.Context, query string) (*Response, error) {
	chatResponse, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISystemPrompt),
			openai.UserMessage(query),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return nil, fmt.Errorf("openai call failed: %w", err)
	}

	if len(chatResponse.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned from OpenAI")
	}

	inputTokens := int(chatResponse.Usage.PromptTokens)
	outputTokens := int(chatResponse.Usage.CompletionTokens)

	return &Response{
		Text:         chatResponse.Choices[0].Message.Content,
		Model:        c.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      c.costs.CalculateCost(ProviderOpenAI, c.model, inputTokens, outputTokens, false),
	}, nil
}
