// services/query_generator.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/models"
	"github.com/brandview-ai/brandview-workflows/internal/resilience"
)

type queryGeneratorService struct {
	cfg          *config.Config
	openAIClient *openai.Client
	costService  CostService
	budget       *resilience.BudgetTracker
	logger       *zap.Logger
}

// Generate the JSON schema at initialization time
var queryGenerationSchema = GenerateSchema[QueryGenerationResponse]()

// NewQueryGeneratorService creates the generator. Without an OpenAI key it
// degrades to the deterministic template generator so audits still run.
// Generation spend draws on the same per-provider budget as audit calls.
func NewQueryGeneratorService(cfg *config.Config, costService CostService, budget *resilience.BudgetTracker, logger *zap.Logger) QueryGeneratorService {
	service := &queryGeneratorService{
		cfg:         cfg,
		costService: costService,
		budget:      budget,
		logger:      logger.Named("QueryGenerator"),
	}
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		service.openAIClient = &client
	}
	return service
}

// GenerateQueries produces at most job.QueryCount queries for the company.
// The LLM path is preferred; any failure there falls back to templates
// rather than failing the audit.
func (s *queryGeneratorService) GenerateQueries(ctx context.Context, job *models.AuditJob, company *models.Company) ([]*models.Query, error) {
	count := job.QueryCount
	if count <= 0 {
		return nil, fmt.Errorf("invalid query count %d", count)
	}

	if s.openAIClient != nil {
		queries, err := s.generateWithLLM(ctx, job, company, count)
		if err == nil && len(queries) > 0 {
			return queries, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("LLM query generation failed, using templates",
				zap.String("job_id", job.AuditJobID.String()),
				zap.Error(err))
		}
	}

	return s.templateQueries(job, company, count), nil
}

func (s *queryGeneratorService) generateWithLLM(ctx context.Context, job *models.AuditJob, company *models.Company, count int) ([]*models.Query, error) {
	prompt := s.buildGenerationPrompt(company, count)

	estimate := s.costService.CalculateCost("openai", "gpt-4.1",
		len(prompt)/4+estimatePromptOverhead, estimateOutputTokens, false)
	if s.budget != nil {
		if err := s.budget.Reserve("openai", estimate); err != nil {
			return nil, fmt.Errorf("query generation: %w", err)
		}
	}

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "audit_query_generation",
		Description: openai.String("Generate search-style queries for a brand visibility audit"),
		Schema:      queryGenerationSchema,
		Strict:      openai.Bool(true),
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a search behavior analyst. Generate the natural-language queries a prospective customer would ask an AI assistant when researching this market. Queries must be neutral: never presume the company is the answer."),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel("gpt-4.1"),
		Temperature: openai.Float(0.7),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
	}

	chatResponse, err := s.openAIClient.Chat.Completions.New(ctx, params)
	if err != nil {
		if s.budget != nil {
			s.budget.Release("openai", estimate)
		}
		return nil, fmt.Errorf("query generation call: %w", err)
	}
	if len(chatResponse.Choices) == 0 {
		if s.budget != nil {
			s.budget.Release("openai", estimate)
		}
		return nil, fmt.Errorf("no response choices returned")
	}

	cost := s.costService.CalculateCost("openai", "gpt-4.1",
		int(chatResponse.Usage.PromptTokens), int(chatResponse.Usage.CompletionTokens), false)
	if s.budget != nil {
		s.budget.Commit("openai", estimate, cost)
	}
	s.logger.Debug("generated queries via LLM",
		zap.String("job_id", job.AuditJobID.String()),
		zap.Float64("cost_usd", cost))

	var generated QueryGenerationResponse
	if err := json.Unmarshal([]byte(chatResponse.Choices[0].Message.Content), &generated); err != nil {
		return nil, fmt.Errorf("parse generation response: %w", err)
	}

	now := time.Now()
	queries := make([]*models.Query, 0, count)
	for _, item := range generated.Queries {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		if len(queries) >= count {
			break
		}
		queries = append(queries, &models.Query{
			QueryID:    uuid.New(),
			AuditJobID: job.AuditJobID,
			Text:       text,
			Category:   normalizeLabel(item.Category, "discovery"),
			Intent:     normalizeLabel(item.Intent, "informational"),
			Priority:   clampPriority(item.Priority),
			CreatedAt:  now,
		})
	}
	return queries, nil
}

func (s *queryGeneratorService) buildGenerationPrompt(company *models.Company, count int) string {
	competitors := "none listed"
	if len(company.Competitors) > 0 {
		competitors = strings.Join(company.Competitors, ", ")
	}
	return fmt.Sprintf(`## Company: %s
## Domain: %s
## Industry: %s
## Known competitors: %s

Generate exactly %d queries spread across these categories: discovery
("best X for Y"), comparison (head-to-head against a competitor),
alternatives, reputation (reviews, trustworthiness), and pricing. Assign
each query an intent and a 1-5 priority.`,
		company.Name, company.Domain, company.Industry, competitors, count)
}

// queryTemplates drives the deterministic fallback. Placeholders:
// {industry}, {name}, {competitor}.
var queryTemplates = []struct {
	text     string
	category string
	intent   string
	priority int
}{
	{"best {industry} tools in 2026", "discovery", "commercial", 5},
	{"top {industry} companies", "discovery", "commercial", 5},
	{"{name} vs {competitor}", "comparison", "commercial", 4},
	{"alternatives to {name}", "alternatives", "commercial", 4},
	{"is {name} worth it", "reputation", "informational", 3},
	{"{name} reviews", "reputation", "informational", 3},
	{"how much does {name} cost", "pricing", "transactional", 3},
	{"what is the best alternative to {competitor}", "alternatives", "commercial", 2},
	{"how does {name} work", "discovery", "informational", 2},
	{"{industry} software comparison", "comparison", "commercial", 2},
}

// templateQueries expands the template table against the company context.
// Deterministic: same company and count always produce the same queries.
func (s *queryGeneratorService) templateQueries(job *models.AuditJob, company *models.Company, count int) []*models.Query {
	competitors := company.Competitors
	if len(competitors) == 0 {
		competitors = []string{"the market leader"}
	}

	now := time.Now()
	queries := make([]*models.Query, 0, count)
	competitorIndex := 0

	for len(queries) < count {
		template := queryTemplates[len(queries)%len(queryTemplates)]

		text := strings.NewReplacer(
			"{industry}", strings.ToLower(company.Industry),
			"{name}", company.Name,
			"{competitor}", competitors[competitorIndex%len(competitors)],
		).Replace(template.text)
		if strings.Contains(template.text, "{competitor}") {
			competitorIndex++
		}

		queries = append(queries, &models.Query{
			QueryID:    uuid.New(),
			AuditJobID: job.AuditJobID,
			Text:       text,
			Category:   template.category,
			Intent:     template.intent,
			Priority:   template.priority,
			CreatedAt:  now,
		})
	}
	return queries
}

func normalizeLabel(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func clampPriority(priority int) int {
	if priority < 1 {
		return 1
	}
	if priority > 5 {
		return 5
	}
	return priority
}
