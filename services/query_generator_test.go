// services/query_generator_test.go
package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/models"
	"github.com/brandview-ai/brandview-workflows/internal/resilience"
)

func newTemplateGenerator() QueryGeneratorService {
	// No OpenAI key configured: the generator must use the template path.
	return NewQueryGeneratorService(&config.Config{}, NewCostService(), nil, zap.NewNop())
}

func testCompany() *models.Company {
	return &models.Company{
		CompanyID:   uuid.New(),
		Name:        "Acme",
		Domain:      "acme.com",
		Industry:    "Project Management",
		Competitors: []string{"YCorp", "ZCorp"},
	}
}

func testJob(queryCount int) *models.AuditJob {
	return &models.AuditJob{
		AuditJobID: uuid.New(),
		CompanyID:  uuid.New(),
		QueryCount: queryCount,
		Status:     models.JobStatusProcessing,
	}
}

func TestGenerateQueriesTemplateFallback(t *testing.T) {
	generator := newTemplateGenerator()
	job := testJob(6)

	queries, err := generator.GenerateQueries(context.Background(), job, testCompany())
	require.NoError(t, err)
	require.Len(t, queries, 6)

	assert.Equal(t, "best project management tools in 2026", queries[0].Text)
	assert.Equal(t, "discovery", queries[0].Category)
	assert.Equal(t, "Acme vs YCorp", queries[2].Text)
	assert.Equal(t, "comparison", queries[2].Category)
	assert.Equal(t, "alternatives to Acme", queries[3].Text)

	for _, query := range queries {
		assert.Equal(t, job.AuditJobID, query.AuditJobID)
		assert.NotEmpty(t, query.Text)
		assert.NotEmpty(t, query.Category)
		assert.NotEmpty(t, query.Intent)
		assert.GreaterOrEqual(t, query.Priority, 1)
		assert.LessOrEqual(t, query.Priority, 5)
	}
}

func TestGenerateQueriesRespectsCount(t *testing.T) {
	generator := newTemplateGenerator()

	for _, count := range []int{1, 5, 25} {
		queries, err := generator.GenerateQueries(context.Background(), testJob(count), testCompany())
		require.NoError(t, err)
		assert.Len(t, queries, count)
	}
}

func TestGenerateQueriesRotatesCompetitors(t *testing.T) {
	generator := newTemplateGenerator()

	// 20 queries cycle the template table twice; the comparison slot must
	// alternate between the two competitors.
	queries, err := generator.GenerateQueries(context.Background(), testJob(20), testCompany())
	require.NoError(t, err)

	assert.Equal(t, "Acme vs YCorp", queries[2].Text)
	assert.Equal(t, "what is the best alternative to ZCorp", queries[7].Text)
}

func TestGenerateQueriesNoCompetitors(t *testing.T) {
	generator := newTemplateGenerator()
	company := testCompany()
	company.Competitors = nil

	queries, err := generator.GenerateQueries(context.Background(), testJob(4), company)
	require.NoError(t, err)
	assert.Equal(t, "Acme vs the market leader", queries[2].Text)
}

func TestGenerateQueriesInvalidCount(t *testing.T) {
	generator := newTemplateGenerator()

	_, err := generator.GenerateQueries(context.Background(), testJob(0), testCompany())
	assert.Error(t, err)
}

func TestClampPriority(t *testing.T) {
	assert.Equal(t, 1, clampPriority(-3))
	assert.Equal(t, 1, clampPriority(0))
	assert.Equal(t, 3, clampPriority(3))
	assert.Equal(t, 5, clampPriority(9))
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "discovery", normalizeLabel("", "discovery"))
	assert.Equal(t, "comparison", normalizeLabel("  Comparison ", "discovery"))
}

func newLLMGenerator(t *testing.T, handler http.HandlerFunc, budget *resilience.BudgetTracker) *queryGeneratorService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := openai.NewClient(
		option.WithAPIKey("sk-test"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	return &queryGeneratorService{
		cfg:          &config.Config{OpenAIAPIKey: "sk-test"},
		openAIClient: &client,
		costService:  NewCostService(),
		budget:       budget,
		logger:       zap.NewNop(),
	}
}

const generationCompletion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {
			"role": "assistant",
			"content": "{\"queries\":[{\"text\":\"best project management tools\",\"category\":\"discovery\",\"intent\":\"commercial\",\"priority\":5}]}"
		}
	}],
	"usage": {"prompt_tokens": 2000, "completion_tokens": 1500, "total_tokens": 3500}
}`

func TestGenerateQueriesRecordsLLMSpend(t *testing.T) {
	budget := resilience.NewBudgetTracker(50, 0)
	generator := newLLMGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(generationCompletion))
	}, budget)

	queries, err := generator.GenerateQueries(context.Background(), testJob(3), testCompany())
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "best project management tools", queries[0].Text)

	// The ledger carries the call's actual cost, not the pre-call estimate.
	expected := NewCostService().CalculateCost("openai", "gpt-4.1", 2000, 1500, false)
	assert.InDelta(t, expected, budget.Spent("openai"), 1e-9)
}

func TestGenerateQueriesBudgetExhaustedSkipsLLM(t *testing.T) {
	var calls int32
	budget := resilience.NewBudgetTracker(0.0000001, 0)
	generator := newLLMGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, budget)

	queries, err := generator.GenerateQueries(context.Background(), testJob(4), testCompany())
	require.NoError(t, err)
	assert.Len(t, queries, 4, "template fallback still produces queries")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no completion call once the ceiling is hit")
}

func TestGenerateQueriesReleasesReservationOnFailure(t *testing.T) {
	budget := resilience.NewBudgetTracker(50, 0)
	generator := newLLMGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}, budget)

	queries, err := generator.GenerateQueries(context.Background(), testJob(2), testCompany())
	require.NoError(t, err)
	assert.Len(t, queries, 2)
	assert.InDelta(t, 0, budget.Spent("openai"), 1e-9)
}
