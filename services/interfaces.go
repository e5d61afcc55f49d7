// services/interfaces.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

// Store contracts consumed by the pipeline. Satisfied by the repositories
// in internal/store; kept as interfaces so the audit processor tests can
// run against in-memory fakes.

type AuditJobStore interface {
	GetByID(ctx context.Context, jobID uuid.UUID) (*models.AuditJob, error)
	ClaimNextQueued(ctx context.Context) (*models.AuditJob, error)
	SetPhase(ctx context.Context, jobID uuid.UUID, phase string) error
	Finish(ctx context.Context, jobID uuid.UUID, status string, errorMessage *string) error
	CancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error)
}

type CompanyStore interface {
	GetByID(ctx context.Context, companyID uuid.UUID) (*models.Company, error)
}

type QueryStore interface {
	BulkCreate(ctx context.Context, queries []*models.Query) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Query, error)
}

type ResponseStore interface {
	Create(ctx context.Context, response *models.ProviderResponse) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.ProviderResponse, error)
}

type AnalysisStore interface {
	BulkCreate(ctx context.Context, analyses []*models.ResponseAnalysis) error
}

type SummaryStore interface {
	Create(ctx context.Context, summary *models.AuditScoreSummary) error
}

// CostService prices one provider call from its token usage.
type CostService interface {
	CalculateCost(provider, model string, inputTokens, outputTokens int, webSearch bool) float64
}

// QueryGeneratorService produces the bounded set of search-style queries
// an audit runs against every provider.
type QueryGeneratorService interface {
	GenerateQueries(ctx context.Context, job *models.AuditJob, company *models.Company) ([]*models.Query, error)
}

// OrchestratorService runs one query against every configured provider
// concurrently and resolves each provider to exactly one response row.
type OrchestratorService interface {
	ExecuteQuery(ctx context.Context, job *models.AuditJob, query *models.Query) []*models.ProviderResponse
	Providers() []string
	Skipped() map[string]string
}

// ProgressService fans job progress out to subscribers. The audit
// processor owns the event stream for the jobs it runs and closes it when
// the job reaches a terminal state.
type ProgressService interface {
	Subscribe(jobID uuid.UUID) <-chan models.ProgressEvent
	Publish(ctx context.Context, event models.ProgressEvent)
	CloseJob(jobID uuid.UUID)
}

// NotifierService delivers the one completion notification per audit.
type NotifierService interface {
	NotifyCompletion(ctx context.Context, notification *CompletionNotification) error
}

// CompletionNotification is the payload pushed to the webhook collaborator
// when an audit completes.
type CompletionNotification struct {
	AuditJobID      uuid.UUID `json:"audit_job_id"`
	CompanyID       uuid.UUID `json:"company_id"`
	GEOScore        float64   `json:"geo_score"`
	SOVScore        float64   `json:"sov_score"`
	VisibilityScore float64   `json:"visibility_score"`
	ResponseCount   int       `json:"response_count"`
	CompletedAt     time.Time `json:"completed_at"`
}

// GeneratedQuery is one query in the structured generation output.
type GeneratedQuery struct {
	Text     string `json:"text" jsonschema_description:"The search-style query a prospective customer would ask"`
	Category string `json:"category" jsonschema_description:"One of: discovery, comparison, alternatives, reputation, pricing"`
	Intent   string `json:"intent" jsonschema_description:"One of: informational, commercial, transactional, navigational"`
	Priority int    `json:"priority" jsonschema_description:"1 (lowest) to 5 (highest) expected impact on brand visibility"`
}

// QueryGenerationResponse is the structured output shape for LLM-backed
// query generation.
type QueryGenerationResponse struct {
	Queries []GeneratedQuery `json:"queries" jsonschema_description:"Generated audit queries"`
}

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	// Convert to the format expected by OpenAI
	result := map[string]interface{}{
		"type":       "object",
		"properties": schema.Properties,
		"required":   schema.Required,
	}

	if schema.AdditionalProperties != nil {
		result["additionalProperties"] = false
	}

	return result
}
