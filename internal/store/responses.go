// internal/store/responses.go
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

type ResponseRepo struct {
	db *Client
}

func NewResponseRepo(db *Client) *ResponseRepo {
	return &ResponseRepo{db: db}
}

func (r *ResponseRepo) Create(ctx context.Context, response *models.ProviderResponse) error {
	const query = `
		INSERT INTO provider_responses (
			response_id, query_id, audit_job_id, provider, model, response_text,
			status, fail_reason, latency_ms, input_tokens, output_tokens, cost_usd, cached, created_at
		) VALUES (
			:response_id, :query_id, :audit_job_id, :provider, :model, :response_text,
			:status, :fail_reason, :latency_ms, :input_tokens, :output_tokens, :cost_usd, :cached, :created_at
		)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, response); err != nil {
		return fmt.Errorf("failed to create provider response: %w", err)
	}
	return nil
}

func (r *ResponseRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.ProviderResponse, error) {
	var responses []*models.ProviderResponse
	err := r.db.DB.SelectContext(ctx, &responses,
		`SELECT * FROM provider_responses WHERE audit_job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider responses: %w", err)
	}
	return responses, nil
}

// CountByJobStatus returns counts per response status for the job, used
// to account for every (query, provider) pair at finalization.
func (r *ResponseRepo) CountByJobStatus(ctx context.Context, jobID uuid.UUID) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}

	err := r.db.DB.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM provider_responses WHERE audit_job_id = $1 GROUP BY status`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count provider responses: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
