// internal/store/analyses.go
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

type AnalysisRepo struct {
	db *Client
}

func NewAnalysisRepo(db *Client) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

func (r *AnalysisRepo) BulkCreate(ctx context.Context, analyses []*models.ResponseAnalysis) error {
	if len(analyses) == 0 {
		return nil
	}

	const query = `
		INSERT INTO response_analyses (
			analysis_id, response_id, audit_job_id, brand_mentioned, brand_mention_count,
			brand_position_pct, sentiment, relevance, competitor_mentions, has_list,
			source_count, geo_score, sov_score, created_at
		) VALUES (
			:analysis_id, :response_id, :audit_job_id, :brand_mentioned, :brand_mention_count,
			:brand_position_pct, :sentiment, :relevance, :competitor_mentions, :has_list,
			:source_count, :geo_score, :sov_score, :created_at
		)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, analyses); err != nil {
		return fmt.Errorf("failed to bulk create analyses: %w", err)
	}
	return nil
}

func (r *AnalysisRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.ResponseAnalysis, error) {
	var analyses []*models.ResponseAnalysis
	err := r.db.DB.SelectContext(ctx, &analyses,
		`SELECT * FROM response_analyses WHERE audit_job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}
