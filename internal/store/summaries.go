// internal/store/summaries.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

type SummaryRepo struct {
	db *Client
}

func NewSummaryRepo(db *Client) *SummaryRepo {
	return &SummaryRepo{db: db}
}

func (r *SummaryRepo) Create(ctx context.Context, summary *models.AuditScoreSummary) error {
	const query = `
		INSERT INTO audit_score_summaries (
			summary_id, audit_job_id, geo_score, sov_score, visibility_score,
			sentiment_score, recommendation_score, response_count, failed_count,
			skipped_count, provider_scores, competitor_standings, created_at
		) VALUES (
			:summary_id, :audit_job_id, :geo_score, :sov_score, :visibility_score,
			:sentiment_score, :recommendation_score, :response_count, :failed_count,
			:skipped_count, :provider_scores, :competitor_standings, :created_at
		)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("failed to create score summary: %w", err)
	}
	return nil
}

func (r *SummaryRepo) GetByJob(ctx context.Context, jobID uuid.UUID) (*models.AuditScoreSummary, error) {
	var summary models.AuditScoreSummary
	err := r.db.DB.GetContext(ctx, &summary,
		`SELECT * FROM audit_score_summaries WHERE audit_job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score summary: %w", err)
	}
	return &summary, nil
}
