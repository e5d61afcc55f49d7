// internal/store/queries.go
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

type QueryRepo struct {
	db *Client
}

func NewQueryRepo(db *Client) *QueryRepo {
	return &QueryRepo{db: db}
}

// BulkCreate inserts a job's generated queries in one batch.
func (r *QueryRepo) BulkCreate(ctx context.Context, queries []*models.Query) error {
	if len(queries) == 0 {
		return nil
	}

	const query = `
		INSERT INTO queries (query_id, audit_job_id, text, category, intent, priority, created_at)
		VALUES (:query_id, :audit_job_id, :text, :category, :intent, :priority, :created_at)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, queries); err != nil {
		return fmt.Errorf("failed to bulk create queries: %w", err)
	}
	return nil
}

func (r *QueryRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Query, error) {
	var queries []*models.Query
	err := r.db.DB.SelectContext(ctx, &queries,
		`SELECT * FROM queries WHERE audit_job_id = $1 ORDER BY priority DESC, created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	return queries, nil
}
