// internal/store/audit_jobs.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

type AuditJobRepo struct {
	db *Client
}

func NewAuditJobRepo(db *Client) *AuditJobRepo {
	return &AuditJobRepo{db: db}
}

func (r *AuditJobRepo) Create(ctx context.Context, job *models.AuditJob) error {
	const query = `
		INSERT INTO audit_jobs (audit_job_id, company_id, query_count, providers, status, created_at, updated_at)
		VALUES (:audit_job_id, :company_id, :query_count, :providers, :status, :created_at, :updated_at)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create audit job: %w", err)
	}
	return nil
}

func (r *AuditJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*models.AuditJob, error) {
	var job models.AuditJob
	err := r.db.DB.GetContext(ctx, &job, `SELECT * FROM audit_jobs WHERE audit_job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit job: %w", err)
	}
	return &job, nil
}

// ClaimNextQueued atomically claims the oldest queued job for this
// process and flips it to processing. The check-and-set keeps the
// single-writer invariant: exactly one processor owns a job at a time.
// Returns ErrNotFound when the queue is empty.
func (r *AuditJobRepo) ClaimNextQueued(ctx context.Context) (*models.AuditJob, error) {
	const query = `
		UPDATE audit_jobs
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE audit_job_id = (
			SELECT audit_job_id FROM audit_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`

	var job models.AuditJob
	err := r.db.DB.GetContext(ctx, &job, query, models.JobStatusProcessing, models.JobStatusQueued)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queued job: %w", err)
	}
	return &job, nil
}

// SetPhase records the phase the processor is entering.
func (r *AuditJobRepo) SetPhase(ctx context.Context, jobID uuid.UUID, phase string) error {
	const query = `
		UPDATE audit_jobs SET phase = $2, updated_at = NOW()
		WHERE audit_job_id = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, jobID, phase); err != nil {
		return fmt.Errorf("failed to set job phase: %w", err)
	}
	return nil
}

// Finish moves the job to a terminal status. errorMessage is nil for
// completed and cancelled jobs.
func (r *AuditJobRepo) Finish(ctx context.Context, jobID uuid.UUID, status string, errorMessage *string) error {
	const query = `
		UPDATE audit_jobs
		SET status = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
		WHERE audit_job_id = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, jobID, status, errorMessage); err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return nil
}

// RequestCancel flags a job for cooperative cancellation. The processor
// observes the flag at the next phase or batch boundary.
func (r *AuditJobRepo) RequestCancel(ctx context.Context, jobID uuid.UUID) error {
	const query = `
		UPDATE audit_jobs SET cancel_requested = TRUE, updated_at = NOW()
		WHERE audit_job_id = $1 AND status IN ($2, $3)`

	if _, err := r.db.DB.ExecContext(ctx, query, jobID, models.JobStatusQueued, models.JobStatusProcessing); err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	return nil
}

// CancelRequested reads the current cancellation flag.
func (r *AuditJobRepo) CancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var requested bool
	err := r.db.DB.GetContext(ctx, &requested,
		`SELECT cancel_requested FROM audit_jobs WHERE audit_job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return requested, nil
}

// Enqueue inserts a new queued job.
func (r *AuditJobRepo) Enqueue(ctx context.Context, companyID uuid.UUID, queryCount int, providers []string) (*models.AuditJob, error) {
	now := time.Now()
	job := &models.AuditJob{
		AuditJobID: uuid.New(),
		CompanyID:  companyID,
		QueryCount: queryCount,
		Providers:  providers,
		Status:     models.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
