// internal/store/companies.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

type CompanyRepo struct {
	db *Client
}

func NewCompanyRepo(db *Client) *CompanyRepo {
	return &CompanyRepo{db: db}
}

func (r *CompanyRepo) GetByID(ctx context.Context, companyID uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := r.db.DB.GetContext(ctx, &company, `SELECT * FROM companies WHERE company_id = $1`, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}
