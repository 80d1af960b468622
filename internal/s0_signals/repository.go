package s0_signals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/trustrank/internal/contracts"
)

// Verification statuses counted as approved
const (
	StatusApproved = "APPROVED"
	StatusVerified = "VERIFIED"
)

// Repository reads company facts (contracts.FactsRepository)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new facts repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetFacts returns ErrCompanyNotFound for unknown ids
func (r *Repository) GetFacts(ctx context.Context, companyID string) (*contracts.CompanyFacts, error) {
	query := `
		SELECT
			id, name, website, founded_year, employee_count,
			revenue::text, profit::text,
			description, country, region, industry,
			is_public, is_skeleton, is_demo, merged_into_id
		FROM companies
		WHERE id = $1
	`

	var f contracts.CompanyFacts
	var revenue, profit *string
	err := r.pool.QueryRow(ctx, query, companyID).Scan(
		&f.CompanyID, &f.Name, &f.Website, &f.FoundedYear, &f.EmployeeCount,
		&revenue, &profit,
		&f.Description, &f.Country, &f.Region, &f.Industry,
		&f.IsPublic, &f.IsSkeleton, &f.IsDemo, &f.MergedIntoID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query facts %s: %w", companyID, err)
	}

	if f.Revenue, err = parseDecimal(revenue); err != nil {
		return nil, err
	}
	if f.Profit, err = parseDecimal(profit); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetVerification aggregates claim, submission and registry status
func (r *Repository) GetVerification(ctx context.Context, companyID string) (*contracts.VerificationCounts, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM ownership_claims WHERE company_id = $1)
				OR EXISTS (SELECT 1 FROM user_submissions WHERE company_id = $1)
				OR EXISTS (SELECT 1 FROM registry_verifications WHERE company_id = $1),
			(SELECT COUNT(*) FROM ownership_claims WHERE company_id = $1 AND status = $2),
			(SELECT COUNT(*) FROM user_submissions WHERE company_id = $1 AND status = $2),
			COALESCE((SELECT status = $3 FROM registry_verifications WHERE company_id = $1), FALSE)
	`

	var v contracts.VerificationCounts
	err := r.pool.QueryRow(ctx, query, companyID, StatusApproved, StatusVerified).Scan(
		&v.Known, &v.ApprovedClaims, &v.ApprovedSubmissions, &v.RegistryVerified,
	)
	if err != nil {
		return nil, fmt.Errorf("query verification %s: %w", companyID, err)
	}
	return &v, nil
}

// ListCompanyIDs pages ids in ascending byte order strictly after afterID
func (r *Repository) ListCompanyIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM companies WHERE id COLLATE "C" > $1 ORDER BY id COLLATE "C" ASC LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list company ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", *s, err)
	}
	return &d, nil
}
