package ranking

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trustrank/internal/contracts"
)

// Repository ranking 후보 조회 (contracts.RankingRepository)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new ranking repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// candidatesSQL id tie-break uses byte order (COLLATE "C") to match CompareForRanking
const candidatesSQL = `
	SELECT
		c.id,
		c.name,
		c.is_public,
		c.is_skeleton,
		c.is_demo,
		c.merged_into_id,
		COALESCE(s.data_confidence, 0),
		COALESCE(s.risk_flags, '{}'),
		s.trust_score,
		s.fundamentals_score,
		COALESCE(s.stability_profile, 'MEDIUM'),
		s.last_scored_at
	FROM companies c
	LEFT JOIN company_score_state s ON s.company_id = c.id
	WHERE c.is_public
	  AND NOT c.is_skeleton
	  AND c.merged_into_id IS NULL
	  AND COALESCE(s.data_confidence, 0) >= $1
	  AND NOT (COALESCE(s.risk_flags, '{}') && $2::text[])
	  AND (NOT $3 OR NOT c.is_demo)
	ORDER BY
		s.trust_score DESC NULLS LAST,
		COALESCE(s.data_confidence, 0) DESC,
		s.last_scored_at DESC NULLS LAST,
		c.id COLLATE "C" ASC
	LIMIT $4 OFFSET $5
`

// ListCandidates pushes the eligibility predicate and total order down to SQL.
// Guard 와 동일한 조건/정렬이어야 페이지 경계가 일치함
func (r *Repository) ListCandidates(ctx context.Context, q contracts.RankingQuery) ([]contracts.RankingRecord, error) {
	rows, err := r.pool.Query(ctx, candidatesSQL, MinConfidence, ExcludedRiskFlags, q.LaunchMode, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("query ranking candidates: %w", err)
	}
	defer rows.Close()

	records := make([]contracts.RankingRecord, 0, q.Limit)
	for rows.Next() {
		var rec contracts.RankingRecord
		var profile string
		if err := rows.Scan(
			&rec.CompanyID,
			&rec.Name,
			&rec.IsPublic,
			&rec.IsSkeleton,
			&rec.IsDemo,
			&rec.MergedIntoID,
			&rec.DataConfidence,
			&rec.RiskFlags,
			&rec.TrustScore,
			&rec.FundamentalsScore,
			&profile,
			&rec.LastScoredAt,
		); err != nil {
			return nil, fmt.Errorf("scan ranking candidate: %w", err)
		}
		rec.StabilityProfile = contracts.StabilityProfile(profile)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranking candidates: %w", err)
	}
	return records, nil
}
