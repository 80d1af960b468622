package scorestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/trustrank/internal/contracts"
)

// querier pool 과 트랜잭션 공통 부분
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository persists score state, snapshots and history
// ⭐ SSOT: company_score_state / score_snapshots / score_history 접근은 여기서만
type Repository struct {
	db querier
}

// NewRepository creates a new score state repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const selectStateSQL = `
	SELECT
		company_id,
		fundamentals_score, previous_fundamentals_score, fundamentals_confidence, fundamentals_components,
		trust_score, previous_trust_score, trust_score_delta, trust_components,
		valuation_low::text, valuation_high::text, valuation_currency,
		stability_profile, data_confidence, risk_flags,
		last_scored_at, score_updated_at, version
	FROM company_score_state
	WHERE company_id = $1
`

// GetState returns nil, nil when the company has never been scored
func (r *Repository) GetState(ctx context.Context, companyID string) (*contracts.CompanyScoreState, error) {
	var s contracts.CompanyScoreState
	var fundamentalsJSON, trustJSON []byte
	var valLow, valHigh *string
	var profile string

	err := r.db.QueryRow(ctx, selectStateSQL, companyID).Scan(
		&s.CompanyID,
		&s.FundamentalsScore, &s.PreviousFundamentalsScore, &s.FundamentalsConfidence, &fundamentalsJSON,
		&s.TrustScore, &s.PreviousTrustScore, &s.TrustScoreDelta, &trustJSON,
		&valLow, &valHigh, &s.ValuationCurrency,
		&profile, &s.DataConfidence, &s.RiskFlags,
		&s.LastScoredAt, &s.ScoreUpdatedAt, &s.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get score state %s: %w", companyID, err)
	}
	s.StabilityProfile = contracts.StabilityProfile(profile)

	if len(fundamentalsJSON) > 0 {
		s.FundamentalsComponents = &contracts.FundamentalsBreakdown{}
		if err := json.Unmarshal(fundamentalsJSON, s.FundamentalsComponents); err != nil {
			return nil, fmt.Errorf("unmarshal fundamentals components: %w", err)
		}
	}
	if len(trustJSON) > 0 {
		s.TrustComponents = &contracts.TrustBreakdown{}
		if err := json.Unmarshal(trustJSON, s.TrustComponents); err != nil {
			return nil, fmt.Errorf("unmarshal trust components: %w", err)
		}
	}
	if s.ValuationLow, err = parseDecimal(valLow); err != nil {
		return nil, err
	}
	if s.ValuationHigh, err = parseDecimal(valHigh); err != nil {
		return nil, err
	}
	return &s, nil
}

const insertStateSQL = `
	INSERT INTO company_score_state (
		company_id,
		fundamentals_score, fundamentals_confidence, fundamentals_components,
		trust_score, previous_trust_score, trust_score_delta, trust_components,
		valuation_low, valuation_high, valuation_currency,
		stability_profile, data_confidence, risk_flags,
		last_scored_at, score_updated_at, previous_fundamentals_score, version
	) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8::jsonb, $9::numeric, $10::numeric, $11, $12, $13, $14, $15, $16, $17, 1)
	ON CONFLICT (company_id) DO NOTHING
	RETURNING version
`

const updateStateSQL = `
	UPDATE company_score_state SET
		fundamentals_score = $2,
		fundamentals_confidence = $3,
		fundamentals_components = $4::jsonb,
		trust_score = $5,
		previous_trust_score = $6,
		trust_score_delta = $7,
		trust_components = $8::jsonb,
		valuation_low = $9::numeric,
		valuation_high = $10::numeric,
		valuation_currency = $11,
		stability_profile = $12,
		data_confidence = $13,
		risk_flags = $14,
		last_scored_at = $15,
		score_updated_at = $16,
		previous_fundamentals_score = $17,
		version = version + 1
	WHERE company_id = $1 AND version = $18
	RETURNING version
`

// SaveState optimistic write: Version 0 inserts, otherwise the stored version must match.
// 성공 시 state.Version 갱신, 불일치 시 ErrVersionConflict
func (r *Repository) SaveState(ctx context.Context, s *contracts.CompanyScoreState) error {
	fundamentalsJSON, err := jsonOrNil(s.FundamentalsComponents)
	if err != nil {
		return fmt.Errorf("marshal fundamentals components: %w", err)
	}
	trustJSON, err := jsonOrNil(s.TrustComponents)
	if err != nil {
		return fmt.Errorf("marshal trust components: %w", err)
	}

	riskFlags := s.RiskFlags
	if riskFlags == nil {
		riskFlags = []string{}
	}

	args := []any{
		s.CompanyID,
		s.FundamentalsScore, s.FundamentalsConfidence, fundamentalsJSON,
		s.TrustScore, s.PreviousTrustScore, s.TrustScoreDelta, trustJSON,
		decimalText(s.ValuationLow), decimalText(s.ValuationHigh), s.ValuationCurrency,
		string(s.StabilityProfile), s.DataConfidence, riskFlags,
		s.LastScoredAt, s.ScoreUpdatedAt, s.PreviousFundamentalsScore,
	}

	query := insertStateSQL
	if s.Version > 0 {
		query = updateStateSQL
		args = append(args, s.Version)
	}

	var version int64
	err = r.db.QueryRow(ctx, query, args...).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.NewError(contracts.KindCoordination, "scorestate.save", s.CompanyID, contracts.ErrVersionConflict)
	}
	if err != nil {
		return fmt.Errorf("save score state %s: %w", s.CompanyID, err)
	}

	s.Version = version
	return nil
}

func jsonOrNil(v any) (*string, error) {
	switch t := v.(type) {
	case *contracts.FundamentalsBreakdown:
		if t == nil {
			return nil, nil
		}
	case *contracts.TrustBreakdown:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := string(data)
	return &out, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
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
