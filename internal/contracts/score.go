package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScoreType identifies which engine produced a score
type ScoreType string

const (
	ScoreTypeFundamentals ScoreType = "fundamentals"
	ScoreTypeTrust        ScoreType = "trust"
)

// StabilityProfile volatility classification of recent published movement
type StabilityProfile string

const (
	StabilityLow    StabilityProfile = "LOW"
	StabilityMedium StabilityProfile = "MEDIUM"
	StabilityHigh   StabilityProfile = "HIGH"
)

// Risk flags carried on CompanyScoreState
const (
	RiskSuspiciousActivity = "SUSPICIOUS_ACTIVITY"
	RiskCoordinatedClaims  = "COORDINATED_CLAIMS"
	RiskDuplicateSuspected = "DUPLICATE_SUSPECTED"
	RiskHighVolatility     = "HIGH_VOLATILITY"
)

// ComponentScore is one itemized line of a score breakdown
type ComponentScore struct {
	Input    string  `json:"input"`
	SubScore float64 `json:"sub_score" validate:"min=0,max=1"`
	Weight   int     `json:"weight" validate:"min=0,max=100"`
	Points   float64 `json:"points" validate:"min=0,max=100"`
}

// FundamentalsBreakdown itemized fundamentals score
type FundamentalsBreakdown struct {
	Website     ComponentScore      `json:"website"`
	Age         ComponentScore      `json:"age"`
	Employees   ComponentScore      `json:"employees"`
	Revenue     ComponentScore      `json:"revenue"`
	Profit      ComponentScore      `json:"profit"`
	Description ComponentScore      `json:"description"`
	Geography   ComponentScore      `json:"geography"`
	Valuation   *ValuationBreakdown `json:"valuation,omitempty"`
	NonNull     int                 `json:"non_null_inputs"`
}

// Lines returns every weighted component in display order
func (b *FundamentalsBreakdown) Lines() []ComponentScore {
	return []ComponentScore{b.Website, b.Age, b.Employees, b.Revenue, b.Profit, b.Description, b.Geography}
}

// ValuationBreakdown documents the multiples behind a valuation range
type ValuationBreakdown struct {
	RevenueMultiple    decimal.Decimal  `json:"revenue_multiple"`
	RevenueBandPercent decimal.Decimal  `json:"revenue_band_percent"`
	EarningsMultipleLo *decimal.Decimal `json:"earnings_multiple_low,omitempty"`
	EarningsMultipleHi *decimal.Decimal `json:"earnings_multiple_high,omitempty"`
	Currency           string           `json:"currency"`
}

// TrustBreakdown itemized trust/momentum score
type TrustBreakdown struct {
	OwnershipClaim ComponentScore `json:"ownership_claim"`
	Submissions    ComponentScore `json:"submissions"`
	Registry       ComponentScore `json:"registry"`
	Freshness      ComponentScore `json:"freshness"`
	Completeness   ComponentScore `json:"completeness"`
	RawTotal       float64        `json:"raw_total"`
	Capped         bool           `json:"capped"`
}

// Lines returns every weighted component in display order
func (b *TrustBreakdown) Lines() []ComponentScore {
	return []ComponentScore{b.OwnershipClaim, b.Submissions, b.Registry, b.Freshness, b.Completeness}
}

// Components is the tagged union stored as componentsJson.
// Type 값에 맞는 필드 하나만 채워짐
type Components struct {
	Type         ScoreType              `json:"type" validate:"oneof=fundamentals trust"`
	Fundamentals *FundamentalsBreakdown `json:"fundamentals,omitempty"`
	Trust        *TrustBreakdown        `json:"trust,omitempty"`
}

// ValuationRange derived from fundamentals
type ValuationRange struct {
	Low      decimal.Decimal `json:"low"`
	High     decimal.Decimal `json:"high"`
	Currency string          `json:"currency"`
}

// EngineResult output of one score engine
type EngineResult struct {
	CompanyID  string          `json:"company_id" validate:"required"`
	Version    string          `json:"version" validate:"required"`
	Score      int             `json:"score" validate:"min=0,max=100"`
	Confidence int             `json:"confidence" validate:"min=0,max=100"`
	Components Components      `json:"components"`
	Valuation  *ValuationRange `json:"valuation,omitempty"`
}

// CompanyScoreState current published scores, one row per company.
// Previous* = 오늘 이전 마지막 게시 점수 (당일 재계산의 smoothing 기준점)
// Version 은 낙관적 동시성 제어용 (저장 시 +1)
type CompanyScoreState struct {
	CompanyID string `json:"company_id"`

	FundamentalsScore         *int                   `json:"fundamentals_score" validate:"omitempty,min=0,max=100"`
	PreviousFundamentalsScore *int                   `json:"previous_fundamentals_score" validate:"omitempty,min=0,max=100"`
	FundamentalsConfidence    *int                   `json:"fundamentals_confidence" validate:"omitempty,min=0,max=100"`
	FundamentalsComponents    *FundamentalsBreakdown `json:"fundamentals_components,omitempty"`

	TrustScore         *int            `json:"trust_score" validate:"omitempty,min=0,max=100"`
	PreviousTrustScore *int            `json:"previous_trust_score" validate:"omitempty,min=0,max=100"`
	TrustScoreDelta    *int            `json:"trust_score_delta"`
	TrustComponents    *TrustBreakdown `json:"trust_components,omitempty"`

	ValuationLow      *decimal.Decimal `json:"valuation_low"`
	ValuationHigh     *decimal.Decimal `json:"valuation_high"`
	ValuationCurrency *string          `json:"valuation_currency"`

	StabilityProfile StabilityProfile `json:"stability_profile" validate:"oneof=LOW MEDIUM HIGH"`
	DataConfidence   int              `json:"data_confidence" validate:"min=0,max=100"`
	RiskFlags        []string         `json:"risk_flags"`

	LastScoredAt   *time.Time `json:"last_scored_at"`
	ScoreUpdatedAt *time.Time `json:"score_updated_at"`

	Version int64 `json:"version"`
}

// Validate checks range and delta invariants
func (s *CompanyScoreState) Validate() error {
	if err := Validate(s); err != nil {
		return err
	}
	if s.TrustScore != nil && s.PreviousTrustScore != nil {
		want := *s.TrustScore - *s.PreviousTrustScore
		if s.TrustScoreDelta == nil || *s.TrustScoreDelta != want {
			return fmt.Errorf("%w: trust delta must equal %d", ErrInvalidInput, want)
		}
	}
	return nil
}

// HasRiskFlag reports whether flag is set
func (s *CompanyScoreState) HasRiskFlag(flag string) bool {
	for _, f := range s.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// ScoreSnapshot immutable daily record per score version.
// (CompanyID, AsOfDate, Version) 기준 upsert
type ScoreSnapshot struct {
	CompanyID  string     `json:"company_id" validate:"required"`
	AsOfDate   time.Time  `json:"as_of_date"`
	Version    string     `json:"version" validate:"required"`
	Score      int        `json:"score" validate:"min=0,max=100"`
	Confidence int        `json:"confidence" validate:"min=0,max=100"`
	Components Components `json:"components"`
}

// ComponentsJSON marshals the breakdown for the jsonb column
func (s ScoreSnapshot) ComponentsJSON() ([]byte, error) {
	return json.Marshal(s.Components)
}

// ScoreHistoryPoint one published trust score observation
type ScoreHistoryPoint struct {
	CompanyID  string    `json:"company_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Score      int       `json:"score"`
}

// AsOfDate truncates t to its UTC calendar day
func AsOfDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
