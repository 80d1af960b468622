package s1_scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/trustrank/internal/contracts"
)

// TrustVersion engine version written into snapshots
const TrustVersion = "trust-v1"

// Trust/momentum weights (합계 100). 펀더멘털 입력과 겹치지 않음
const (
	WeightOwnershipClaim = 30
	WeightSubmissions    = 20
	WeightRegistry       = 10
	WeightFreshness      = 20
	WeightCompleteness   = 20
)

const (
	// submissionDecay: n번째 승인 제출물은 직전의 절반만 기여
	submissionDecay = 0.5
	// freshnessHorizonDays: 마지막 산출 후 이 일수가 지나면 신선도 0
	freshnessHorizonDays = 20.0
	// confidenceHistoryWindow: 이 일수 이상의 이력이면 이력 신뢰도 만점
	confidenceHistoryWindow = 7
)

// TrustEngine scores verification and freshness signals.
// ⭐ SSOT: 신뢰 점수 계산은 여기서만 (순수 함수, 결정적)
type TrustEngine struct{}

// NewTrustEngine creates a new trust engine
func NewTrustEngine() *TrustEngine {
	return &TrustEngine{}
}

// Version returns the engine version
func (e *TrustEngine) Version() string {
	return TrustVersion
}

// Score computes the trust/momentum score with an itemized breakdown
func (e *TrustEngine) Score(s *contracts.CompanySignals) (*contracts.EngineResult, error) {
	if s == nil || s.CompanyID == "" {
		return nil, contracts.ErrMissingCompanyID
	}

	v := s.Verification

	claim := line("no approved claim", 0, WeightOwnershipClaim)
	if v.ApprovedClaims > 0 {
		claim = line(fmt.Sprintf("%d approved claims", v.ApprovedClaims), 1, WeightOwnershipClaim)
	}

	submissions := line(
		fmt.Sprintf("%d approved submissions", v.ApprovedSubmissions),
		1-math.Pow(submissionDecay, float64(max(0, v.ApprovedSubmissions))),
		WeightSubmissions,
	)

	registry := line("not verified", 0, WeightRegistry)
	if v.RegistryVerified {
		registry = line("verified", 1, WeightRegistry)
	}

	freshness := line("never scored", 0, WeightFreshness)
	if s.LastScoredAt != nil {
		days := daysBetween(*s.LastScoredAt, s.AsOf)
		freshness = line(fmt.Sprintf("%d days since last score", days), 1-float64(days)/freshnessHorizonDays, WeightFreshness)
	}

	completeness := s.Completeness()
	complete := line(fmt.Sprintf("%.3f of fields present", completeness), completeness, WeightCompleteness)

	breakdown := &contracts.TrustBreakdown{
		OwnershipClaim: toComponent(claim),
		Submissions:    toComponent(submissions),
		Registry:       toComponent(registry),
		Freshness:      toComponent(freshness),
		Completeness:   toComponent(complete),
	}

	raw := claim.points() + submissions.points() + registry.points() + freshness.points() + complete.points()
	breakdown.RawTotal = round4(raw)
	breakdown.Capped = raw > 100

	return &contracts.EngineResult{
		CompanyID:  s.CompanyID,
		Version:    TrustVersion,
		Score:      clampScore(math.Min(raw, 100)),
		Confidence: trustConfidence(v.Known, s.HistoryDays()),
		Components: contracts.Components{
			Type:  contracts.ScoreTypeTrust,
			Trust: breakdown,
		},
	}, nil
}

// trustConfidence = 40 기본 + 20 (검증 데이터 존재) + 40 × min(이력 일수,7)/7
func trustConfidence(verificationKnown bool, historyDays int) int {
	c := 40.0
	if verificationKnown {
		c += 20
	}
	c += 40 * float64(min(historyDays, confidenceHistoryWindow)) / confidenceHistoryWindow
	return clampScore(c)
}

// daysBetween counts calendar days from `from` to `to`, never negative
func daysBetween(from, to time.Time) int {
	d := int(contracts.AsOfDate(to).Sub(contracts.AsOfDate(from)).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
