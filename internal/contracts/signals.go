package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanyFacts raw per-company facts owned by the registry.
// nil 필드 = 수집되지 않은 값 (0과 구분)
type CompanyFacts struct {
	CompanyID     string
	Name          string
	Website       *string
	FoundedYear   *int
	EmployeeCount *int
	Revenue       *decimal.Decimal
	Profit        *decimal.Decimal
	Description   *string
	Country       *string
	Region        *string
	Industry      *string

	IsPublic     bool
	IsSkeleton   bool
	IsDemo       bool
	MergedIntoID *string
}

// VerificationCounts trust signals from the verification source
type VerificationCounts struct {
	// Known is false when the verification source had nothing on file
	Known               bool `json:"known"`
	ApprovedClaims      int  `json:"approved_claims"`
	ApprovedSubmissions int  `json:"approved_submissions"`
	RegistryVerified    bool `json:"registry_verified"`
}

// CompanySignals is the flat engine input assembled by the signal aggregator.
// ⭐ SSOT: 엔진 입력 필드는 여기서만 정의
type CompanySignals struct {
	CompanyID string
	AsOf      time.Time

	Website           *string
	FoundedYear       *int
	EmployeeCount     *int
	Revenue           *decimal.Decimal
	Profit            *decimal.Decimal
	DescriptionLength *int
	Country           *string
	Region            *string
	Industry          *string

	Verification VerificationCounts

	// Smoothing anchor: last score published before AsOf's day (nil before first scoring)
	PreviousTrustScore        *int
	PreviousFundamentalsScore *int
	LastScoredAt              *time.Time
	RiskFlags                 []string

	// History last published trust score of each prior day, most recent first
	History []ScoreHistoryPoint
}

// completenessFields is the number of tracked fact fields
const completenessFields = 8

// Completeness returns the fraction of tracked fact fields that are non-null
func (s *CompanySignals) Completeness() float64 {
	present := 0
	for _, ok := range []bool{
		s.Website != nil,
		s.FoundedYear != nil,
		s.EmployeeCount != nil,
		s.Revenue != nil,
		s.Profit != nil,
		s.DescriptionLength != nil,
		s.Country != nil,
		s.Industry != nil,
	} {
		if ok {
			present++
		}
	}
	return float64(present) / completenessFields
}

// HistoryScores returns history scores oldest first
func (s *CompanySignals) HistoryScores() []int {
	out := make([]int, len(s.History))
	for i, p := range s.History {
		out[len(s.History)-1-i] = p.Score
	}
	return out
}

// HistoryDays counts distinct UTC days covered by History
func (s *CompanySignals) HistoryDays() int {
	days := make(map[time.Time]struct{}, len(s.History))
	for _, p := range s.History {
		days[AsOfDate(p.RecordedAt)] = struct{}{}
	}
	return len(days)
}
