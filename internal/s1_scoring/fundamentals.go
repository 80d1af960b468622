package s1_scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/trustrank/internal/contracts"
)

// FundamentalsVersion engine version written into snapshots
const FundamentalsVersion = "fundamentals-v1"

// Fundamentals weights (합계 100)
const (
	WeightWebsite     = 10
	WeightAge         = 15
	WeightEmployees   = 15
	WeightRevenue     = 25
	WeightProfit      = 15
	WeightDescription = 10
	WeightGeography   = 10
)

// fundamentalsInputs number of inputs counted for confidence
const fundamentalsInputs = 7

// Sub-score normalization anchors
const (
	matureCompanyYears   = 20.0    // 20년 이상 = 만점
	employeeCeiling      = 10000.0 // 1만명 = 만점
	revenueLog10Ceiling  = 9.0     // 10억 = 만점
	healthyProfitMargin  = 0.20    // 순이익률 20% = 만점
	minDescriptionLength = 50      // 이 미만은 placeholder 취급
	fullDescriptionLen   = 500.0
)

// Valuation multiples (통화 고정: USD)
var (
	ValuationCurrency      = "USD"
	RevenueMultipleBase    = decimal.RequireFromString("0.5")
	RevenueMultipleSpan    = decimal.RequireFromString("2.5")
	RevenueBandPercent     = decimal.RequireFromString("20")
	EarningsMultipleLow    = decimal.NewFromInt(8)
	EarningsMultipleHigh   = decimal.NewFromInt(15)
	valuationDecimalPlaces = int32(2)
)

// FundamentalsEngine scores company facts into a 0–100 composite.
// ⭐ SSOT: 펀더멘털 점수 계산은 여기서만 (순수 함수, 결정적)
type FundamentalsEngine struct{}

// NewFundamentalsEngine creates a new fundamentals engine
func NewFundamentalsEngine() *FundamentalsEngine {
	return &FundamentalsEngine{}
}

// Version returns the engine version
func (e *FundamentalsEngine) Version() string {
	return FundamentalsVersion
}

// Score computes the fundamentals score. Missing inputs earn zero points and
// lower confidence; only a missing company id is an error.
func (e *FundamentalsEngine) Score(s *contracts.CompanySignals) (*contracts.EngineResult, error) {
	if s == nil || s.CompanyID == "" {
		return nil, contracts.ErrMissingCompanyID
	}

	lines := []componentLine{
		websiteLine(s.Website),
		ageLine(s.FoundedYear, s.AsOf.Year()),
		employeesLine(s.EmployeeCount),
		revenueLine(s.Revenue),
		profitLine(s.Revenue, s.Profit),
		descriptionLine(s.DescriptionLength),
		geographyLine(s.Country, s.Region, s.Industry),
	}

	total := 0.0
	for _, l := range lines {
		total += l.points()
	}
	score := clampScore(total)

	nonNull := countNonNull(s)
	breakdown := &contracts.FundamentalsBreakdown{
		Website:     toComponent(lines[0]),
		Age:         toComponent(lines[1]),
		Employees:   toComponent(lines[2]),
		Revenue:     toComponent(lines[3]),
		Profit:      toComponent(lines[4]),
		Description: toComponent(lines[5]),
		Geography:   toComponent(lines[6]),
		NonNull:     nonNull,
	}

	valuation, valuationBreakdown := deriveValuation(score, s.Revenue, s.Profit)
	breakdown.Valuation = valuationBreakdown

	return &contracts.EngineResult{
		CompanyID:  s.CompanyID,
		Version:    FundamentalsVersion,
		Score:      score,
		Confidence: clampScore(100 * float64(nonNull) / fundamentalsInputs),
		Components: contracts.Components{
			Type:         contracts.ScoreTypeFundamentals,
			Fundamentals: breakdown,
		},
		Valuation: valuation,
	}, nil
}

func toComponent(l componentLine) contracts.ComponentScore {
	return contracts.ComponentScore{
		Input:    l.input,
		SubScore: round4(l.sub),
		Weight:   l.weight,
		Points:   round4(l.points()),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func countNonNull(s *contracts.CompanySignals) int {
	n := 0
	for _, ok := range []bool{
		s.Website != nil,
		s.FoundedYear != nil,
		s.EmployeeCount != nil,
		s.Revenue != nil,
		s.Profit != nil,
		s.DescriptionLength != nil,
		s.Country != nil || s.Region != nil || s.Industry != nil,
	} {
		if ok {
			n++
		}
	}
	return n
}

func websiteLine(website *string) componentLine {
	if website == nil {
		return line("missing", 0, WeightWebsite)
	}
	if strings.HasPrefix(strings.ToLower(*website), "https://") {
		return line("https", 1, WeightWebsite)
	}
	return line("present", 0.7, WeightWebsite)
}

func ageLine(foundedYear *int, asOfYear int) componentLine {
	if foundedYear == nil {
		return line("missing", 0, WeightAge)
	}
	years := float64(asOfYear - *foundedYear)
	return line(fmt.Sprintf("%d years", asOfYear-*foundedYear), years/matureCompanyYears, WeightAge)
}

func employeesLine(count *int) componentLine {
	if count == nil {
		return line("missing", 0, WeightEmployees)
	}
	n := math.Max(0, float64(*count))
	return line(fmt.Sprintf("%d employees", *count), math.Log10(n+1)/math.Log10(employeeCeiling+1), WeightEmployees)
}

func revenueLine(revenue *decimal.Decimal) componentLine {
	if revenue == nil {
		return line("missing", 0, WeightRevenue)
	}
	rev := math.Max(0, revenue.InexactFloat64())
	return line("revenue "+revenue.StringFixed(0), math.Log10(rev+1)/revenueLog10Ceiling, WeightRevenue)
}

func profitLine(revenue, profit *decimal.Decimal) componentLine {
	if profit == nil {
		return line("missing", 0, WeightProfit)
	}
	if !profit.IsPositive() {
		return line("unprofitable", 0, WeightProfit)
	}
	if revenue == nil || !revenue.IsPositive() {
		return line("profitable, revenue unknown", 0.5, WeightProfit)
	}
	margin := profit.Div(*revenue).InexactFloat64()
	return line(fmt.Sprintf("margin %.4f", margin), margin/healthyProfitMargin, WeightProfit)
}

func descriptionLine(length *int) componentLine {
	if length == nil {
		return line("missing", 0, WeightDescription)
	}
	if *length < minDescriptionLength {
		return line(fmt.Sprintf("%d chars (placeholder)", *length), 0, WeightDescription)
	}
	return line(fmt.Sprintf("%d chars", *length), float64(*length)/fullDescriptionLen, WeightDescription)
}

func geographyLine(country, region, industry *string) componentLine {
	sub := 0.0
	parts := make([]string, 0, 3)
	if country != nil {
		sub += 0.5
		parts = append(parts, "country")
	}
	if region != nil {
		sub += 0.25
		parts = append(parts, "region")
	}
	if industry != nil {
		sub += 0.25
		parts = append(parts, "industry")
	}
	if len(parts) == 0 {
		return line("missing", 0, WeightGeography)
	}
	return line(strings.Join(parts, "+"), sub, WeightGeography)
}

// deriveValuation: revenue × (0.5 + 2.5·score/100) ± 20%, 이익이 있으면 8–15배 수익 배수와 50/50 혼합
func deriveValuation(score int, revenue, profit *decimal.Decimal) (*contracts.ValuationRange, *contracts.ValuationBreakdown) {
	if revenue == nil || !revenue.IsPositive() {
		return nil, nil
	}

	multiple := RevenueMultipleBase.Add(
		RevenueMultipleSpan.Mul(decimal.NewFromInt(int64(score))).Div(decimal.NewFromInt(100)),
	)
	band := RevenueBandPercent.Div(decimal.NewFromInt(100))
	mid := revenue.Mul(multiple)
	low := mid.Mul(decimal.NewFromInt(1).Sub(band))
	high := mid.Mul(decimal.NewFromInt(1).Add(band))

	breakdown := &contracts.ValuationBreakdown{
		RevenueMultiple:    multiple,
		RevenueBandPercent: RevenueBandPercent,
		Currency:           ValuationCurrency,
	}

	if profit != nil && profit.IsPositive() {
		two := decimal.NewFromInt(2)
		low = low.Add(profit.Mul(EarningsMultipleLow)).Div(two)
		high = high.Add(profit.Mul(EarningsMultipleHigh)).Div(two)
		lo, hi := EarningsMultipleLow, EarningsMultipleHigh
		breakdown.EarningsMultipleLo = &lo
		breakdown.EarningsMultipleHi = &hi
	}

	return &contracts.ValuationRange{
		Low:      low.Round(valuationDecimalPlaces),
		High:     high.Round(valuationDecimalPlaces),
		Currency: ValuationCurrency,
	}, breakdown
}
