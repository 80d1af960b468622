package forecast

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wonny/trustrank/internal/contracts"
)

// ModelVersion projector version written into forecast rows
const ModelVersion = "projector-v1"

// ProjectorConfig projection parameters
type ProjectorConfig struct {
	ModelVersion string
	Horizons     []int

	// 추세 감쇠: 1/(1+h/TrendDampingDays)
	TrendDampingDays float64
	// 추세 기울기 상한 (점/일)
	MaxSlopePerDay float64
	// 추세 계산 최소 이력 수
	MinHistoryForTrend int

	// 이익 부호 기반 드리프트 (점/30일)
	DriftPer30Days float64

	// 밴드 반폭 기본값 (30일 기준, confidence 100)
	BaseHalfWidth float64
	// 신뢰도 감쇠: conf/(1+h/ConfidenceDecayDays)
	ConfidenceDecayDays float64
}

// DefaultProjectorConfig returns default projection parameters
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		ModelVersion:        ModelVersion,
		Horizons:            contracts.ForecastHorizons,
		TrendDampingDays:    90,
		MaxSlopePerDay:      1,
		MinHistoryForTrend:  3,
		DriftPer30Days:      1,
		BaseHalfWidth:       3,
		ConfidenceDecayDays: 180,
	}
}

const establishedHeadcount = 250

// ProjectionInput current smoothed score plus the inputs that move it
type ProjectionInput struct {
	CompanyID    string
	CurrentScore int
	Confidence   int
	// History most recent first
	History []contracts.ScoreHistoryPoint
	AsOf    time.Time

	Revenue       *decimal.Decimal
	Profit        *decimal.Decimal
	EmployeeCount *int
	Industry      *string
	Country       *string
}

// Projector extrapolates a smoothed score to fixed horizons with an uncertainty band.
// ⭐ SSOT: 점수 예측은 여기서만 (reasoning 은 항상 전체 계산, 노출 제어는 API 계층)
type Projector struct {
	config ProjectorConfig
	log    zerolog.Logger
}

// NewProjector creates a projector with default config
func NewProjector(log zerolog.Logger) *Projector {
	return NewProjectorWithConfig(DefaultProjectorConfig(), log)
}

// NewProjectorWithConfig creates a projector with custom config
func NewProjectorWithConfig(config ProjectorConfig, log zerolog.Logger) *Projector {
	return &Projector{
		config: config,
		log:    log.With().Str("component", "forecast.projector").Logger(),
	}
}

// Project returns one forecast per configured horizon
func (p *Projector) Project(in ProjectionInput) ([]contracts.Forecast, error) {
	if in.CompanyID == "" {
		return nil, contracts.ErrMissingCompanyID
	}

	slope := p.trendSlope(in.History)
	sigma := deltaStdDev(in.History)
	driftSign, driftBasis := driftDirection(in.Revenue, in.Profit)
	scale := bandScale(in)
	inputs := inputsUsed(in, len(in.History) >= p.config.MinHistoryForTrend)

	forecasts := make([]contracts.Forecast, 0, len(p.config.Horizons))
	for _, h := range p.config.Horizons {
		hd := float64(h)
		damping := 1 / (1 + hd/p.config.TrendDampingDays)
		trend := slope * hd * damping
		drift := driftSign * p.config.DriftPer30Days * (hd / 30) * damping

		score := clampInt(int(math.Round(float64(in.CurrentScore)+trend+drift)), 0, 100)
		halfWidth := p.halfWidth(h, in.Confidence, sigma) * scale
		low, high := band(score, halfWidth)

		forecasts = append(forecasts, contracts.Forecast{
			CompanyID:          in.CompanyID,
			HorizonDays:        h,
			ModelVersion:       p.config.ModelVersion,
			ForecastScore:      score,
			ForecastConfidence: p.horizonConfidence(h, in.Confidence),
			BandLow:            low,
			BandHigh:           high,
			ComputedAt:         in.AsOf,
			Reasoning: contracts.ForecastReasoning{
				CurrentScore:      in.CurrentScore,
				Confidence:        in.Confidence,
				HistoryPoints:     len(in.History),
				TrendPerDay:       round4(slope),
				Damping:           round4(damping),
				TrendContribution: round4(trend),
				FundamentalsDrift: round4(drift),
				DriftBasis:        driftBasis,
				DeltaStdDev:       round4(sigma),
				HalfWidth:         round4(halfWidth),
				BandScale:         scale,
				InputsUsed:        inputs,
			},
		})
	}

	p.log.Debug().
		Str("company_id", in.CompanyID).
		Int("current", in.CurrentScore).
		Float64("slope", slope).
		Float64("sigma", sigma).
		Int("horizons", len(forecasts)).
		Msg("projected score")

	return forecasts, nil
}

// BandWidth integer band width for a horizon/confidence pair with no history noise
func (p *Projector) BandWidth(horizonDays, confidence int) int {
	return widthOf(p.halfWidth(horizonDays, confidence, 0))
}

// halfWidth = (base + σ) · sqrt(h/30) · (1 + (100−conf)/50)
func (p *Projector) halfWidth(horizonDays, confidence int, sigma float64) float64 {
	conf := float64(clampInt(confidence, 0, 100))
	return (p.config.BaseHalfWidth + sigma) *
		math.Sqrt(float64(horizonDays)/30) *
		(1 + (100-conf)/50)
}

func (p *Projector) horizonConfidence(horizonDays, confidence int) int {
	c := float64(clampInt(confidence, 0, 100)) / (1 + float64(horizonDays)/p.config.ConfidenceDecayDays)
	return clampInt(int(math.Round(c)), 0, 100)
}

// trendSlope least-squares slope (points/day) of history against recorded time
func (p *Projector) trendSlope(history []contracts.ScoreHistoryPoint) float64 {
	if len(history) < p.config.MinHistoryForTrend {
		return 0
	}

	oldest := history[len(history)-1].RecordedAt
	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for _, pt := range history {
		x := pt.RecordedAt.Sub(oldest).Hours() / 24
		y := float64(pt.Score)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return math.Max(-p.config.MaxSlopePerDay, math.Min(p.config.MaxSlopePerDay, slope))
}

// widthOf integer width = min(100, ceil(2·halfWidth))
func widthOf(halfWidth float64) int {
	return clampInt(int(math.Ceil(2*halfWidth)), 0, 100)
}

// band centers the width on score, then shifts (never shrinks) it into [0,100]
func band(score int, halfWidth float64) (int, int) {
	width := widthOf(halfWidth)
	low := score - width/2
	high := low + width

	if low < 0 {
		high -= low
		low = 0
	}
	if high > 100 {
		low -= high - 100
		high = 100
	}
	return low, high
}

// deltaStdDev population std-dev of successive history deltas
func deltaStdDev(history []contracts.ScoreHistoryPoint) float64 {
	if len(history) < 3 {
		return 0
	}
	deltas := make([]float64, 0, len(history)-1)
	for i := len(history) - 1; i > 0; i-- {
		deltas = append(deltas, float64(history[i-1].Score-history[i].Score))
	}

	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))

	variance := 0.0
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	return math.Sqrt(variance / float64(len(deltas)))
}

// bandScale: 규모 있는 회사(250명+)는 밴드 10% 축소, 업종/국가 모두 미상이면 10% 확대
func bandScale(in ProjectionInput) float64 {
	scale := 1.0
	if in.EmployeeCount != nil && *in.EmployeeCount >= establishedHeadcount {
		scale *= 0.9
	}
	if in.Industry == nil && in.Country == nil {
		scale *= 1.1
	}
	return scale
}

func driftDirection(revenue, profit *decimal.Decimal) (float64, string) {
	switch {
	case profit != nil && profit.IsPositive():
		return 1, "profitable"
	case profit != nil && profit.IsNegative():
		return -1, "loss-making"
	case revenue != nil:
		return 0, "revenue only"
	default:
		return 0, "no financials"
	}
}

func inputsUsed(in ProjectionInput, trend bool) []string {
	used := []string{"current_score", "confidence"}
	if trend {
		used = append(used, "history")
	}
	if in.Revenue != nil {
		used = append(used, "revenue")
	}
	if in.Profit != nil {
		used = append(used, "profit")
	}
	if in.EmployeeCount != nil && *in.EmployeeCount >= establishedHeadcount {
		used = append(used, "employee_count")
	}
	if in.Industry != nil || in.Country != nil {
		used = append(used, "classification")
	}
	return used
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
