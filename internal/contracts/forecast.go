package contracts

import "time"

// Forecast horizons in days
var ForecastHorizons = []int{30, 90, 180}

// Forecast one projected score per company × horizon × model version.
// ⭐ 불변식: BandLow <= ForecastScore <= BandHigh
type Forecast struct {
	CompanyID          string            `json:"company_id" validate:"required"`
	HorizonDays        int               `json:"horizon_days" validate:"gt=0"`
	ModelVersion       string            `json:"model_version" validate:"required"`
	ForecastScore      int               `json:"forecast_score" validate:"min=0,max=100"`
	ForecastConfidence int               `json:"forecast_confidence" validate:"min=0,max=100"`
	BandLow            int               `json:"band_low" validate:"min=0,max=100,ltefield=ForecastScore"`
	BandHigh           int               `json:"band_high" validate:"min=0,max=100,gtefield=ForecastScore"`
	Reasoning          ForecastReasoning `json:"reasoning"`
	ComputedAt         time.Time         `json:"computed_at"`
}

// BandWidth returns BandHigh - BandLow
func (f Forecast) BandWidth() int {
	return f.BandHigh - f.BandLow
}

// ForecastReasoning structured explanation of a projection
type ForecastReasoning struct {
	CurrentScore      int      `json:"current_score"`
	Confidence        int      `json:"confidence"`
	HistoryPoints     int      `json:"history_points"`
	TrendPerDay       float64  `json:"trend_per_day"`
	Damping           float64  `json:"damping"`
	TrendContribution float64  `json:"trend_contribution"`
	FundamentalsDrift float64  `json:"fundamentals_drift"`
	DriftBasis        string   `json:"drift_basis"`
	DeltaStdDev       float64  `json:"delta_std_dev"`
	HalfWidth         float64  `json:"half_width"`
	BandScale         float64  `json:"band_scale"`
	InputsUsed        []string `json:"inputs_used"`
}
