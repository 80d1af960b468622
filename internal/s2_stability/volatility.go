package s2_stability

import (
	"math"

	"github.com/wonny/trustrank/internal/contracts"
)

// VolatilityWindow number of smoothed values considered
const VolatilityWindow = 7

// Classification thresholds
const (
	lowAvgAbsDelta    = 2.0
	lowMaxAbsDelta    = 5.0
	mediumAvgAbsDelta = 5.0
	mediumMaxAbsDelta = 10.0
)

// Classify maps signed deltas to a stability profile. Empty → MEDIUM.
// ⭐ SSOT: 변동성 분류는 여기서만
func Classify(deltas []float64) contracts.StabilityProfile {
	if len(deltas) == 0 {
		return contracts.StabilityMedium
	}

	sum, maxAbs := 0.0, 0.0
	for _, d := range deltas {
		a := math.Abs(d)
		sum += a
		maxAbs = math.Max(maxAbs, a)
	}
	avg := sum / float64(len(deltas))

	switch {
	case avg < lowAvgAbsDelta && maxAbs < lowMaxAbsDelta:
		return contracts.StabilityLow
	case avg < mediumAvgAbsDelta && maxAbs < mediumMaxAbsDelta:
		return contracts.StabilityMedium
	default:
		return contracts.StabilityHigh
	}
}

// RecentDeltas appends latest to the oldest-first series, keeps the last
// window values and returns their successive signed differences.
func RecentDeltas(oldestFirst []int, latest int, window int) []float64 {
	series := append(append(make([]int, 0, len(oldestFirst)+1), oldestFirst...), latest)
	if window > 0 && len(series) > window {
		series = series[len(series)-window:]
	}
	if len(series) < 2 {
		return nil
	}

	deltas := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		deltas = append(deltas, float64(series[i]-series[i-1]))
	}
	return deltas
}

// ApplyVolatilityFlag adds or removes HIGH_VOLATILITY so the flag tracks the profile
func ApplyVolatilityFlag(flags []string, profile contracts.StabilityProfile) []string {
	out := make([]string, 0, len(flags)+1)
	for _, f := range flags {
		if f != contracts.RiskHighVolatility {
			out = append(out, f)
		}
	}
	if profile == contracts.StabilityHigh {
		out = append(out, contracts.RiskHighVolatility)
	}
	return out
}
