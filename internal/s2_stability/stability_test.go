package s2_stability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trustrank/internal/contracts"
)

func TestCappedDelta_Smooth(t *testing.T) {
	capped, err := NewCappedDelta(7)
	require.NoError(t, err)

	tests := []struct {
		name     string
		current  int
		previous *int
		want     int
	}{
		{"spike capped (50→100)", 100, contracts.IntPtr(50), 54},
		{"drop capped (50→0)", 0, contracts.IntPtr(50), 46},
		{"within cap", 53, contracts.IntPtr(50), 53},
		{"exactly at cap", 54, contracts.IntPtr(50), 54},
		{"no previous passes through", 100, nil, 100},
		{"previous zero pinned", 80, contracts.IntPtr(0), 0},
		{"small previous rounds to zero delta", 20, contracts.IntPtr(7), 7},
		{"fractional cap rounds (10·7%=0.7→1)", 30, contracts.IntPtr(10), 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capped.Smooth(tt.current, tt.previous))
		})
	}
}

func TestCappedDelta_Property(t *testing.T) {
	for _, capPct := range []float64{0, 1, 5, 7, 12.5, 50, 100} {
		capped, err := NewCappedDelta(capPct)
		require.NoError(t, err)

		for prev := 0; prev <= 100; prev += 3 {
			for cur := 0; cur <= 100; cur += 7 {
				got := capped.Smooth(cur, contracts.IntPtr(prev))
				bound := int(math.Round(float64(prev) * capPct / 100))
				diff := got - prev
				if diff < 0 {
					diff = -diff
				}
				assert.LessOrEqual(t, diff, bound, "cap=%v prev=%d cur=%d", capPct, prev, cur)
			}
		}
	}
}

func TestExponential_Smooth(t *testing.T) {
	exp, err := NewExponential(0.3)
	require.NoError(t, err)

	assert.Equal(t, 80, exp.Smooth(80, nil))
	// 0.3·80 + 0.7·50 = 59
	assert.Equal(t, 59, exp.Smooth(80, contracts.IntPtr(50)))

	one, err := NewExponential(1)
	require.NoError(t, err)
	assert.Equal(t, 80, one.Smooth(80, contracts.IntPtr(10)))
}

func TestSmootherConstructors_Invalid(t *testing.T) {
	_, err := NewExponential(0)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
	_, err = NewExponential(1.5)
	assert.Error(t, err)
	_, err = NewCappedDelta(-1)
	assert.Error(t, err)
	_, err = DefaultPolicy(7, 0)
	assert.Error(t, err)
}

func TestPolicy(t *testing.T) {
	p, err := DefaultPolicy(7, 0.3)
	require.NoError(t, err)

	assert.Equal(t, 54, p.Smooth(contracts.ScoreTypeTrust, 100, contracts.IntPtr(50)))
	assert.Equal(t, 65, p.Smooth(contracts.ScoreTypeFundamentals, 100, contracts.IntPtr(50)))
	assert.Equal(t, 100, p.Smooth("unknown", 100, contracts.IntPtr(50)))

	s, ok := p.For(contracts.ScoreTypeTrust)
	require.True(t, ok)
	assert.Contains(t, s.Name(), "capped_delta")
}

func TestDelta(t *testing.T) {
	assert.Nil(t, Delta(10, nil))
	assert.Equal(t, 4, *Delta(54, contracts.IntPtr(50)))
	assert.Equal(t, -3, *Delta(47, contracts.IntPtr(50)))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		want   contracts.StabilityProfile
	}{
		{"low", []float64{1, 0.5, -1, 0.8, -0.5}, contracts.StabilityLow},
		{"high", []float64{10, -8, 12, -10, 15}, contracts.StabilityHigh},
		{"empty", nil, contracts.StabilityMedium},
		{"medium", []float64{3, -4, 2, 3}, contracts.StabilityMedium},
		{"low avg but one jump", []float64{0, 0, 0, 0, 0, 6}, contracts.StabilityMedium},
		{"single big jump", []float64{0, 0, 0, 0, 0, 10}, contracts.StabilityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.deltas))
		})
	}
}

func TestRecentDeltas(t *testing.T) {
	assert.Nil(t, RecentDeltas(nil, 50, VolatilityWindow))
	assert.Equal(t, []float64{4}, RecentDeltas([]int{50}, 54, VolatilityWindow))

	// 10 historic values + latest; only the last 7 values survive → 6 deltas
	history := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	deltas := RecentDeltas(history, 20, VolatilityWindow)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 10}, deltas)
	assert.Len(t, history, 10, "input must not be mutated")
}

func TestApplyVolatilityFlag(t *testing.T) {
	flags := ApplyVolatilityFlag([]string{contracts.RiskSuspiciousActivity}, contracts.StabilityHigh)
	assert.ElementsMatch(t, []string{contracts.RiskSuspiciousActivity, contracts.RiskHighVolatility}, flags)

	flags = ApplyVolatilityFlag(flags, contracts.StabilityHigh)
	assert.Len(t, flags, 2)

	flags = ApplyVolatilityFlag(flags, contracts.StabilityLow)
	assert.Equal(t, []string{contracts.RiskSuspiciousActivity}, flags)
}
