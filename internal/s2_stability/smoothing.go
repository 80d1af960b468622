package s2_stability

import (
	"fmt"
	"math"

	"github.com/wonny/trustrank/internal/contracts"
)

// Smoother converts a raw score into a publishable one
type Smoother interface {
	// Smooth returns current unchanged when previous is nil
	Smooth(current int, previous *int) int
	Name() string
}

// Exponential smoothed = α·current + (1−α)·previous
type Exponential struct {
	Alpha float64
}

// NewExponential validates α ∈ (0,1]
func NewExponential(alpha float64) (*Exponential, error) {
	if alpha <= 0 || alpha > 1 || math.IsNaN(alpha) {
		return nil, fmt.Errorf("%w: alpha must be in (0,1], got %v", contracts.ErrInvalidInput, alpha)
	}
	return &Exponential{Alpha: alpha}, nil
}

func (e *Exponential) Name() string {
	return fmt.Sprintf("exponential(alpha=%g)", e.Alpha)
}

func (e *Exponential) Smooth(current int, previous *int) int {
	if previous == nil {
		return current
	}
	return int(math.Round(e.Alpha*float64(current) + (1-e.Alpha)*float64(*previous)))
}

// CappedDelta bounds movement to round(previous·cap/100) from the day anchor.
// ⭐ 조작 방지: 단일 급등이 공개 점수를 cap% 이상 움직일 수 없음
type CappedDelta struct {
	CapPercent float64
}

// NewCappedDelta validates capPercent ∈ [0,100]
func NewCappedDelta(capPercent float64) (*CappedDelta, error) {
	if capPercent < 0 || capPercent > 100 || math.IsNaN(capPercent) {
		return nil, fmt.Errorf("%w: cap percent must be in [0,100], got %v", contracts.ErrInvalidInput, capPercent)
	}
	return &CappedDelta{CapPercent: capPercent}, nil
}

func (c *CappedDelta) Name() string {
	return fmt.Sprintf("capped_delta(cap=%g%%)", c.CapPercent)
}

// MaxDelta returns round(previous·cap/100), rounding half away from zero
func (c *CappedDelta) MaxDelta(previous int) int {
	return int(math.Round(float64(previous) * c.CapPercent / 100))
}

func (c *CappedDelta) Smooth(current int, previous *int) int {
	if previous == nil {
		return current
	}
	prev := *previous
	maxDelta := c.MaxDelta(prev)
	delta := current - prev

	switch {
	case delta > maxDelta:
		return prev + maxDelta
	case delta < -maxDelta:
		return prev - maxDelta
	default:
		return current
	}
}

// Policy selects a smoother per score type
type Policy struct {
	smoothers map[contracts.ScoreType]Smoother
}

// DefaultPolicy trust: capped-delta, fundamentals: exponential
func DefaultPolicy(trustCapPercent, fundamentalsAlpha float64) (*Policy, error) {
	capped, err := NewCappedDelta(trustCapPercent)
	if err != nil {
		return nil, err
	}
	exp, err := NewExponential(fundamentalsAlpha)
	if err != nil {
		return nil, err
	}
	return NewPolicy(map[contracts.ScoreType]Smoother{
		contracts.ScoreTypeTrust:        capped,
		contracts.ScoreTypeFundamentals: exp,
	}), nil
}

// NewPolicy creates a policy from an explicit table
func NewPolicy(smoothers map[contracts.ScoreType]Smoother) *Policy {
	copied := make(map[contracts.ScoreType]Smoother, len(smoothers))
	for k, v := range smoothers {
		copied[k] = v
	}
	return &Policy{smoothers: copied}
}

// Smooth applies the smoother configured for scoreType; unknown types pass through
func (p *Policy) Smooth(scoreType contracts.ScoreType, current int, previous *int) int {
	s, ok := p.smoothers[scoreType]
	if !ok {
		return current
	}
	return s.Smooth(current, previous)
}

// For returns the smoother of scoreType
func (p *Policy) For(scoreType contracts.ScoreType) (Smoother, bool) {
	s, ok := p.smoothers[scoreType]
	return s, ok
}

// Delta returns current − previous, or nil without a previous value
func Delta(current int, previous *int) *int {
	if previous == nil {
		return nil
	}
	d := current - *previous
	return &d
}
