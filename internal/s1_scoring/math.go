package s1_scoring

import "math"

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func line(input string, sub float64, weight int) componentLine {
	sub = clamp01(sub)
	return componentLine{input: input, sub: sub, weight: weight}
}

// componentLine intermediate before rounding into contracts.ComponentScore
type componentLine struct {
	input  string
	sub    float64
	weight int
}

func (c componentLine) points() float64 {
	return c.sub * float64(c.weight)
}
