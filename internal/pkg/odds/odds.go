// Package odds converts bookmaker prices into implied win probabilities.
package odds

import (
	"fmt"
	"math"
)

// ImpliedProbability converts decimal odds to an implied probability in (0, 1).
// Odds of 1.0 or less are not valid decimal odds and yield nil.
func ImpliedProbability(decimal float64) *float64 {
	if !(decimal > 1) || math.IsInf(decimal, 0) {
		return nil
	}
	p := 1 / decimal
	return &p
}

// ImpliedProbabilityPtr is ImpliedProbability for an optional price; nil stays nil.
func ImpliedProbabilityPtr(decimal *float64) *float64 {
	if decimal == nil {
		return nil
	}
	return ImpliedProbability(*decimal)
}

// SwingPP returns the signed percentage-point change from prev to curr, rounded to
// two decimals. It is an absolute difference of probabilities, not a relative change.
func SwingPP(prev, curr *float64) *float64 {
	if prev == nil || curr == nil {
		return nil
	}
	s := round2((*curr - *prev) * 100)
	return &s
}

// AmericanToDecimal converts an American price (+150, -120) to decimal odds.
func AmericanToDecimal(price int) (float64, bool) {
	switch {
	case price > 0:
		return float64(price)/100 + 1, true
	case price < 0:
		return 100/math.Abs(float64(price)) + 1, true
	default:
		return 0, false
	}
}

// FormatPercent renders a probability as a percentage with one decimal, e.g. "62.3%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}
