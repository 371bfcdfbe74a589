// Package ratio holds guarded arithmetic for nullable metrics. Every helper
// returns nil instead of NaN or Inf.
package ratio

import "math"

// Div returns num/den, or nil when den is not positive or the result is not finite.
func Div(num, den float64) *float64 {
	if den <= 0 || math.IsNaN(den) || math.IsNaN(num) {
		return nil
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Change returns (current-previous)/previous, or nil when previous is not positive.
func Change(current, previous float64) *float64 {
	return Div(current-previous, previous)
}

// Mean returns the arithmetic mean of values, or nil for an empty slice.
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Div(sum, float64(len(values)))
}

// Ptr returns a pointer to v.
func Ptr(v float64) *float64 {
	return &v
}

// Value dereferences p, returning fallback for nil.
func Value(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
