// Package ratio provides the null and zero guarded ratio used for every
// percentage, margin and growth rate in the gold layer.
package ratio

import (
	"math"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Percent is the default scale for percentage metrics.
const Percent = 100.0

// Ratio returns round(num/den*scale, decimals). It returns nil when den is
// NULL or zero, or when num is NULL. Non-numeric inputs also yield nil.
func Ratio(num, den core.Value, scale float64, decimals int) core.Value {
	d, ok := core.AsFloat(den)
	if !ok || d == 0 {
		return nil
	}
	n, ok := core.AsFloat(num)
	if !ok {
		return nil
	}
	return Round(n/d*scale, decimals)
}

// Pct is Ratio with a scale of 100.
func Pct(num, den core.Value, decimals int) core.Value {
	return Ratio(num, den, Percent, decimals)
}

// Growth is the percentage change from prev to cur, rounded to 2 decimals.
// It is nil when prev is NULL or zero.
func Growth(cur, prev core.Value) core.Value {
	c, ok := core.AsFloat(cur)
	if !ok {
		return nil
	}
	p, ok := core.AsFloat(prev)
	if !ok {
		return nil
	}
	return Ratio(c-p, p, Percent, 2)
}

// Round rounds half away from zero to the given number of decimals.
func Round(x float64, decimals int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(decimals))
	r := math.Round(x*p) / p
	if r == 0 {
		return 0
	}
	return r
}
