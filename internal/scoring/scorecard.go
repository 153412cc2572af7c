package scoring

import (
	"fmt"
	"math"

	"github.com/leapstack-labs/leapgold/internal/expr"
)

// Term is one weighted input of a scorecard. Invert scores 100 - x for
// percentages where lower is better.
type Term struct {
	Column string
	Weight float64
	Invert bool
}

// Scorecard is a fixed linear combination of percentage metrics.
type Scorecard struct {
	Terms    []Term
	Decimals int
}

// Validate checks that the weights sum to 1.
func (s Scorecard) Validate() error {
	if len(s.Terms) == 0 {
		return fmt.Errorf("scorecard has no terms")
	}
	total := 0.0
	for _, t := range s.Terms {
		if t.Weight < 0 {
			return fmt.Errorf("scorecard term %s has negative weight", t.Column)
		}
		total += t.Weight
	}
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("scorecard weights sum to %v, want 1", total)
	}
	return nil
}

// Expr returns the rounded weighted sum. Any NULL input makes the score
// NULL.
func (s Scorecard) Expr() expr.Expr {
	terms := make([]expr.Expr, len(s.Terms))
	for i, t := range s.Terms {
		var x expr.Expr = expr.Col(t.Column)
		if t.Invert {
			x = expr.Invert(x)
		}
		terms[i] = expr.Mul(expr.Lit(t.Weight), x)
	}
	return expr.Round(expr.Sum(terms...), s.Decimals)
}

// SupplierScorecard weighs on-time delivery 0.4, returns (inverted) 0.3 and
// margin 0.3.
func SupplierScorecard() Scorecard {
	return Scorecard{
		Terms: []Term{
			{Column: "on_time_delivery_pct", Weight: 0.4},
			{Column: "return_rate_pct", Weight: 0.3, Invert: true},
			{Column: "profit_margin_pct", Weight: 0.3},
		},
		Decimals: 2,
	}
}
