// Package scoring builds quantile segmentation and weighted scorecards on
// top of the evaluation operators.
package scoring

import (
	"fmt"

	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
)

// Dimension is one ranked dimension of a quantile segmentation, written to
// column Name. Bucket 1 receives the worst values.
type Dimension struct {
	Name           string
	Column         string
	HigherIsBetter bool
}

// QuantileScorer assigns each entity a 1..Buckets score per dimension.
type QuantileScorer struct {
	Buckets    int
	Dimensions []Dimension
	// TieBreak orders entities that are equal on a dimension.
	TieBreak []view.SortKey
}

// Windows returns one NTILE window per dimension. A dimension where higher
// is better is bucketed over ascending values so the highest values get
// the highest score; one where lower is better (recency in days) is
// bucketed over descending values.
func (q QuantileScorer) Windows() []view.Window {
	out := make([]view.Window, len(q.Dimensions))
	for i, d := range q.Dimensions {
		order := []view.SortKey{{Column: d.Column, Desc: !d.HigherIsBetter}}
		order = append(order, q.TieBreak...)
		out[i] = view.Window{
			Name:    d.Name,
			Func:    view.WinNTile,
			Buckets: q.Buckets,
			OrderBy: order,
		}
	}
	return out
}

// Composite is the sum of the per-dimension scores.
func (q QuantileScorer) Composite() expr.Expr {
	terms := make([]expr.Expr, len(q.Dimensions))
	for i, d := range q.Dimensions {
		terms[i] = expr.Col(d.Name)
	}
	return expr.Sum(terms...)
}

// Rule is a labelled predicate of a segment rule list.
type Rule struct {
	Label     string
	Predicate expr.Expr
}

// Classify evaluates rules top to bottom and yields the first matching
// label; rows matching no rule get fallback.
func Classify(rules []Rule, fallback string) expr.Expr {
	branches := make([]expr.When, len(rules))
	for i, r := range rules {
		branches[i] = expr.When{Cond: r.Predicate, Then: expr.Lit(r.Label)}
	}
	return expr.Case(branches, expr.Lit(fallback))
}

// Segment labels.
const (
	SegmentChampions     = "Champions"
	SegmentLoyal         = "Loyal Customers"
	SegmentNew           = "New Customers"
	SegmentAtRisk        = "At Risk"
	SegmentHibernating   = "Hibernating"
	SegmentLost          = "Lost"
	SegmentNeedAttention = "Need Attention"
)

// Segments lists every RFM label in rule priority order, fallback last.
var Segments = []string{
	SegmentChampions, SegmentLoyal, SegmentNew, SegmentAtRisk,
	SegmentHibernating, SegmentLost, SegmentNeedAttention,
}

// RFMRules returns the segment rules over score columns r, f and m.
func RFMRules(r, f, m string) []Rule {
	ge := func(col string, n int) expr.Expr { return expr.Ge(expr.Col(col), expr.Lit(n)) }
	le := func(col string, n int) expr.Expr { return expr.Le(expr.Col(col), expr.Lit(n)) }
	return []Rule{
		{SegmentChampions, expr.And(ge(r, 4), ge(f, 4), ge(m, 4))},
		{SegmentLoyal, expr.And(ge(r, 3), ge(f, 3))},
		{SegmentNew, expr.And(ge(r, 4), le(f, 2))},
		{SegmentAtRisk, expr.And(le(r, 2), ge(f, 3), ge(m, 3))},
		{SegmentHibernating, expr.And(le(r, 2), le(f, 2), ge(m, 3))},
		{SegmentLost, expr.And(le(r, 2), le(f, 2))},
	}
}

// Validate checks the scorer configuration.
func (q QuantileScorer) Validate() error {
	if q.Buckets < 1 {
		return fmt.Errorf("quantile scorer needs at least one bucket")
	}
	if len(q.Dimensions) == 0 {
		return fmt.Errorf("quantile scorer has no dimensions")
	}
	return nil
}
