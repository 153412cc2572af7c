package gold

import (
	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Column shorthands for relation contracts.
func intCol(name string) core.Column    { return core.Column{Name: name, Type: core.TypeInt} }
func floatCol(name string) core.Column  { return core.Column{Name: name, Type: core.TypeFloat} }
func stringCol(name string) core.Column { return core.Column{Name: name, Type: core.TypeString} }
func dateCol(name string) core.Column   { return core.Column{Name: name, Type: core.TypeDate} }

func nullable(c core.Column) core.Column {
	c.Nullable = true
	return c
}

// Aggregate shorthands.
func sum(name, col string) view.Aggregate {
	return view.Aggregate{Name: name, Func: view.AggSum, Arg: expr.Col(col)}
}

func avg(name, col string) view.Aggregate {
	return view.Aggregate{Name: name, Func: view.AggAvg, Arg: expr.Col(col)}
}

func countStar(name string) view.Aggregate {
	return view.Aggregate{Name: name, Func: view.AggCountStar}
}

func countDistinct(name, col string) view.Aggregate {
	return view.Aggregate{Name: name, Func: view.AggCountDistinct, Arg: expr.Col(col)}
}

func percentile(name, col string, p float64) view.Aggregate {
	return view.Aggregate{Name: name, Func: view.AggPercentileCont, Arg: expr.Col(col), P: p}
}

func rounded(name, col string, decimals int) view.Projection {
	return view.As(name, expr.Round(expr.Col(col), decimals))
}

// flag is 1 when cond holds, else 0.
func flag(cond expr.Expr) expr.Expr {
	return expr.If(cond, expr.Lit(1), expr.Lit(0))
}

// returned flags returned line items.
func returned() expr.Expr {
	return flag(expr.Eq(expr.Col("return_flag"), expr.Lit(ReturnFlagReturned)))
}

// onTime flags line items delivered no later than committed. Items with no
// delivery delay recorded count as late.
func onTime() expr.Expr {
	return flag(expr.Le(expr.Col("delivery_delay_days"), expr.Lit(0)))
}
