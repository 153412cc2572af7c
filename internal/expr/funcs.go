package expr

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapgold/internal/ratio"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// When is one branch of a Case.
type When struct {
	Cond Expr
	Then Expr
}

// Case evaluates branches top to bottom and returns the first whose Cond is
// true. A NULL condition does not match. Else may be nil for NULL.
func Case(branches []When, elseExpr Expr) Expr {
	args := make([]Expr, 0, 2*len(branches)+1)
	for _, b := range branches {
		args = append(args, b.Cond, b.Then)
	}
	hasElse := elseExpr != nil
	if hasElse {
		args = append(args, elseExpr)
	}
	return fn{name: "CASE", args: args, bind: func(bound []Bound) (Bound, error) {
		n := len(branches)
		for i := range n {
			if bound[2*i].Type != core.TypeBool {
				return Bound{}, errors.New("CASE condition must be boolean")
			}
		}
		results := make([]Bound, 0, n+1)
		for i := range n {
			results = append(results, bound[2*i+1])
		}
		if hasElse {
			results = append(results, bound[2*n])
		}
		typ, err := unify(results)
		if err != nil {
			return Bound{}, err
		}
		return Bound{Type: typ, Eval: func(r core.Row) core.Value {
			for i := range n {
				if bound[2*i].Eval(r) == true {
					return widen(bound[2*i+1].Eval(r), typ)
				}
			}
			if hasElse {
				return widen(bound[2*n].Eval(r), typ)
			}
			return nil
		}}, nil
	}}
}

// If is a two-way Case.
func If(cond, then, otherwise Expr) Expr {
	return Case([]When{{Cond: cond, Then: then}}, otherwise)
}

// Coalesce returns the first non-NULL argument.
func Coalesce(exprs ...Expr) Expr {
	return fn{name: "COALESCE", args: exprs, bind: func(args []Bound) (Bound, error) {
		typ, err := unify(args)
		if err != nil {
			return Bound{}, err
		}
		return Bound{Type: typ, Eval: func(r core.Row) core.Value {
			for _, a := range args {
				if v := a.Eval(r); v != nil {
					return widen(v, typ)
				}
			}
			return nil
		}}, nil
	}}
}

// unify picks a common result type. int and float unify to float.
func unify(args []Bound) (core.ScalarType, error) {
	var typ core.ScalarType
	for _, a := range args {
		switch {
		case typ == "":
			typ = a.Type
		case typ == a.Type:
		case typ.Numeric() && a.Type.Numeric():
			typ = core.TypeFloat
		default:
			return "", fmt.Errorf("incompatible types %s and %s", typ, a.Type)
		}
	}
	return typ, nil
}

func widen(v core.Value, t core.ScalarType) core.Value {
	if t == core.TypeFloat {
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	}
	return v
}

// Round rounds a numeric expression to decimals places.
func Round(e Expr, decimals int) Expr {
	return fn{name: fmt.Sprintf("ROUND%d", decimals), args: []Expr{e}, bind: func(args []Bound) (Bound, error) {
		a := args[0]
		if !a.Type.Numeric() {
			return Bound{}, errNumeric
		}
		return Bound{Type: core.TypeFloat, Eval: func(r core.Row) core.Value {
			f, ok := core.AsFloat(a.Eval(r))
			if !ok {
				return nil
			}
			return ratio.Round(f, decimals)
		}}, nil
	}}
}

// Ratio is the safe ratio round(num/den*scale, decimals), NULL when den is
// NULL or zero.
func Ratio(num, den Expr, scale float64, decimals int) Expr {
	return fn{name: "RATIO", args: []Expr{num, den}, bind: func(args []Bound) (Bound, error) {
		n, d := args[0], args[1]
		if !n.Type.Numeric() || !d.Type.Numeric() {
			return Bound{}, errNumeric
		}
		return Bound{Type: core.TypeFloat, Eval: func(r core.Row) core.Value {
			return ratio.Ratio(n.Eval(r), d.Eval(r), scale, decimals)
		}}, nil
	}}
}

// Pct is Ratio scaled to a percentage with 2 decimals.
func Pct(num, den Expr) Expr {
	return Ratio(num, den, ratio.Percent, 2)
}

// Growth is the percentage change from prev to cur.
func Growth(cur, prev Expr) Expr {
	return fn{name: "GROWTH", args: []Expr{cur, prev}, bind: func(args []Bound) (Bound, error) {
		c, p := args[0], args[1]
		if !c.Type.Numeric() || !p.Type.Numeric() {
			return Bound{}, errNumeric
		}
		return Bound{Type: core.TypeFloat, Eval: func(r core.Row) core.Value {
			return ratio.Growth(c.Eval(r), p.Eval(r))
		}}, nil
	}}
}

// Invert returns 100 - e, for percentages where lower is better.
func Invert(e Expr) Expr {
	return Sub(Lit(ratio.Percent), e)
}

// YearMonth formats a date as "2006-01".
func YearMonth(date Expr) Expr {
	return dateFormat("YEAR_MONTH", date, func(t time.Time) string { return t.Format("2006-01") })
}

// QuarterOf formats a date as "2006-Q1".
func QuarterOf(date Expr) Expr {
	return dateFormat("QUARTER_OF", date, func(t time.Time) string {
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	})
}

func dateFormat(name string, date Expr, f func(time.Time) string) Expr {
	return fn{name: name, args: []Expr{date}, bind: func(args []Bound) (Bound, error) {
		a := args[0]
		if a.Type != core.TypeDate {
			return Bound{}, errors.New("argument must be a date")
		}
		return Bound{Type: core.TypeString, Eval: func(r core.Row) core.Value {
			t, ok := a.Eval(r).(time.Time)
			if !ok {
				return nil
			}
			return f(t)
		}}, nil
	}}
}

// YearQuarter formats integer year and quarter columns as "1995-Q1".
func YearQuarter(year, quarter Expr) Expr {
	return fn{name: "YEAR_QUARTER", args: []Expr{year, quarter}, bind: func(args []Bound) (Bound, error) {
		y, q := args[0], args[1]
		if y.Type != core.TypeInt || q.Type != core.TypeInt {
			return Bound{}, errors.New("year and quarter must be int")
		}
		return Bound{Type: core.TypeString, Eval: func(r core.Row) core.Value {
			yv, ok1 := y.Eval(r).(int64)
			qv, ok2 := q.Eval(r).(int64)
			if !ok1 || !ok2 {
				return nil
			}
			return fmt.Sprintf("%d-Q%d", yv, qv)
		}}, nil
	}}
}

// DaysBetween returns the whole days from start to end.
func DaysBetween(start, end Expr) Expr {
	return fn{name: "DAYS_BETWEEN", args: []Expr{start, end}, bind: func(args []Bound) (Bound, error) {
		s, e := args[0], args[1]
		if s.Type != core.TypeDate || e.Type != core.TypeDate {
			return Bound{}, errors.New("arguments must be dates")
		}
		return Bound{Type: core.TypeInt, Eval: func(r core.Row) core.Value {
			a, ok1 := s.Eval(r).(time.Time)
			b, ok2 := e.Eval(r).(time.Time)
			if !ok1 || !ok2 {
				return nil
			}
			return int64(b.Sub(a).Hours() / 24)
		}}, nil
	}}
}
